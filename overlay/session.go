// Package overlay implements the peer session protocol: framing,
// handshake, typed dispatch, and the loopback test transport (spec.md
// §4.1-§4.3).
package overlay

import (
	"bytes"
	"fmt"
	"io"
	"time"

	"github.com/kbacha/fbagreement/codec"
	"github.com/kbacha/fbagreement/common/types"
	"github.com/kbacha/fbagreement/internal/scheduler"
	"github.com/kbacha/fbagreement/log"
	"github.com/kbacha/fbagreement/metrics"
	"github.com/kbacha/fbagreement/overlay/wire"
)

// Role is a session's side of the connection (spec.md §3 "Peer session
// state").
type Role uint8

const (
	Initiator Role = iota
	Acceptor
)

// State is a session's handshake progress. State only moves forward;
// Closed is terminal (spec.md §3).
type State uint8

const (
	Connecting State = iota
	Connected
	GotHello
	Closed
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "CONNECTING"
	case Connected:
		return "CONNECTED"
	case GotHello:
		return "GOT_HELLO"
	case Closed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

const handshakeTimeout = 2000 * time.Millisecond

// SessionOption configures a Session at construction time.
type SessionOption func(*Session)

// WithLogger attaches a component logger.
func WithLogger(l log.Log) SessionOption {
	return func(s *Session) { s.logger = l }
}

// WithHandshakeTimeout overrides the default 2000ms handshake deadline
// (spec.md §4.2 step 3).
func WithHandshakeTimeout(d time.Duration) SessionOption {
	return func(s *Session) { s.handshakeTimeout = d }
}

// WithIdleTimeout arms an idle/keepalive disconnect timer, reset on every
// successful recv (SPEC_FULL.md "Idle/keepalive disconnect", grounded on
// original_source's Peer.cpp idle handling). Zero disables it.
func WithIdleTimeout(d time.Duration) SessionOption {
	return func(s *Session) { s.idleTimeout = d }
}

// WithMaxOutboundQueue bounds the number of frames buffered for write
// before the session is dropped for back-pressure (SPEC_FULL.md
// "Outbound write back-pressure").
func WithMaxOutboundQueue(n int) SessionOption {
	return func(s *Session) { s.maxOutboundQueue = n }
}

// WithFloodTracker attaches the dedup cache consulted for FBA_MESSAGE
// (SPEC_FULL.md "Flood/duplicate suppression").
func WithFloodTracker(ft *FloodTracker) SessionOption {
	return func(s *Session) { s.flood = ft }
}

// Session is one connected neighbor: it owns the framer, enforces the
// HELLO handshake, dispatches typed messages, and exposes send/drop
// (spec.md §2 "Peer session", §4.2).
type Session struct {
	conn   io.ReadWriteCloser
	framer *wire.Framer
	role   Role
	state  State

	scheduler scheduler.Scheduler
	registry  PeerRegistry
	herder    HerderGateway
	overlayGW OverlayGateway
	consensus ConsensusGateway
	flood     *FloodTracker
	logger    log.Log

	protocolVersion uint32
	versionStr      string
	listeningPort   uint16

	remoteProtocolVersion uint32
	remoteVersion         string
	remoteListeningPort   uint16

	handshakeTimeout time.Duration
	idleTimeout      time.Duration
	handshakeTimer   scheduler.Cancellable
	idleTimer        scheduler.Cancellable

	maxOutboundQueue int
	outCh            chan []byte
	dropped          bool
}

// NewSession wraps conn and starts its read/write loops. role determines
// which side sends HELLO first (spec.md §4.2 steps 1-2).
func NewSession(
	conn io.ReadWriteCloser,
	role Role,
	sch scheduler.Scheduler,
	registry PeerRegistry,
	herder HerderGateway,
	overlayGW OverlayGateway,
	consensus ConsensusGateway,
	protocolVersion uint32,
	versionStr string,
	listeningPort uint16,
	opts ...SessionOption,
) *Session {
	s := &Session{
		conn:             conn,
		framer:           wire.NewFramer(conn, conn),
		role:             role,
		scheduler:        sch,
		registry:         registry,
		herder:           herder,
		overlayGW:        overlayGW,
		consensus:        consensus,
		logger:           log.NewNop(),
		protocolVersion:  protocolVersion,
		versionStr:       versionStr,
		listeningPort:    listeningPort,
		handshakeTimeout: handshakeTimeout,
		maxOutboundQueue: 256,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.flood == nil {
		s.flood = NewFloodTracker(1024)
	}
	s.outCh = make(chan []byte, s.maxOutboundQueue)

	switch role {
	case Acceptor:
		s.state = Connected
		s.scheduler.Post(s.sendHello) // spec.md §4.2 step 1
	case Initiator:
		s.state = Connecting
		s.scheduler.Post(func() {
			s.state = Connected
			s.sendHello() // spec.md §4.2 step 2
		})
	}
	s.handshakeTimer = s.scheduler.ScheduleAfter(s.handshakeTimeout, s.onHandshakeTimeout)

	go s.readLoop()
	go s.writeLoop()
	return s
}

// State returns the session's current handshake state.
func (s *Session) State() State { return s.state }

// Role returns the session's role.
func (s *Session) Role() Role { return s.role }

// RemoteListeningPort returns the port the remote advertised in HELLO.
func (s *Session) RemoteListeningPort() uint16 { return s.remoteListeningPort }

func (s *Session) onHandshakeTimeout() {
	if s.state >= GotHello {
		return
	}
	s.logger.With().Warning("handshake timed out", log.Err(ErrHandshakeTimeout))
	metrics.ReportHandshakeTimedOut()
	s.Drop()
}

func (s *Session) sendHello() {
	s.sendMessage(&wire.Message{
		Type: wire.Hello,
		Hello: &wire.HelloBody{
			ProtocolVersion: s.protocolVersion,
			VersionStr:      s.versionStr,
			ListeningPort:   s.listeningPort,
		},
	})
}

// Send enqueues msg for ordered transmission (spec.md §4.2 "send(msg)").
func (s *Session) Send(msg *wire.Message) { s.scheduler.Post(func() { s.sendMessage(msg) }) }

// sendFBAEnvelope wraps env in an FBA_MESSAGE and sends it to this one
// peer. Registry.Broadcast calls it once per admitted session to fan an
// outgoing envelope out to the network (spec.md §2 data flow "emitted
// envelope -> peer session"); the node package's registryBroadcaster is
// what actually connects a Slot's single-argument Broadcaster to
// Registry's two-argument one (see node/coordinator.go).
func (s *Session) sendFBAEnvelope(env *types.SCPEnvelope) {
	s.sendMessage(&wire.Message{Type: wire.FBAMessage, FBA: &wire.FBAMessageBody{Envelope: *env}})
}

func (s *Session) sendMessage(msg *wire.Message) {
	if s.state == Closed {
		return
	}
	buf, err := codec.Encode(msg)
	if err != nil {
		s.logger.With().Error("encode outgoing message", log.Err(err))
		return
	}
	select {
	case s.outCh <- buf:
	default:
		s.logger.With().Warning("outbound queue full, dropping session",
			log.Int("maxOutboundQueue", s.maxOutboundQueue))
		s.Drop()
	}
}

func (s *Session) writeLoop() {
	for buf := range s.outCh {
		if err := s.framer.WriteFrame(buf); err != nil {
			s.scheduler.Post(func() {
				s.logger.With().Warning("write error", log.Err(fmt.Errorf("%w", ErrTransport)))
				s.Drop()
			})
			return
		}
		metrics.LoopbackBytesSent.Add(float64(len(buf)))
	}
}

func (s *Session) readLoop() {
	for {
		raw, err := s.framer.ReadFrame()
		if err != nil {
			s.scheduler.Post(func() {
				if s.state == Closed {
					return
				}
				s.logger.With().Warning("read error", log.Err(fmt.Errorf("%w", ErrTransport)))
				s.Drop()
			})
			return
		}
		buf := raw
		s.scheduler.Post(func() { s.onFrame(buf) })
	}
}

func (s *Session) onFrame(raw []byte) {
	if s.state == Closed {
		return
	}
	var msg wire.Message
	if _, err := codec.DecodeFrom(bytes.NewReader(raw), &msg); err != nil {
		s.logger.With().Warning("malformed message", log.Err(fmt.Errorf("%w", ErrMalformedMessage)))
		s.Drop()
		return
	}
	s.resetIdleTimer()
	s.dispatch(&msg)
}

func (s *Session) resetIdleTimer() {
	if s.idleTimeout <= 0 {
		return
	}
	if s.idleTimer != nil {
		s.idleTimer.Cancel()
	}
	s.idleTimer = s.scheduler.ScheduleAfter(s.idleTimeout, func() {
		s.logger.With().Warning("idle timeout, dropping session")
		s.Drop()
	})
}

// dispatch is spec.md §4.2 "Typed dispatch (after handshake)".
func (s *Session) dispatch(msg *wire.Message) {
	if s.state < GotHello && msg.Type != wire.Hello {
		s.logger.With().Warning("message before hello", log.String("type", msg.Type.String()))
		s.Drop()
		return
	}
	switch msg.Type {
	case wire.Hello:
		s.recvHello(msg.Hello)
	case wire.ErrorMsg:
		s.logger.With().Warning("peer reported error", log.String("message", msg.Error.Message))
	case wire.DontHave:
		s.recvDontHave(msg.DontHaveMsg)
	case wire.GetTxSet:
		s.recvGetTxSet(msg.HashReq)
	case wire.TxSet:
		s.herder.RecvTransactionSet(msg.Opaque.Payload)
	case wire.GetQuorumSet:
		s.recvGetQuorumSet(msg.HashReq)
	case wire.QuorumSetMsg:
		s.overlayGW.RecvQuorumSet(&msg.QSet.QuorumSet)
	case wire.Transaction:
		if s.herder.RecvTransaction(msg.Opaque.Payload) {
			s.overlayGW.BroadcastMessage(msg, s)
		}
	case wire.FBAMessage:
		s.recvFBAMessage(msg.FBA)
	case wire.GetPeers, wire.Peers, wire.GetHistory, wire.History,
		wire.GetDelta, wire.Delta, wire.GetValidations, wire.Validations:
		// delegated to their own collaborators, not detailed here
		// (spec.md §4.2 last taxonomy row).
	default:
		s.logger.With().Warning("unhandled message type", log.String("type", msg.Type.String()))
	}
}

func (s *Session) recvHello(h *wire.HelloBody) {
	if s.state >= GotHello {
		s.logger.With().Warning("duplicate hello", log.Err(ErrProtocolViolation))
		s.Drop()
		return
	}
	if h.ProtocolVersion != s.protocolVersion {
		s.logger.With().Warning("protocol version mismatch",
			log.Uint32("remote", h.ProtocolVersion), log.Uint32("local", s.protocolVersion))
		s.Drop()
		return
	}
	s.remoteProtocolVersion = h.ProtocolVersion
	s.remoteVersion = h.VersionStr
	s.remoteListeningPort = h.ListeningPort
	s.state = GotHello
	if s.handshakeTimer != nil {
		s.handshakeTimer.Cancel()
	}
	s.resetIdleTimer()
	if s.registry != nil {
		if !s.registry.IsPeerAccepted(s) {
			s.sendMessage(&wire.Message{Type: wire.Peers, Opaque: &wire.OpaqueBody{}})
			s.Drop()
			return
		}
		s.registry.AddPeer(s)
	}
}

func (s *Session) recvDontHave(body *wire.DontHaveBody) {
	switch body.Kind {
	case wire.TxSet:
		s.herder.DoesntHaveTxSet(body.ID, s)
	case wire.GetQuorumSet, wire.QuorumSetMsg:
		s.overlayGW.DoesntHaveQSet(body.ID, s)
	default:
		// HISTORY/DELTA/VALIDATIONS DONT_HAVE kinds are delegated
		// elsewhere (spec.md §4.2 last taxonomy row).
	}
}

func (s *Session) recvGetTxSet(req *wire.HashRequestBody) {
	if raw, ok := s.herder.FetchTxSet(req.ID, false); ok {
		s.sendMessage(&wire.Message{Type: wire.TxSet, Opaque: &wire.OpaqueBody{Payload: raw}})
		return
	}
	s.sendMessage(&wire.Message{Type: wire.DontHave, DontHaveMsg: &wire.DontHaveBody{Kind: wire.TxSet, ID: req.ID}})
}

func (s *Session) recvGetQuorumSet(req *wire.HashRequestBody) {
	if qs, ok := s.overlayGW.FetchQuorumSet(req.ID, false); ok {
		s.sendMessage(&wire.Message{Type: wire.QuorumSetMsg, QSet: &wire.QuorumSetBody{QuorumSet: *qs}})
		return
	}
	s.sendMessage(&wire.Message{Type: wire.DontHave, DontHaveMsg: &wire.DontHaveBody{Kind: wire.QuorumSetMsg, ID: req.ID}})
}

func (s *Session) recvFBAMessage(body *wire.FBAMessageBody) {
	env := &body.Envelope
	sig := env.Signature
	if s.flood.SeenOrMark(sig) {
		return
	}
	s.overlayGW.RecvFloodedMsg(sig, &wire.Message{Type: wire.FBAMessage, FBA: body}, env.Statement.Slot, s)
	s.consensus.RecvStatement(env)
}

// Drop is idempotent (spec.md §4.2 "drop()", §5 "Cancellation").
func (s *Session) Drop() {
	if s.dropped {
		return
	}
	s.dropped = true
	s.state = Closed
	if s.handshakeTimer != nil {
		s.handshakeTimer.Cancel()
	}
	if s.idleTimer != nil {
		s.idleTimer.Cancel()
	}
	close(s.outCh)
	_ = s.conn.Close()
	if s.registry != nil {
		s.registry.DropPeer(s)
	}
}
