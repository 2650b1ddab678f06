package overlay

import (
	"encoding/binary"
	"fmt"
	"io"
	"math/rand"
	"sync"

	"github.com/kbacha/fbagreement/codec"
	"github.com/kbacha/fbagreement/internal/scheduler"
	"github.com/kbacha/fbagreement/log"
	"github.com/kbacha/fbagreement/metrics"
	"github.com/kbacha/fbagreement/overlay/wire"
)

// LoopbackStats counts the fault-injection events a LoopbackSession has
// applied, mirroring the original's per-connection message statistics.
type LoopbackStats struct {
	BytesDelivered     uint64
	MessagesDuplicated uint64
	MessagesReordered  uint64
	MessagesDamaged    uint64
	MessagesDropped    uint64
}

// LoopbackSession is the in-process peer transport used for deterministic
// tests (spec.md §2 point 4, §4.3). It implements io.ReadWriteCloser, the
// same public contract a real socket satisfies, so it plugs directly into
// Session as its conn rather than being a second, parallel transport
// abstraction (spec.md §2 point 4: "same public contract as the peer
// session"; §4.3). Internally it reassembles the frames wire.Framer
// writes — a 4-byte header Write followed by a body Write, never
// interleaved with another frame since writeLoop sends one frame at a
// time — and applies Bernoulli fault injection on each reassembled frame
// before handing its bytes to the paired remote's Read side, in the fixed
// order duplicate, reorder, damage, drop (spec.md §4.3, confirmed against
// original_source's LoopbackPeer::deliverOne).
type LoopbackSession struct {
	scheduler scheduler.Scheduler
	logger    log.Log
	rng       *rand.Rand

	queue        []queuedFrame
	maxQueueSize int
	corked       bool

	pDuplicate float64
	pReorder   float64
	pDamage    float64
	pDrop      float64

	remote *LoopbackSession

	writeAccum []byte // bytes accumulated across in-flight Write calls until a full frame is assembled

	mu      sync.Mutex
	cond    *sync.Cond
	readBuf []byte
	closed  bool

	stats LoopbackStats
}

// queuedFrame is one pending frame. header and body are kept separate so
// fault injection (damageMessage in particular) only ever touches body
// bytes, never the 4-byte length prefix — corrupting the header would
// desync the receiver's framer instead of producing a decodable-but-wrong
// or malformed message, which is not what spec.md §4.3 point 3 or
// original_source's Peer.cpp describe (they damage the serialized
// message, not its transport envelope). duplicated marks a frame that
// was itself produced by the duplicate fault, so deliverOne does not
// duplicate it again; without that guard a duplication probability of
// 1.0 would regenerate a fresh duplicate on every delivery forever.
type queuedFrame struct {
	header     []byte
	body       []byte
	duplicated bool
}

// LoopbackOption configures a LoopbackSession at construction time.
type LoopbackOption func(*LoopbackSession)

// WithLoopbackLogger attaches a component logger.
func WithLoopbackLogger(l log.Log) LoopbackOption {
	return func(s *LoopbackSession) { s.logger = l }
}

// WithLoopbackMaxQueue bounds the undelivered message queue depth
// (spec.md §4.3 "outbound back-pressure"); deliverAll is invoked once
// the bound is exceeded while uncorked.
func WithLoopbackMaxQueue(n int) LoopbackOption {
	return func(s *LoopbackSession) { s.maxQueueSize = n }
}

// WithLoopbackSeed fixes the PRNG seed for deterministic test runs.
func WithLoopbackSeed(seed int64) LoopbackOption {
	return func(s *LoopbackSession) { s.rng = rand.New(rand.NewSource(seed)) }
}

// NewLoopbackSession returns a session with fault injection disabled
// (all probabilities zero). sch drives asynchronous delivery; callers
// that want fully synchronous tests can use an internal/scheduler.Loop
// and call DeliverAll.
func NewLoopbackSession(sch scheduler.Scheduler, opts ...LoopbackOption) *LoopbackSession {
	s := &LoopbackSession{
		scheduler:    sch,
		logger:       log.NewNop(),
		rng:          rand.New(rand.NewSource(1)),
		maxQueueSize: 64,
	}
	s.cond = sync.NewCond(&s.mu)
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Pair connects a and b as each other's delivery target (spec.md §4.3
// "LoopbackPeer missing target" is impossible once paired).
func Pair(a, b *LoopbackSession) {
	a.remote = b
	b.remote = a
}

// SetCorked pauses delivery without discarding queued messages.
func (s *LoopbackSession) SetCorked(c bool) {
	s.corked = c
	if !c {
		s.deliverAll()
	}
}

// Corked reports whether delivery is currently paused.
func (s *LoopbackSession) Corked() bool { return s.corked }

// SetDamageProbability sets the bit-flip probability. The original had a
// copy-paste bug routing every setter through mDamageProb; this core
// fixes that so each fault is independently controllable (spec.md §9
// Open Question).
func (s *LoopbackSession) SetDamageProbability(p float64) error {
	if err := checkProbRange(p); err != nil {
		return err
	}
	s.pDamage = p
	return nil
}

// SetDropProbability sets the drop probability.
func (s *LoopbackSession) SetDropProbability(p float64) error {
	if err := checkProbRange(p); err != nil {
		return err
	}
	s.pDrop = p
	return nil
}

// SetDuplicateProbability sets the duplication probability.
func (s *LoopbackSession) SetDuplicateProbability(p float64) error {
	if err := checkProbRange(p); err != nil {
		return err
	}
	s.pDuplicate = p
	return nil
}

// SetReorderProbability sets the reorder probability.
func (s *LoopbackSession) SetReorderProbability(p float64) error {
	if err := checkProbRange(p); err != nil {
		return err
	}
	s.pReorder = p
	return nil
}

func checkProbRange(p float64) error {
	if p < 0.0 || p > 1.0 {
		return fmt.Errorf("probability %f out of range: %w", p, ErrInvalidArgument)
	}
	return nil
}

// Stats returns a snapshot of the fault-injection counters.
func (s *LoopbackSession) Stats() LoopbackStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// Write implements io.Writer. wire.Framer always calls it twice per
// frame — once with the 4-byte length header, once with the body — and
// never interleaves two frames' writes, so reassembling a complete frame
// here only requires accumulating bytes until the declared length is
// satisfied.
func (s *LoopbackSession) Write(p []byte) (int, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return 0, ErrTransport
	}
	s.mu.Unlock()

	s.writeAccum = append(s.writeAccum, p...)
	for {
		if len(s.writeAccum) < wire.HeaderSize {
			break
		}
		bodyLen := binary.BigEndian.Uint32(s.writeAccum[:wire.HeaderSize])
		total := wire.HeaderSize + int(bodyLen)
		if len(s.writeAccum) < total {
			break
		}
		header := make([]byte, wire.HeaderSize)
		copy(header, s.writeAccum[:wire.HeaderSize])
		body := make([]byte, bodyLen)
		copy(body, s.writeAccum[wire.HeaderSize:total])
		s.writeAccum = s.writeAccum[total:]
		s.enqueueFrame(header, body)
	}
	return len(p), nil
}

// Read implements io.Reader, blocking until at least one fault-injected
// byte has been delivered from the paired remote or the session closes.
func (s *LoopbackSession) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for len(s.readBuf) == 0 && !s.closed {
		s.cond.Wait()
	}
	if len(s.readBuf) == 0 {
		return 0, io.EOF
	}
	n := copy(p, s.readBuf)
	s.readBuf = s.readBuf[n:]
	return n, nil
}

// Close implements io.Closer, unblocking any pending Read with io.EOF.
func (s *LoopbackSession) Close() error {
	s.mu.Lock()
	s.closed = true
	s.cond.Broadcast()
	s.mu.Unlock()
	return nil
}

// Send frames msg through the codec and Write, for tests that want to
// queue a message without a Session driving the framer.
func (s *LoopbackSession) Send(msg *wire.Message) error {
	buf, err := wireEncodeFrame(msg)
	if err != nil {
		s.logger.With().Error("encode loopback message", log.Err(err))
		return err
	}
	_, err = s.Write(buf)
	return err
}

// enqueueFrame queues a reassembled frame and, unless corked, schedules
// its delivery on the same scheduler every other callback runs on
// (spec.md §5) rather than requiring the caller to pump DeliverAll — a
// Session driving a LoopbackSession as its conn has no occasion to do
// that polling itself. Once an uncorked session's queue grows past
// maxQueueSize, the whole queue is drained synchronously (spec.md §4.3
// "outbound back-pressure"); a corked session's queue is not bounded.
func (s *LoopbackSession) enqueueFrame(header, body []byte) {
	s.mu.Lock()
	s.queue = append(s.queue, queuedFrame{header: header, body: body})
	corked := s.corked
	over := len(s.queue) > s.maxQueueSize
	s.mu.Unlock()
	if over && !corked {
		s.deliverAll()
		return
	}
	if !corked {
		s.scheduler.Post(s.deliverOne)
	}
}

// DeliverAll drains the queue, useful for tests that want synchronous
// delivery after uncorking.
func (s *LoopbackSession) DeliverAll() { s.deliverAll() }

func (s *LoopbackSession) deliverAll() {
	for {
		s.mu.Lock()
		pending := len(s.queue) > 0 && !s.corked
		s.mu.Unlock()
		if !pending {
			return
		}
		s.deliverOne()
	}
}

// deliverOne pops the head of the queue and applies fault injection in
// the fixed order duplicate, reorder, damage, drop (spec.md §4.3).
func (s *LoopbackSession) deliverOne() {
	if s.remote == nil {
		panic("loopback session missing paired remote")
	}
	s.mu.Lock()
	if len(s.queue) == 0 || s.corked {
		s.mu.Unlock()
		return
	}
	frame := s.queue[0]
	s.queue = s.queue[1:]
	s.mu.Unlock()
	body := frame.body

	if !frame.duplicated && s.rng.Float64() < s.pDuplicate {
		dup := make([]byte, len(body))
		copy(dup, body)
		s.mu.Lock()
		s.queue = append([]queuedFrame{{header: frame.header, body: dup, duplicated: true}}, s.queue...)
		s.stats.MessagesDuplicated++
		s.mu.Unlock()
		metrics.ReportLoopbackFault("duplicate")
	}

	if s.rng.Float64() < s.pReorder {
		s.mu.Lock()
		s.queue = append(s.queue, frame)
		s.stats.MessagesReordered++
		s.mu.Unlock()
		metrics.ReportLoopbackFault("reorder")
		return
	}

	if s.rng.Float64() < s.pDamage {
		if damageMessage(s.rng, body) {
			s.mu.Lock()
			s.stats.MessagesDamaged++
			s.mu.Unlock()
			metrics.ReportLoopbackFault("damage")
		}
	}

	if s.rng.Float64() < s.pDrop {
		s.mu.Lock()
		s.stats.MessagesDropped++
		s.mu.Unlock()
		metrics.ReportLoopbackFault("drop")
		return
	}

	s.mu.Lock()
	s.stats.BytesDelivered += uint64(len(frame.header) + len(body))
	s.mu.Unlock()
	remote := s.remote
	deliver := append(append([]byte{}, frame.header...), body...)
	s.scheduler.Post(func() { remote.deliverToReadBuf(deliver) })
}

func (s *LoopbackSession) deliverToReadBuf(frame []byte) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.readBuf = append(s.readBuf, frame...)
	s.cond.Broadcast()
	s.mu.Unlock()
}

// damageMessage XORs a fresh random bit in a fresh random byte of msg,
// nDamage times, where nDamage is drawn uniformly from [0, len(msg)-1]
// (spec.md §4.3 point 3; original_source's Peer.cpp:628-649 picks the
// same nDamage = uniform(0, size-1) and loops that many times, so zero
// iterations — no-op — is a valid outcome). It reports whether any bit
// was flipped; two flips of the same bit cancel, so true does not
// guarantee msg differs from its input.
func damageMessage(rng *rand.Rand, msg []byte) bool {
	if len(msg) == 0 {
		return false
	}
	nDamage := rng.Intn(len(msg))
	changed := false
	for i := 0; i < nDamage; i++ {
		idx := rng.Intn(len(msg))
		bit := uint(rng.Intn(8))
		msg[idx] ^= 1 << bit
		changed = true
	}
	return changed
}

func wireEncodeFrame(msg *wire.Message) ([]byte, error) {
	body, err := codec.Encode(msg)
	if err != nil {
		return nil, err
	}
	header := make([]byte, wire.HeaderSize)
	binary.BigEndian.PutUint32(header, uint32(len(body)))
	return append(header, body...), nil
}
