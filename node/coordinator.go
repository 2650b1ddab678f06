// Package node wires the ballot protocol (scp) to the peer overlay
// (overlay), the way the teacher's node package constructs independent
// subsystems and hands each one the collaborators the others expose
// (node/node.go: app.hare3 = hare3.New(app.clock, app.host, ...)).
// Without it the two "hard part" state machines spec.md §2 names —
// Session's handshake/dispatch and Slot's ballot state — are reachable
// only in isolation, never end to end.
package node

import (
	"github.com/kbacha/fbagreement/common/types"
	"github.com/kbacha/fbagreement/log"
	"github.com/kbacha/fbagreement/overlay"
	"github.com/kbacha/fbagreement/scp"
)

// Option configures a Coordinator at construction time.
type Option func(*Coordinator)

// WithLogger attaches a component logger.
func WithLogger(l log.Log) Option {
	return func(c *Coordinator) { c.logger = l }
}

// WithSlotOptions forwards opts to every scp.Slot the Coordinator
// creates (e.g. scp.WithBallotTimerBase, scp.WithQuorumSetHash).
func WithSlotOptions(opts ...scp.Option) Option {
	return func(c *Coordinator) { c.slotOpts = opts }
}

// Coordinator is the glue between a Session's dispatch loop and the
// ballot protocol: it implements overlay.ConsensusGateway, demultiplexing
// incoming envelopes to the scp.Slot that owns their slot index
// (creating it on first sight, spec.md §3 "Lifecycles"), and it hands
// each Slot a Broadcaster that fans outgoing envelopes back out through
// the peer registry. The slot coordinator named in spec.md §2 point 8 is
// scp.Slot itself; Coordinator is the routing layer above it, not a
// second instance of it.
type Coordinator struct {
	localNode scp.LocalNode
	scheduler scp.Scheduler
	registry  *overlay.Registry
	logger    log.Log
	slotOpts  []scp.Option

	slots map[uint64]*scp.Slot
}

// NewCoordinator returns a Coordinator with no slots yet created.
func NewCoordinator(localNode scp.LocalNode, sch scp.Scheduler, registry *overlay.Registry, opts ...Option) *Coordinator {
	c := &Coordinator{
		localNode: localNode,
		scheduler: sch,
		registry:  registry,
		logger:    log.NewNop(),
		slots:     make(map[uint64]*scp.Slot),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RecvStatement implements overlay.ConsensusGateway: spec.md §2's data
// flow step "peer session -> slot coordinator". It is always invoked
// from within a closure Session.onFrame already posted to the
// scheduler, so Coordinator needs no lock of its own (spec.md §5).
func (c *Coordinator) RecvStatement(env *types.SCPEnvelope) {
	c.Slot(env.Statement.Slot).ProcessEnvelope(env)
}

// Slot returns the ballot-protocol state machine for index, creating it
// with a registry-backed Broadcaster on first reference.
func (c *Coordinator) Slot(index uint64) *scp.Slot {
	if s, ok := c.slots[index]; ok {
		return s
	}
	opts := append([]scp.Option{scp.WithLogger(c.logger)}, c.slotOpts...)
	s := scp.NewSlot(index, c.localNode, c.scheduler, &registryBroadcaster{registry: c.registry}, opts...)
	c.slots[index] = s
	c.logger.With().Info("slot created", log.Uint64("index", index))
	return s
}

// registryBroadcaster adapts overlay.Registry's two-argument Broadcast
// (which excludes one originating session from fan-out) to
// scp.Broadcaster's single-argument Broadcast, which every Slot calls
// after a state change it wants the network to see (spec.md §2 data
// flow step "emitted envelope -> peer session"). A Slot only ever
// broadcasts a statement it produced itself, never one it is relaying
// on behalf of a session, so there is no sender to exclude.
type registryBroadcaster struct {
	registry *overlay.Registry
}

func (b *registryBroadcaster) Broadcast(env *types.SCPEnvelope) {
	b.registry.Broadcast(env, nil)
}
