package node

import (
	"crypto/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kbacha/fbagreement/common/types"
	"github.com/kbacha/fbagreement/internal/scheduler"
	"github.com/kbacha/fbagreement/overlay"
	"github.com/kbacha/fbagreement/overlay/wire"
)

func randNodeID() types.NodeID {
	var id types.NodeID
	_, _ = rand.Read(id[:])
	return id
}

func randValue() types.Value {
	v := make(types.Value, 8)
	_, _ = rand.Read(v)
	return v
}

// flatNode is a minimal scp.LocalNode backed by a flat quorum set,
// mirroring scp's own test helper of the same name.
type flatNode struct {
	self types.NodeID
	qs   map[types.NodeID]*types.QuorumSet
}

func newFlatNode(self types.NodeID, members []types.NodeID, threshold uint32) *flatNode {
	qs := &types.QuorumSet{Threshold: threshold, Validators: members}
	n := &flatNode{self: self, qs: map[types.NodeID]*types.QuorumSet{}}
	n.qs[self] = qs
	for _, m := range members {
		n.qs[m] = qs
	}
	return n
}

func (n *flatNode) ID() types.NodeID { return n.self }

func (n *flatNode) QuorumSet(id types.NodeID) (*types.QuorumSet, bool) {
	qs, ok := n.qs[id]
	return qs, ok
}

// noopOverlayGateway and noopHerderGateway satisfy Session's remaining
// collaborators; this test only exercises the FBA_MESSAGE path.
type noopOverlayGateway struct{}

func (noopOverlayGateway) FetchQuorumSet(types.Hash32, bool) (*types.QuorumSet, bool) {
	return nil, false
}
func (noopOverlayGateway) RecvQuorumSet(*types.QuorumSet)                  {}
func (noopOverlayGateway) DoesntHaveQSet(types.Hash32, *overlay.Session)   {}
func (noopOverlayGateway) BroadcastMessage(*wire.Message, *overlay.Session) {}
func (noopOverlayGateway) RecvFloodedMsg([]byte, *wire.Message, uint64, *overlay.Session) {
}

type noopHerderGateway struct{}

func (noopHerderGateway) FetchTxSet(types.Hash32, bool) ([]byte, bool) { return nil, false }
func (noopHerderGateway) RecvTransactionSet([]byte)                   {}
func (noopHerderGateway) RecvTransaction([]byte) bool                 { return false }
func (noopHerderGateway) DoesntHaveTxSet(types.Hash32, *overlay.Session) {}

// TestCoordinatorRoutesEnvelopeEndToEnd is spec.md §2's data flow,
// exercised in full: a statement bumped locally on node A's slot is
// broadcast through its registry, crosses the loopback transport as
// real framed bytes, is decoded and dispatched by node B's session, and
// lands in node B's own Coordinator-routed Slot for the same index —
// the path DESIGN.md previously and incorrectly claimed needed no glue
// code at all.
func TestCoordinatorRoutesEnvelopeEndToEnd(t *testing.T) {
	loop := scheduler.NewLoop(64)
	defer loop.Stop()

	selfA, selfB := randNodeID(), randNodeID()
	nodeA := newFlatNode(selfA, []types.NodeID{selfA, selfB}, 2)
	nodeB := newFlatNode(selfB, []types.NodeID{selfA, selfB}, 2)

	regA := overlay.NewRegistry()
	regB := overlay.NewRegistry()
	coordA := NewCoordinator(nodeA, loop, regA)
	coordB := NewCoordinator(nodeB, loop, regB)

	la := overlay.NewLoopbackSession(loop)
	lb := overlay.NewLoopbackSession(loop)
	overlay.Pair(la, lb)

	sessA := overlay.NewSession(la, overlay.Initiator, loop, regA, noopHerderGateway{}, noopOverlayGateway{}, coordA, 1, "testA", 1)
	sessB := overlay.NewSession(lb, overlay.Acceptor, loop, regB, noopHerderGateway{}, noopOverlayGateway{}, coordB, 1, "testB", 2)

	require.Eventually(t, func() bool {
		return sessA.State() == overlay.GotHello && sessB.State() == overlay.GotHello
	}, time.Second, time.Millisecond, "handshake did not complete")

	val := randValue()
	coordA.Slot(1).BumpState(val, true)

	// A alone is v-blocking for B's 2-of-2 quorum set, so B accepts A's
	// ballot as prepared on receipt.
	require.Eventually(t, func() bool {
		snap := coordB.Slot(1).CurrentState()
		p, ok := snap.P.Get()
		return ok && p.Value.Equal(val)
	}, time.Second, time.Millisecond, "node B's slot never saw node A's statement")

	assert.Equal(t, uint64(1), coordB.Slot(1).Index())
}
