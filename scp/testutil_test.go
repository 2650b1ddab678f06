package scp

import (
	"crypto/rand"
	"time"

	"github.com/kbacha/fbagreement/common/types"
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

// flatNode is a LocalNode backed by a flat map of quorum sets, for
// tests that don't need recursive inner sets.
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

// noopScheduler discards every posted task and never fires its timers;
// used where a Slot needs a Scheduler but the test drives timers itself.
type noopScheduler struct{}

func (noopScheduler) Post(fn func()) {}

func (noopScheduler) ScheduleAfter(_ time.Duration, fn func()) Cancellable {
	return noopCancellable{}
}

type noopCancellable struct{}

func (noopCancellable) Cancel() {}
