package scp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kbacha/fbagreement/common/types"
)

func prepareEnv(id types.NodeID, slot uint64, b types.Ballot, prepared, preparedPrime types.OptBallot, nc, nh uint32) *types.SCPEnvelope {
	return &types.SCPEnvelope{Statement: types.SCPStatement{
		NodeID: id,
		Slot:   slot,
		Type:   types.StatementPrepare,
		Prepare: &types.PrepareBody{
			B:             b,
			Prepared:      prepared,
			PreparedPrime: preparedPrime,
			NC:            nc,
			NH:            nh,
		},
	}}
}

// TestSlotReachesPreparedConfirmed drives a 4-node, threshold-3 slot
// through two rounds of Prepare statements and checks it reaches a
// confirmed-prepared high ballot (spec.md §8 "single-slot externalize",
// first half: confirming a value is prepared before any commit round).
func TestSlotReachesPreparedConfirmed(t *testing.T) {
	self, b, c, d := randNodeID(), randNodeID(), randNodeID(), randNodeID()
	node := newFlatNode(self, []types.NodeID{self, b, c, d}, 3)
	val := randValue()
	ballot1 := types.Ballot{Counter: 1, Value: val}

	slot := NewSlot(1, node, noopScheduler{}, nil)
	require.True(t, slot.BumpState(val, true))
	b0, ok := slot.state.B.Get()
	require.True(t, ok)
	require.True(t, b0.Equal(ballot1))

	// Round 1: b, c, d simply vote for ballot1.
	slot.ProcessEnvelope(prepareEnv(b, 1, ballot1, types.None, types.None, 0, 0))
	slot.ProcessEnvelope(prepareEnv(c, 1, ballot1, types.None, types.None, 0, 0))
	slot.ProcessEnvelope(prepareEnv(d, 1, ballot1, types.None, types.None, 0, 0))

	p, ok := slot.state.P.Get()
	require.True(t, ok, "expected a prepared ballot after round 1")
	assert.True(t, p.Equal(ballot1))

	// Round 2: b and c now also report ballot1 as their own prepared
	// ballot, forming a quorum (self, b, c) for prepared-confirmed.
	slot.ProcessEnvelope(prepareEnv(b, 1, ballot1, types.Some(ballot1), types.None, 0, 0))
	slot.ProcessEnvelope(prepareEnv(c, 1, ballot1, types.Some(ballot1), types.None, 0, 0))

	h, ok := slot.state.H.Get()
	require.True(t, ok, "expected a confirmed-prepared high ballot after round 2")
	assert.True(t, h.Equal(ballot1))
	// No commit boundary was ever announced (NC/NH stayed zero), so the
	// slot has nothing to accept-commit yet and stays in Prepare.
	assert.Equal(t, PhasePrepare, slot.Phase())
}

// TestSlotCommitAndExternalize exercises attemptAcceptCommit and
// attemptConfirmCommit directly against a hand-built quorum of commit
// messages, covering the second half of the single-slot externalize
// scenario (spec.md §8) without re-deriving the prepare round.
func TestSlotCommitAndExternalize(t *testing.T) {
	self, b, c, d := randNodeID(), randNodeID(), randNodeID(), randNodeID()
	node := newFlatNode(self, []types.NodeID{self, b, c, d}, 3)
	val := randValue()
	h := types.Ballot{Counter: 3, Value: val}

	slot := NewSlot(1, node, noopScheduler{}, nil)
	slot.state.Phase = PhasePrepare
	slot.state.B = types.Some(h)
	slot.state.P = types.Some(h)
	slot.state.H = types.Some(h)
	slot.state.M[self] = prepareEnv(self, 1, h, types.Some(h), types.None, 1, 3)
	slot.state.M[b] = prepareEnv(b, 1, h, types.Some(h), types.None, 1, 3)
	slot.state.M[c] = prepareEnv(c, 1, h, types.Some(h), types.None, 1, 3)

	assert.True(t, slot.attemptAcceptCommit(&slot.state.M[b].Statement))
	assert.Equal(t, PhaseConfirm, slot.Phase())
	c1, ok := slot.state.C.Get()
	require.True(t, ok)
	assert.Equal(t, uint32(1), c1.Counter)

	// Swap in Confirm statements from b and c ratifying the same range,
	// which should federatedRatify over {self, b, c} and externalize.
	slot.state.M[self] = confirmEnv(self, 1, h, 1, 1, 3)
	slot.state.M[b] = confirmEnv(b, 1, h, 1, 1, 3)
	slot.state.M[c] = confirmEnv(c, 1, h, 1, 1, 3)

	assert.True(t, slot.attemptConfirmCommit(&slot.state.M[b].Statement))
	assert.Equal(t, PhaseExternalize, slot.Phase())
	commit, ok := slot.state.C.Get()
	require.True(t, ok)
	assert.True(t, commit.Value.Equal(val))
}

func confirmEnv(id types.NodeID, slot uint64, b types.Ballot, nPrepared, nCommit, nH uint32) *types.SCPEnvelope {
	return &types.SCPEnvelope{Statement: types.SCPStatement{
		NodeID: id,
		Slot:   slot,
		Type:   types.StatementConfirm,
		Confirm: &types.ConfirmBody{
			B:         b,
			NPrepared: nPrepared,
			NCommit:   nCommit,
			NH:        nH,
		},
	}}
}

func TestSlotAbandonBallotBumpsCounter(t *testing.T) {
	self := randNodeID()
	node := newFlatNode(self, []types.NodeID{self}, 1)
	slot := NewSlot(1, node, noopScheduler{}, nil)
	val := randValue()
	require.True(t, slot.BumpState(val, true))
	b0, _ := slot.state.B.Get()

	assert.True(t, slot.AbandonBallot(0))
	b1, _ := slot.state.B.Get()
	assert.Equal(t, b0.Counter+1, b1.Counter)
}
