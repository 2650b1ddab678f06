package scp

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kbacha/fbagreement/common/types"
)

func TestIsQuorumSlice(t *testing.T) {
	a, b, c := randNodeID(), randNodeID(), randNodeID()
	qs := &types.QuorumSet{Threshold: 2, Validators: []types.NodeID{a, b, c}}

	assert.False(t, isQuorumSlice(qs, map[types.NodeID]struct{}{a: {}}))
	assert.True(t, isQuorumSlice(qs, map[types.NodeID]struct{}{a: {}, b: {}}))
	assert.True(t, isQuorumSlice(qs, map[types.NodeID]struct{}{a: {}, b: {}, c: {}}))
}

func TestIsVBlocking(t *testing.T) {
	a, b, c, d := randNodeID(), randNodeID(), randNodeID(), randNodeID()
	qs := &types.QuorumSet{Threshold: 3, Validators: []types.NodeID{a, b, c, d}}

	// blocking threshold is 1 + 4 - 3 = 2
	assert.False(t, isVBlocking(qs, map[types.NodeID]struct{}{a: {}}))
	assert.True(t, isVBlocking(qs, map[types.NodeID]struct{}{a: {}, b: {}}))
}

func TestIsQuorumSimpleMajority(t *testing.T) {
	self := randNodeID()
	b, c, d := randNodeID(), randNodeID(), randNodeID()
	node := newFlatNode(self, []types.NodeID{self, b, c, d}, 3)

	heard := map[types.NodeID]struct{}{self: {}, b: {}}
	assert.False(t, isQuorum(node, func(id types.NodeID) bool { _, ok := heard[id]; return ok }))

	heard[c] = struct{}{}
	assert.True(t, isQuorum(node, func(id types.NodeID) bool { _, ok := heard[id]; return ok }))
}

func TestFederatedAcceptByQuorum(t *testing.T) {
	self := randNodeID()
	b, c, d := randNodeID(), randNodeID(), randNodeID()
	node := newFlatNode(self, []types.NodeID{self, b, c, d}, 3)

	val := randValue()
	m := map[types.NodeID]*types.SCPEnvelope{
		self: env(self, 1, val),
		b:    env(b, 1, val),
		c:    env(c, 1, val),
	}
	voted := func(st *types.SCPStatement) bool { return st.Prepare.B.Value.Equal(val) }
	assert.True(t, federatedAccept(node, m, voted, voted))
}

func TestFederatedAcceptByVBlocking(t *testing.T) {
	self := randNodeID()
	b, c, d := randNodeID(), randNodeID(), randNodeID()
	node := newFlatNode(self, []types.NodeID{self, b, c, d}, 3)

	val := randValue()
	// only b and c accepted; with threshold 3/4, blocking set size is
	// 1+4-3=2, so two acceptors are enough even though no quorum voted.
	m := map[types.NodeID]*types.SCPEnvelope{
		b: env(b, 1, val),
		c: env(c, 1, val),
	}
	neverVoted := func(*types.SCPStatement) bool { return false }
	accepted := func(st *types.SCPStatement) bool { return st.Prepare.B.Value.Equal(val) }
	assert.True(t, federatedAccept(node, m, neverVoted, accepted))
}

func TestFederatedRatifyRequiresQuorum(t *testing.T) {
	self := randNodeID()
	b, c, d := randNodeID(), randNodeID(), randNodeID()
	node := newFlatNode(self, []types.NodeID{self, b, c, d}, 3)

	val := randValue()
	m := map[types.NodeID]*types.SCPEnvelope{
		b: env(b, 1, val),
		c: env(c, 1, val),
	}
	voted := func(st *types.SCPStatement) bool { return st.Prepare.B.Value.Equal(val) }
	assert.False(t, federatedRatify(node, m, voted))

	m[self] = env(self, 1, val)
	assert.True(t, federatedRatify(node, m, voted))
}

func env(id types.NodeID, counter uint32, val types.Value) *types.SCPEnvelope {
	return &types.SCPEnvelope{Statement: types.SCPStatement{
		NodeID: id,
		Slot:   1,
		Type:   types.StatementPrepare,
		Prepare: &types.PrepareBody{
			B: types.Ballot{Counter: counter, Value: val},
		},
	}}
}
