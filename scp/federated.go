// Package scp implements the ballot protocol and federated voting that
// drive a single consensus slot through prepare, confirm, and
// externalize (spec.md §4.4, §4.5).
package scp

import "github.com/kbacha/fbagreement/common/types"

// LocalNode is the external collaborator consulted for quorum-set
// membership (spec.md §6). A concrete implementation owns the mapping
// from NodeID to that node's advertised QuorumSet; fetching an unknown
// node's quorum set (e.g. because it hasn't been downloaded yet) is
// represented by the second return value being false, not an error —
// quorum-set download/caching is out of scope (spec.md §1).
type LocalNode interface {
	// ID returns the local node's own identity.
	ID() types.NodeID
	// QuorumSet returns the quorum set most recently known for id.
	QuorumSet(id types.NodeID) (*types.QuorumSet, bool)
}

func collectMembers(qs *types.QuorumSet, into map[types.NodeID]struct{}) {
	for _, v := range qs.Validators {
		into[v] = struct{}{}
	}
	for i := range qs.InnerSets {
		collectMembers(&qs.InnerSets[i], into)
	}
}

// isQuorumSlice reports whether nodeSet contains a slice of qs: at least
// qs.Threshold of its direct validators and inner sets (each inner set
// counted as satisfied if nodeSet contains one of its own slices,
// recursively).
func isQuorumSlice(qs *types.QuorumSet, nodeSet map[types.NodeID]struct{}) bool {
	if qs == nil || qs.Threshold == 0 {
		return false
	}
	count := 0
	for _, v := range qs.Validators {
		if _, ok := nodeSet[v]; ok {
			count++
		}
	}
	for i := range qs.InnerSets {
		if isQuorumSlice(&qs.InnerSets[i], nodeSet) {
			count++
		}
	}
	return count >= int(qs.Threshold)
}

// isVBlocking reports whether nodeSet is v-blocking for qs: removing
// nodeSet from qs leaves no way to reach the threshold, so qs cannot be
// satisfied without at least one member of nodeSet (spec.md GLOSSARY).
func isVBlocking(qs *types.QuorumSet, nodeSet map[types.NodeID]struct{}) bool {
	if qs == nil || qs.Threshold == 0 {
		return false
	}
	leftTillBlock := 1 + qs.Weight() - int(qs.Threshold)
	for _, v := range qs.Validators {
		if _, ok := nodeSet[v]; ok {
			leftTillBlock--
			if leftTillBlock <= 0 {
				return true
			}
		}
	}
	for i := range qs.InnerSets {
		if isVBlocking(&qs.InnerSets[i], nodeSet) {
			leftTillBlock--
			if leftTillBlock <= 0 {
				return true
			}
		}
	}
	return false
}

// isQuorum reports whether there exists a quorum containing the local
// node all of whose other members satisfy filter; the local node itself
// is always kept in the candidate set and is not tested against filter
// (federatedAccept and federatedRatify test it separately). Start from every node
// reachable in the local quorum set's tree, then repeatedly drop any
// node that either fails filter or whose own quorum set no longer has a
// slice inside the shrinking candidate set, until the set stops
// shrinking. What remains is the largest candidate quorum; it is an
// actual quorum iff it also satisfies the local quorum set's own
// threshold.
func isQuorum(ln LocalNode, filter func(types.NodeID) bool) bool {
	local, ok := ln.QuorumSet(ln.ID())
	if !ok {
		return false
	}
	candidates := map[types.NodeID]struct{}{}
	collectMembers(local, candidates)
	candidates[ln.ID()] = struct{}{}

	for {
		next := make(map[types.NodeID]struct{}, len(candidates))
		shrunk := false
		for n := range candidates {
			if n == ln.ID() {
				next[n] = struct{}{}
				continue
			}
			qs, ok := ln.QuorumSet(n)
			if !ok || !filter(n) || !isQuorumSlice(qs, candidates) {
				shrunk = true
				continue
			}
			next[n] = struct{}{}
		}
		candidates = next
		if !shrunk || len(candidates) == 0 {
			break
		}
	}
	return isQuorumSlice(local, candidates)
}

// federatedAccept returns true iff either a v-blocking set of nodes in M
// satisfies accepted, or a quorum containing the local node satisfies
// voted (spec.md §4.5).
func federatedAccept(ln LocalNode, m map[types.NodeID]*types.SCPEnvelope, voted, accepted func(*types.SCPStatement) bool) bool {
	local, ok := ln.QuorumSet(ln.ID())
	if ok {
		blocking := map[types.NodeID]struct{}{}
		for n, env := range m {
			if accepted(&env.Statement) {
				blocking[n] = struct{}{}
			}
		}
		if isVBlocking(local, blocking) {
			return true
		}
	}
	if self, ok := m[ln.ID()]; !ok || !voted(&self.Statement) {
		return false
	}
	return isQuorum(ln, func(n types.NodeID) bool {
		env, ok := m[n]
		return ok && voted(&env.Statement)
	})
}

// federatedRatify returns true iff a quorum containing the local node
// satisfies voted (spec.md §4.5).
func federatedRatify(ln LocalNode, m map[types.NodeID]*types.SCPEnvelope, voted func(*types.SCPStatement) bool) bool {
	if self, ok := m[ln.ID()]; !ok || !voted(&self.Statement) {
		return false
	}
	return isQuorum(ln, func(n types.NodeID) bool {
		env, ok := m[n]
		return ok && voted(&env.Statement)
	})
}
