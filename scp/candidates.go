package scp

import (
	"sort"

	"github.com/kbacha/fbagreement/common/types"
)

// getWorkingBallot returns the ballot that best represents a statement's
// current position for the purposes of "voted prepared" comparisons:
// the current ballot for Prepare, the implied (nPrepared, value) ballot
// for Confirm, and the commit ballot for Externalize (original_source's
// BallotProtocol.h getWorkingBallot: "retrieve b for PREPARE, p for
// CONFIRM or c for EXTERNALIZE").
func getWorkingBallot(st *types.SCPStatement) types.Ballot {
	switch st.Type {
	case types.StatementPrepare:
		return st.Prepare.B
	case types.StatementConfirm:
		return types.Ballot{Counter: st.Confirm.NPrepared, Value: st.Confirm.B.Value}
	case types.StatementExternalize:
		return st.Externalize.Commit
	default:
		return types.Ballot{}
	}
}

// votedPrepared reports whether st votes to prepare B: B is at or below
// st's working ballot and shares its value.
func votedPrepared(b types.Ballot, st *types.SCPStatement) bool {
	wb := getWorkingBallot(st)
	return b.LessOrEqual(wb) && b.Compatible(wb)
}

// hasPreparedBallot reports whether st has already accepted B as
// prepared: B is at or below one of st's accepted-prepared ballots (p,
// p' for Prepare; the implied p for Confirm) and compatible with it, or
// (for Externalize, where the value is irreversibly fixed) B merely
// shares the externalized value (original_source's hasPreparedBallot).
func hasPreparedBallot(b types.Ballot, st *types.SCPStatement) bool {
	switch st.Type {
	case types.StatementPrepare:
		if pb, ok := st.Prepare.Prepared.Get(); ok && b.LessOrEqual(pb) && b.Compatible(pb) {
			return true
		}
		if ppb, ok := st.Prepare.PreparedPrime.Get(); ok && b.LessOrEqual(ppb) && b.Compatible(ppb) {
			return true
		}
		return false
	case types.StatementConfirm:
		p := types.Ballot{Counter: st.Confirm.NPrepared, Value: st.Confirm.B.Value}
		return b.LessOrEqual(p) && b.Compatible(p)
	case types.StatementExternalize:
		return b.Value.Equal(st.Externalize.Commit.Value)
	default:
		return false
	}
}

// commitPredicate reports whether st commits ballot b for every counter
// in [lo, hi] (original_source's commitPredicate).
func commitPredicate(b types.Ballot, lo, hi uint32, st *types.SCPStatement) bool {
	switch st.Type {
	case types.StatementPrepare:
		p := st.Prepare
		if p.NC == 0 || !b.Value.Equal(p.B.Value) {
			return false
		}
		return p.NC <= lo && hi <= p.NH
	case types.StatementConfirm:
		c := st.Confirm
		if !b.Value.Equal(c.B.Value) {
			return false
		}
		return c.NCommit <= lo && hi <= c.NH
	case types.StatementExternalize:
		x := st.Externalize
		if !b.Value.Equal(x.Commit.Value) {
			return false
		}
		// Externalize is final: every counter at or above the commit
		// counter is considered committed forever (spec.md §3 "in
		// Externalize, c and h are fixed and never change").
		return x.Commit.Counter <= lo
	default:
		return false
	}
}

// getPrepareCandidates derives the candidate ballots attemptPreparedAccept
// considers from hint's own fields: its current ballot, its accepted-
// prepared ballots, and its nC/nH counters paired with hint's value
// (spec.md §4.4 step 1).
func getPrepareCandidates(hint *types.SCPStatement) []types.Ballot {
	var out []types.Ballot
	add := func(b types.Ballot) {
		if b.IsZero() {
			return
		}
		for _, e := range out {
			if e.Equal(b) {
				return
			}
		}
		out = append(out, b)
	}

	switch hint.Type {
	case types.StatementPrepare:
		p := hint.Prepare
		add(p.B)
		if pb, ok := p.Prepared.Get(); ok {
			add(pb)
		}
		if ppb, ok := p.PreparedPrime.Get(); ok {
			add(ppb)
		}
		if p.NC > 0 {
			add(types.Ballot{Counter: p.NC, Value: p.B.Value})
		}
		if p.NH > 0 {
			add(types.Ballot{Counter: p.NH, Value: p.B.Value})
		}
	case types.StatementConfirm:
		c := hint.Confirm
		add(c.B)
		if c.NPrepared > 0 {
			add(types.Ballot{Counter: c.NPrepared, Value: c.B.Value})
		}
		if c.NCommit > 0 {
			add(types.Ballot{Counter: c.NCommit, Value: c.B.Value})
		}
		if c.NH > 0 {
			add(types.Ballot{Counter: c.NH, Value: c.B.Value})
		}
	case types.StatementExternalize:
		x := hint.Externalize
		add(x.Commit)
		if x.NH > 0 {
			add(types.Ballot{Counter: x.NH, Value: x.Commit.Value})
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[j].Less(out[i]) }) // descending
	return out
}

// getCommitBoundaries collects the nC/nH (or commit-counter) bounds of
// every statement in m whose value is compatible with h, forming the set
// of counters findExtendedInterval scans over (spec.md §4.4 step 3).
func getCommitBoundaries(h types.Ballot, m map[types.NodeID]*types.SCPEnvelope) []uint32 {
	set := map[uint32]struct{}{}
	for _, env := range m {
		st := &env.Statement
		switch st.Type {
		case types.StatementPrepare:
			if st.Prepare.NC == 0 || !st.Prepare.B.Value.Equal(h.Value) {
				continue
			}
			set[st.Prepare.NC] = struct{}{}
			set[st.Prepare.NH] = struct{}{}
		case types.StatementConfirm:
			if !st.Confirm.B.Value.Equal(h.Value) {
				continue
			}
			set[st.Confirm.NCommit] = struct{}{}
			set[st.Confirm.NH] = struct{}{}
		case types.StatementExternalize:
			if !st.Externalize.Commit.Value.Equal(h.Value) {
				continue
			}
			set[st.Externalize.Commit.Counter] = struct{}{}
			set[st.Externalize.NH] = struct{}{}
		}
	}
	out := make([]uint32, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// findExtendedInterval finds the widest [lo, hi] drawn from boundaries,
// covering the current candidate if one exists, for which pred holds
// (spec.md §4.4 steps 3-4; original_source's findExtendedInterval).
func findExtendedInterval(hasCurrent bool, curLo, curHi uint32, boundaries []uint32, pred func(lo, hi uint32) bool) (lo, hi uint32, ok bool) {
	for i := 0; i < len(boundaries); i++ {
		for j := len(boundaries) - 1; j >= i; j-- {
			candLo, candHi := boundaries[i], boundaries[j]
			if hasCurrent && !(candLo <= curLo && curHi <= candHi) {
				continue
			}
			if !pred(candLo, candHi) {
				continue
			}
			if !ok || candHi-candLo > hi-lo {
				lo, hi, ok = candLo, candHi, true
			}
		}
	}
	return lo, hi, ok
}
