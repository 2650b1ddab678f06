package scp

import "github.com/kbacha/fbagreement/common/types"

// statementsEqual reports deep equality of two statements of the same
// type, used to suppress re-emitting an identical envelope (spec.md
// §4.4 step 6 "never emit two identical envelopes in succession").
// types.SCPStatement embeds slice-bearing fields, so it cannot be
// compared with ==.
func statementsEqual(a, b *types.SCPStatement) bool {
	if a.Type != b.Type || a.NodeID != b.NodeID || a.Slot != b.Slot {
		return false
	}
	switch a.Type {
	case types.StatementPrepare:
		pa, pb := a.Prepare, b.Prepare
		if pa == nil || pb == nil {
			return pa == pb
		}
		if !pa.B.Equal(pb.B) || pa.NC != pb.NC || pa.NH != pb.NH || pa.QuorumSetHash != pb.QuorumSetHash {
			return false
		}
		if !optBallotEqual(pa.Prepared, pb.Prepared) || !optBallotEqual(pa.PreparedPrime, pb.PreparedPrime) {
			return false
		}
		return true
	case types.StatementConfirm:
		ca, cb := a.Confirm, b.Confirm
		if ca == nil || cb == nil {
			return ca == cb
		}
		return ca.B.Equal(cb.B) && ca.NPrepared == cb.NPrepared && ca.NCommit == cb.NCommit &&
			ca.NH == cb.NH && ca.QuorumSetHash == cb.QuorumSetHash
	case types.StatementExternalize:
		xa, xb := a.Externalize, b.Externalize
		if xa == nil || xb == nil {
			return xa == xb
		}
		return xa.Commit.Equal(xb.Commit) && xa.NH == xb.NH && xa.CommitQuorumSetHash == xb.CommitQuorumSetHash
	default:
		return false
	}
}

func optBallotEqual(a, b types.OptBallot) bool {
	ab, aok := a.Get()
	bb, bok := b.Get()
	if aok != bok {
		return false
	}
	if !aok {
		return true
	}
	return ab.Equal(bb)
}
