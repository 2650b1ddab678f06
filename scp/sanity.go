package scp

import (
	"fmt"

	"github.com/kbacha/fbagreement/common/types"
)

// isStatementSane validates the structural well-formedness of a
// statement before it is allowed to touch state (spec.md §4.4 step 1).
// Signature verification itself is an external collaborator (spec.md
// §1); this only checks the fields the core itself depends on.
func isStatementSane(st *types.SCPStatement) error {
	if st == nil {
		return fmt.Errorf("nil statement: %w", ErrInvalidStatement)
	}
	switch st.Type {
	case types.StatementPrepare:
		p := st.Prepare
		if p == nil {
			return fmt.Errorf("prepare statement missing body: %w", ErrInvalidStatement)
		}
		if p.B.Counter == 0 {
			return fmt.Errorf("prepare ballot counter must be > 0: %w", ErrInvalidStatement)
		}
		if pb, ok := p.Prepared.Get(); ok && pb.Greater(p.B) {
			return fmt.Errorf("prepared ballot exceeds current ballot: %w", ErrInvalidStatement)
		}
		if ppb, ok := p.PreparedPrime.Get(); ok {
			pb, hasP := p.Prepared.Get()
			if !hasP {
				return fmt.Errorf("prepared-prime present without prepared: %w", ErrInvalidStatement)
			}
			if !ppb.Less(pb) || ppb.Compatible(pb) {
				return fmt.Errorf("prepared-prime must be strictly less than and incompatible with prepared: %w", ErrInvalidStatement)
			}
		}
	case types.StatementConfirm:
		c := st.Confirm
		if c == nil {
			return fmt.Errorf("confirm statement missing body: %w", ErrInvalidStatement)
		}
		if c.B.Counter == 0 {
			return fmt.Errorf("confirm ballot counter must be > 0: %w", ErrInvalidStatement)
		}
		if c.NCommit > c.NH {
			return fmt.Errorf("confirm nCommit exceeds nH: %w", ErrInvalidStatement)
		}
		if c.NH > c.B.Counter {
			return fmt.Errorf("confirm nH exceeds ballot counter: %w", ErrInvalidStatement)
		}
	case types.StatementExternalize:
		x := st.Externalize
		if x == nil {
			return fmt.Errorf("externalize statement missing body: %w", ErrInvalidStatement)
		}
		if x.Commit.Counter == 0 {
			return fmt.Errorf("externalize commit counter must be > 0: %w", ErrInvalidStatement)
		}
		if x.NH < x.Commit.Counter {
			return fmt.Errorf("externalize nH below commit counter: %w", ErrInvalidStatement)
		}
	case types.StatementNominate:
		return fmt.Errorf("nomination statements are not handled by this core: %w", ErrInvalidStatement)
	default:
		return fmt.Errorf("unknown statement type %d: %w", st.Type, ErrInvalidStatement)
	}
	return nil
}

// orderKey is the composite (type, b.counter, p.counter, h.counter)
// ordering key statements are compared by to decide whether an arriving
// statement supersedes the one currently stored in M for its sender
// (spec.md §3, §4.4 step 2).
type orderKey struct {
	typeRank int
	bCounter uint32
	pCounter uint32
	hCounter uint32
}

func (k orderKey) less(o orderKey) bool {
	if k.typeRank != o.typeRank {
		return k.typeRank < o.typeRank
	}
	if k.bCounter != o.bCounter {
		return k.bCounter < o.bCounter
	}
	if k.pCounter != o.pCounter {
		return k.pCounter < o.pCounter
	}
	return k.hCounter < o.hCounter
}

func statementOrderKey(st *types.SCPStatement) orderKey {
	switch st.Type {
	case types.StatementPrepare:
		p := st.Prepare
		var pc uint32
		if pb, ok := p.Prepared.Get(); ok {
			pc = pb.Counter
		}
		return orderKey{typeRank: 0, bCounter: p.B.Counter, pCounter: pc, hCounter: p.NH}
	case types.StatementConfirm:
		c := st.Confirm
		return orderKey{typeRank: 1, bCounter: c.B.Counter, pCounter: c.NPrepared, hCounter: c.NH}
	case types.StatementExternalize:
		x := st.Externalize
		return orderKey{typeRank: 2, bCounter: x.Commit.Counter, pCounter: x.Commit.Counter, hCounter: x.NH}
	default:
		return orderKey{typeRank: -1}
	}
}

// isNewerStatement reports whether candidate strictly supersedes current
// under the composite ordering M uses to decide whether to replace a
// voter's latest envelope (spec.md §3 "M[n] holds only the newest
// statement"). A nil current is always superseded.
func isNewerStatement(current, candidate *types.SCPStatement) bool {
	if current == nil {
		return true
	}
	return statementOrderKey(current).less(statementOrderKey(candidate))
}
