package scp

import "github.com/kbacha/fbagreement/common/types"

// Phase is one of the three one-way phases a slot moves through
// (spec.md §3).
type Phase uint8

const (
	// PhasePrepare is the initial phase.
	PhasePrepare Phase = iota
	// PhaseConfirm follows Prepare once a commit range is accepted.
	PhaseConfirm
	// PhaseExternalize is terminal: a value has been irreversibly
	// chosen for the slot.
	PhaseExternalize
)

func (p Phase) String() string {
	switch p {
	case PhasePrepare:
		return "PREPARE"
	case PhaseConfirm:
		return "CONFIRM"
	case PhaseExternalize:
		return "EXTERNALIZE"
	default:
		return "UNKNOWN"
	}
}

// maxMessageLevel bounds advanceSlot's re-entrant recursion (spec.md §3,
// §4.4, §5).
const maxMessageLevel = 8

// State is the per-slot ballot protocol state (spec.md §3 "Per-slot
// state"). Zero value is the initial state of a freshly created slot:
// phase Prepare, every optional ballot absent.
type State struct {
	B  types.OptBallot
	P  types.OptBallot
	Pp types.OptBallot // P-prime
	H  types.OptBallot
	C  types.OptBallot

	Phase Phase

	M map[types.NodeID]*types.SCPEnvelope

	HeardFromQuorum bool
	messageLevel    int

	LastEmitted *types.SCPEnvelope
}

// NewState returns the zero-valued initial state for a slot, created on
// first envelope for that slot index (spec.md §3 "Lifecycles").
func NewState() *State {
	return &State{M: make(map[types.NodeID]*types.SCPEnvelope)}
}
