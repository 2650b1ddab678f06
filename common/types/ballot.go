package types

import (
	"bytes"

	"github.com/spacemeshos/go-scale"
)

// Value is the opaque payload a ballot votes for. Its internal structure
// (a transaction set, in a full deployment) is an external collaborator
// (spec.md §1); the core only compares, copies, and hashes it.
type Value []byte

// Equal reports whether two values are byte-identical.
func (v Value) Equal(o Value) bool { return bytes.Equal(v, o) }

// Compare returns -1, 0, or 1 per bytes.Compare, used to break ties
// between equal-counter ballots (spec.md §4.4 "Split vote forces bump").
func (v Value) Compare(o Value) int { return bytes.Compare(v, o) }

// Clone returns an independent copy of the value.
func (v Value) Clone() Value {
	out := make(Value, len(v))
	copy(out, v)
	return out
}

// EncodeScale implements scale.Encodable.
func (v *Value) EncodeScale(e *scale.Encoder) (int, error) {
	return scale.EncodeByteSliceWithLimit(e, *v, maxValueSize)
}

// DecodeScale implements scale.Decodable.
func (v *Value) DecodeScale(d *scale.Decoder) (int, error) {
	b, n, err := scale.DecodeByteSliceWithLimit(d, maxValueSize)
	if err != nil {
		return n, err
	}
	*v = b
	return n, nil
}

// maxValueSize bounds a single ballot value, well under the 16 MiB
// overlay message cap (spec.md §6).
const maxValueSize = 1 << 20

// Ballot is a (counter, value) pair. Comparison is lexicographic by
// counter then value (spec.md §3).
type Ballot struct {
	Counter uint32
	Value   Value
}

// IsZero reports whether the ballot is the unset zero value.
func (b Ballot) IsZero() bool { return b.Counter == 0 && len(b.Value) == 0 }

// Compatible reports whether two ballots share a value, ignoring counter.
func (b Ballot) Compatible(o Ballot) bool { return b.Value.Equal(o.Value) }

// Less reports whether b sorts strictly before o: lower counter first,
// then lexicographically smaller value.
func (b Ballot) Less(o Ballot) bool {
	if b.Counter != o.Counter {
		return b.Counter < o.Counter
	}
	return b.Value.Compare(o.Value) < 0
}

// LessOrEqual reports b <= o under the same ordering as Less.
func (b Ballot) LessOrEqual(o Ballot) bool {
	return b.Equal(o) || b.Less(o)
}

// Greater reports whether b sorts strictly after o.
func (b Ballot) Greater(o Ballot) bool { return o.Less(b) }

// GreaterOrEqual reports b >= o.
func (b Ballot) GreaterOrEqual(o Ballot) bool { return o.LessOrEqual(b) }

// Equal reports ballot equality (both counter and value).
func (b Ballot) Equal(o Ballot) bool {
	return b.Counter == o.Counter && b.Value.Equal(o.Value)
}

// String renders the ballot for logging.
func (b Ballot) String() string {
	if b.IsZero() {
		return "ballot(nil)"
	}
	return "(" + itoa(b.Counter) + "," + shortHex(b.Value) + ")"
}

// EncodeScale implements scale.Encodable.
func (b *Ballot) EncodeScale(e *scale.Encoder) (int, error) {
	var total int
	n, err := scale.EncodeCompact32(e, b.Counter)
	if err != nil {
		return total, err
	}
	total += n
	n, err = b.Value.EncodeScale(e)
	if err != nil {
		return total, err
	}
	total += n
	return total, nil
}

// DecodeScale implements scale.Decodable.
func (b *Ballot) DecodeScale(d *scale.Decoder) (int, error) {
	var total int
	counter, n, err := scale.DecodeCompact32(d)
	if err != nil {
		return total, err
	}
	total += n
	b.Counter = counter
	n, err = b.Value.DecodeScale(d)
	if err != nil {
		return total, err
	}
	total += n
	return total, nil
}

// OptBallot is a first-class optional ballot, used for b, p, p', h, c
// (spec.md §9 "optional ballot fields... not nullable pointers").
type OptBallot struct {
	Present bool
	Ballot  Ballot
}

// Some wraps a present ballot.
func Some(b Ballot) OptBallot { return OptBallot{Present: true, Ballot: b} }

// None is the canonical absent optional ballot.
var None = OptBallot{}

// Get returns the ballot and whether it was present, mirroring Go's
// comma-ok map-access idiom.
func (o OptBallot) Get() (Ballot, bool) { return o.Ballot, o.Present }
