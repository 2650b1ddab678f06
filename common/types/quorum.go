package types

import "github.com/spacemeshos/go-scale"

// QuorumSet is a recursive threshold structure over validators: a
// candidate set satisfies it iff at least Threshold of its direct
// Validators and InnerSets (each inner set counted as one vote, with its
// own recursive Threshold) are present. This is the "quorum set" spec.md
// §4.5 and §6 name as owned by the LocalNode collaborator.
type QuorumSet struct {
	Threshold  uint32
	Validators []NodeID
	InnerSets  []QuorumSet
}

// Weight returns the number of direct members this quorum set's
// threshold is evaluated over (validators plus inner sets).
func (q *QuorumSet) Weight() int { return len(q.Validators) + len(q.InnerSets) }

// IsSane reports whether the threshold is achievable and every inner set
// is itself sane, recursively (spec.md §4.4 isStatementSane's general
// well-formedness requirement extended to quorum sets).
func (q *QuorumSet) IsSane(maxDepth int) bool {
	if q == nil {
		return false
	}
	if q.Weight() == 0 || q.Threshold == 0 || int(q.Threshold) > q.Weight() {
		return false
	}
	if maxDepth <= 0 {
		return len(q.InnerSets) == 0
	}
	for i := range q.InnerSets {
		if !q.InnerSets[i].IsSane(maxDepth - 1) {
			return false
		}
	}
	return true
}

// EncodeScale implements scale.Encodable.
func (q *QuorumSet) EncodeScale(e *scale.Encoder) (int, error) {
	var total int
	n, err := scale.EncodeCompact32(e, q.Threshold)
	if err != nil {
		return total, err
	}
	total += n
	n, err = scale.EncodeCompact32(e, uint32(len(q.Validators)))
	if err != nil {
		return total, err
	}
	total += n
	for i := range q.Validators {
		n, err = (&q.Validators[i]).EncodeScale(e)
		if err != nil {
			return total, err
		}
		total += n
	}
	n, err = scale.EncodeCompact32(e, uint32(len(q.InnerSets)))
	if err != nil {
		return total, err
	}
	total += n
	for i := range q.InnerSets {
		n, err = q.InnerSets[i].EncodeScale(e)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

// DecodeScale implements scale.Decodable.
func (q *QuorumSet) DecodeScale(d *scale.Decoder) (int, error) {
	var total int
	threshold, n, err := scale.DecodeCompact32(d)
	if err != nil {
		return total, err
	}
	total += n
	q.Threshold = threshold
	vcount, n, err := scale.DecodeCompact32(d)
	if err != nil {
		return total, err
	}
	total += n
	q.Validators = make([]NodeID, vcount)
	for i := range q.Validators {
		n, err = (&q.Validators[i]).DecodeScale(d)
		if err != nil {
			return total, err
		}
		total += n
	}
	icount, n, err := scale.DecodeCompact32(d)
	if err != nil {
		return total, err
	}
	total += n
	q.InnerSets = make([]QuorumSet, icount)
	for i := range q.InnerSets {
		n, err = q.InnerSets[i].DecodeScale(d)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}
