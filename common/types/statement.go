package types

import (
	"fmt"

	"github.com/spacemeshos/go-scale"
	"go.uber.org/zap/zapcore"
)

// StatementType tags the SCPStatement union (spec.md §3).
type StatementType uint8

const (
	// StatementPrepare is SCP_ST_PREPARE.
	StatementPrepare StatementType = iota + 1
	// StatementConfirm is SCP_ST_CONFIRM.
	StatementConfirm
	// StatementExternalize is SCP_ST_EXTERNALIZE.
	StatementExternalize
	// StatementNominate is SCP_ST_NOMINATE. The core never constructs or
	// interprets one (spec.md §3: "out of scope here"); the tag is
	// reserved so the wire codec stays total over the full union
	// (SPEC_FULL.md "Nomination is explicitly excluded").
	StatementNominate
)

func (t StatementType) String() string {
	switch t {
	case StatementPrepare:
		return "PREPARE"
	case StatementConfirm:
		return "CONFIRM"
	case StatementExternalize:
		return "EXTERNALIZE"
	case StatementNominate:
		return "NOMINATE"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", uint8(t))
	}
}

// PrepareBody carries a Prepare statement's type-specific fields.
type PrepareBody struct {
	QuorumSetHash Hash32
	B             Ballot
	Prepared      OptBallot
	PreparedPrime OptBallot
	NC            uint32
	NH            uint32
}

// ConfirmBody carries a Confirm statement's type-specific fields.
type ConfirmBody struct {
	B             Ballot
	NPrepared     uint32
	NCommit       uint32
	NH            uint32
	QuorumSetHash Hash32
}

// ExternalizeBody carries an Externalize statement's type-specific
// fields.
type ExternalizeBody struct {
	Commit              Ballot
	NH                  uint32
	CommitQuorumSetHash Hash32
}

// NominateBody is reserved for wire round-tripping; this core never
// populates or reads it (spec.md §3).
type NominateBody struct {
	QuorumSetHash Hash32
	Votes         []Value
	Accepted      []Value
}

// SCPStatement is the tagged union described in spec.md §3.
type SCPStatement struct {
	NodeID NodeID
	Slot   uint64
	Type   StatementType

	Prepare     *PrepareBody
	Confirm     *ConfirmBody
	Externalize *ExternalizeBody
	Nominate    *NominateBody
}

// Ballot returns the statement's current ballot, valid for Prepare and
// Confirm (Externalize has no "current ballot", only Commit).
func (s *SCPStatement) Ballot() (Ballot, bool) {
	switch s.Type {
	case StatementPrepare:
		return s.Prepare.B, true
	case StatementConfirm:
		return s.Confirm.B, true
	default:
		return Ballot{}, false
	}
}

// CompanionQuorumSetHash returns the hash whose preimage a receiver must
// fetch to verify the sender's statement (spec.md §4.4
// getCompanionQuorumSetHashFromStatement). For Externalize this is
// CommitQuorumSetHash rather than a statement-level hash (spec.md §9
// Open Question, resolved per stellar-core's BallotProtocol.h which
// reads the externalize arm's own field, not a shared union arm).
func (s *SCPStatement) CompanionQuorumSetHash() (Hash32, bool) {
	switch s.Type {
	case StatementPrepare:
		return s.Prepare.QuorumSetHash, true
	case StatementConfirm:
		return s.Confirm.QuorumSetHash, true
	case StatementExternalize:
		return s.Externalize.CommitQuorumSetHash, true
	default:
		return Hash32{}, false
	}
}

// MarshalLogObject implements zapcore.ObjectMarshaler.
func (s *SCPStatement) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("node", s.NodeID.ShortString())
	enc.AddUint64("slot", s.Slot)
	enc.AddString("type", s.Type.String())
	switch s.Type {
	case StatementPrepare:
		enc.AddObject("b", s.Prepare.B)
		enc.AddUint32("nC", s.Prepare.NC)
		enc.AddUint32("nH", s.Prepare.NH)
	case StatementConfirm:
		enc.AddObject("b", s.Confirm.B)
		enc.AddUint32("nPrepared", s.Confirm.NPrepared)
		enc.AddUint32("nH", s.Confirm.NH)
	case StatementExternalize:
		enc.AddObject("c", s.Externalize.Commit)
		enc.AddUint32("nH", s.Externalize.NH)
	}
	return nil
}

// EncodeScale implements scale.Encodable for the tagged union.
func (s *SCPStatement) EncodeScale(e *scale.Encoder) (int, error) {
	var total int
	n, err := (&s.NodeID).EncodeScale(e)
	if err != nil {
		return total, err
	}
	total += n
	n, err = scale.EncodeCompact64(e, s.Slot)
	if err != nil {
		return total, err
	}
	total += n
	n, err = scale.EncodeByte(e, byte(s.Type))
	if err != nil {
		return total, err
	}
	total += n
	var bn int
	switch s.Type {
	case StatementPrepare:
		bn, err = encodePrepare(e, s.Prepare)
	case StatementConfirm:
		bn, err = encodeConfirm(e, s.Confirm)
	case StatementExternalize:
		bn, err = encodeExternalize(e, s.Externalize)
	case StatementNominate:
		bn, err = encodeNominate(e, s.Nominate)
	default:
		return total, fmt.Errorf("scp: encode unknown statement type %d", s.Type)
	}
	if err != nil {
		return total, err
	}
	return total + bn, nil
}

// DecodeScale implements scale.Decodable for the tagged union.
func (s *SCPStatement) DecodeScale(d *scale.Decoder) (int, error) {
	var total int
	n, err := (&s.NodeID).DecodeScale(d)
	if err != nil {
		return total, err
	}
	total += n
	slot, n, err := scale.DecodeCompact64(d)
	if err != nil {
		return total, err
	}
	total += n
	s.Slot = slot
	typ, n, err := scale.DecodeByte(d)
	if err != nil {
		return total, err
	}
	total += n
	s.Type = StatementType(typ)
	var bn int
	switch s.Type {
	case StatementPrepare:
		s.Prepare = &PrepareBody{}
		bn, err = decodePrepare(d, s.Prepare)
	case StatementConfirm:
		s.Confirm = &ConfirmBody{}
		bn, err = decodeConfirm(d, s.Confirm)
	case StatementExternalize:
		s.Externalize = &ExternalizeBody{}
		bn, err = decodeExternalize(d, s.Externalize)
	case StatementNominate:
		s.Nominate = &NominateBody{}
		bn, err = decodeNominate(d, s.Nominate)
	default:
		return total, fmt.Errorf("scp: decode unknown statement type %d", s.Type)
	}
	if err != nil {
		return total, err
	}
	return total + bn, nil
}

func encodeOptBallot(e *scale.Encoder, o OptBallot) (int, error) {
	var total int
	n, err := scale.EncodeBool(e, o.Present)
	if err != nil {
		return total, err
	}
	total += n
	if o.Present {
		n, err = (&o.Ballot).EncodeScale(e)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

func decodeOptBallot(d *scale.Decoder) (OptBallot, int, error) {
	var total int
	present, n, err := scale.DecodeBool(d)
	if err != nil {
		return OptBallot{}, total, err
	}
	total += n
	if !present {
		return OptBallot{}, total, nil
	}
	var b Ballot
	n, err = (&b).DecodeScale(d)
	if err != nil {
		return OptBallot{}, total, err
	}
	total += n
	return Some(b), total, nil
}

func encodePrepare(e *scale.Encoder, p *PrepareBody) (int, error) {
	var total int
	for _, step := range []func() (int, error){
		func() (int, error) { return (&p.QuorumSetHash).EncodeScale(e) },
		func() (int, error) { return (&p.B).EncodeScale(e) },
		func() (int, error) { return encodeOptBallot(e, p.Prepared) },
		func() (int, error) { return encodeOptBallot(e, p.PreparedPrime) },
		func() (int, error) { return scale.EncodeCompact32(e, p.NC) },
		func() (int, error) { return scale.EncodeCompact32(e, p.NH) },
	} {
		n, err := step()
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

func decodePrepare(d *scale.Decoder, p *PrepareBody) (int, error) {
	var total int
	n, err := (&p.QuorumSetHash).DecodeScale(d)
	if err != nil {
		return total, err
	}
	total += n
	n, err = (&p.B).DecodeScale(d)
	if err != nil {
		return total, err
	}
	total += n
	ob, n, err := decodeOptBallot(d)
	if err != nil {
		return total, err
	}
	total += n
	p.Prepared = ob
	ob, n, err = decodeOptBallot(d)
	if err != nil {
		return total, err
	}
	total += n
	p.PreparedPrime = ob
	nc, n, err := scale.DecodeCompact32(d)
	if err != nil {
		return total, err
	}
	total += n
	p.NC = nc
	nh, n, err := scale.DecodeCompact32(d)
	if err != nil {
		return total, err
	}
	total += n
	p.NH = nh
	return total, nil
}

func encodeConfirm(e *scale.Encoder, c *ConfirmBody) (int, error) {
	var total int
	for _, step := range []func() (int, error){
		func() (int, error) { return (&c.B).EncodeScale(e) },
		func() (int, error) { return scale.EncodeCompact32(e, c.NPrepared) },
		func() (int, error) { return scale.EncodeCompact32(e, c.NCommit) },
		func() (int, error) { return scale.EncodeCompact32(e, c.NH) },
		func() (int, error) { return (&c.QuorumSetHash).EncodeScale(e) },
	} {
		n, err := step()
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

func decodeConfirm(d *scale.Decoder, c *ConfirmBody) (int, error) {
	var total int
	n, err := (&c.B).DecodeScale(d)
	if err != nil {
		return total, err
	}
	total += n
	np, n, err := scale.DecodeCompact32(d)
	if err != nil {
		return total, err
	}
	total += n
	c.NPrepared = np
	nc, n, err := scale.DecodeCompact32(d)
	if err != nil {
		return total, err
	}
	total += n
	c.NCommit = nc
	nh, n, err := scale.DecodeCompact32(d)
	if err != nil {
		return total, err
	}
	total += n
	c.NH = nh
	n, err = (&c.QuorumSetHash).DecodeScale(d)
	if err != nil {
		return total, err
	}
	total += n
	return total, nil
}

func encodeExternalize(e *scale.Encoder, x *ExternalizeBody) (int, error) {
	var total int
	for _, step := range []func() (int, error){
		func() (int, error) { return (&x.Commit).EncodeScale(e) },
		func() (int, error) { return scale.EncodeCompact32(e, x.NH) },
		func() (int, error) { return (&x.CommitQuorumSetHash).EncodeScale(e) },
	} {
		n, err := step()
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

func decodeExternalize(d *scale.Decoder, x *ExternalizeBody) (int, error) {
	var total int
	n, err := (&x.Commit).DecodeScale(d)
	if err != nil {
		return total, err
	}
	total += n
	nh, n, err := scale.DecodeCompact32(d)
	if err != nil {
		return total, err
	}
	total += n
	x.NH = nh
	n, err = (&x.CommitQuorumSetHash).DecodeScale(d)
	if err != nil {
		return total, err
	}
	total += n
	return total, nil
}

func encodeNominate(e *scale.Encoder, nom *NominateBody) (int, error) {
	var total int
	n, err := (&nom.QuorumSetHash).EncodeScale(e)
	if err != nil {
		return total, err
	}
	total += n
	n, err = encodeValueSlice(e, nom.Votes)
	if err != nil {
		return total, err
	}
	total += n
	n, err = encodeValueSlice(e, nom.Accepted)
	if err != nil {
		return total, err
	}
	total += n
	return total, nil
}

func decodeNominate(d *scale.Decoder, nom *NominateBody) (int, error) {
	var total int
	n, err := (&nom.QuorumSetHash).DecodeScale(d)
	if err != nil {
		return total, err
	}
	total += n
	votes, n, err := decodeValueSlice(d)
	if err != nil {
		return total, err
	}
	total += n
	nom.Votes = votes
	accepted, n, err := decodeValueSlice(d)
	if err != nil {
		return total, err
	}
	total += n
	nom.Accepted = accepted
	return total, nil
}

const maxStatementValues = 1000

func encodeValueSlice(e *scale.Encoder, vs []Value) (int, error) {
	var total int
	n, err := scale.EncodeCompact32(e, uint32(len(vs)))
	if err != nil {
		return total, err
	}
	total += n
	for i := range vs {
		n, err = vs[i].EncodeScale(e)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

func decodeValueSlice(d *scale.Decoder) ([]Value, int, error) {
	var total int
	count, n, err := scale.DecodeCompact32(d)
	if err != nil {
		return nil, total, err
	}
	total += n
	if count > maxStatementValues {
		return nil, total, fmt.Errorf("scp: value slice length %d exceeds limit", count)
	}
	out := make([]Value, count)
	for i := range out {
		n, err = (&out[i]).DecodeScale(d)
		if err != nil {
			return nil, total, err
		}
		total += n
	}
	return out, total, nil
}
