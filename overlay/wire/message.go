// Package wire defines the overlay's wire message taxonomy and its
// canonical tagged-union codec (spec.md §6).
package wire

import (
	"fmt"

	"github.com/spacemeshos/go-scale"

	"github.com/kbacha/fbagreement/common/types"
)

// MessageType tags the overlay message union (spec.md §6 "Message
// taxonomy").
type MessageType uint8

const (
	Hello MessageType = iota + 1
	ErrorMsg
	DontHave
	GetPeers
	Peers
	GetHistory
	History
	GetDelta
	Delta
	GetTxSet
	TxSet
	GetQuorumSet
	QuorumSetMsg
	GetValidations
	Validations
	Transaction
	FBAMessage
)

func (t MessageType) String() string {
	switch t {
	case Hello:
		return "HELLO"
	case ErrorMsg:
		return "ERROR_MSG"
	case DontHave:
		return "DONT_HAVE"
	case GetPeers:
		return "GET_PEERS"
	case Peers:
		return "PEERS"
	case GetHistory:
		return "GET_HISTORY"
	case History:
		return "HISTORY"
	case GetDelta:
		return "GET_DELTA"
	case Delta:
		return "DELTA"
	case GetTxSet:
		return "GET_TX_SET"
	case TxSet:
		return "TX_SET"
	case GetQuorumSet:
		return "GET_QUORUMSET"
	case QuorumSetMsg:
		return "QUORUMSET"
	case GetValidations:
		return "GET_VALIDATIONS"
	case Validations:
		return "VALIDATIONS"
	case Transaction:
		return "TRANSACTION"
	case FBAMessage:
		return "FBA_MESSAGE"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", uint8(t))
	}
}

// HelloBody is spec.md §6 "HELLO payload". ListeningPort is a uint16 in
// memory; on the wire it is widened to a compact 32-bit integer, since
// go-scale's compact integer codec only has 32- and 64-bit variants
// available here, and decoding rejects values above 0xFFFF.
type HelloBody struct {
	ProtocolVersion uint32
	VersionStr      string
	ListeningPort   uint16
}

// ErrorBody carries a human-readable diagnostic (spec.md §7
// MalformedMessage/ProtocolViolation reporting).
type ErrorBody struct {
	Message string
}

// DontHaveBody answers a GET_* request the sender cannot satisfy. Kind
// names the message type that could not be supplied (Session sends
// TX_SET or QUORUMSET, and also treats GET_QUORUMSET as a quorum-set
// refusal); ID is that request's hash (spec.md §4.2 DONT_HAVE row).
type DontHaveBody struct {
	Kind MessageType
	ID   types.Hash32
}

// HashRequestBody is the shared shape of every "fetch by hash" request:
// GET_TX_SET, GET_QUORUMSET (spec.md §9 open question: the two share a
// wire arm in the original; this core models that sharing explicitly
// with one body type for both request kinds).
type HashRequestBody struct {
	ID types.Hash32
}

// QuorumSetBody carries a quorum set definition, delivered in answer to
// GET_QUORUMSET (spec.md §4.2).
type QuorumSetBody struct {
	QuorumSet types.QuorumSet
}

// OpaqueBody carries a payload this core forwards to an external
// collaborator without interpreting it: TX_SET, TRANSACTION, and the
// GET_PEERS/PEERS/GET_HISTORY/HISTORY/GET_DELTA/DELTA/GET_VALIDATIONS/
// VALIDATIONS family the spec defers to their own collaborators (spec.md
// §4.2, last taxonomy row).
type OpaqueBody struct {
	Payload []byte
}

// FBAMessageBody carries a consensus envelope (spec.md §4.2 FBA_MESSAGE
// row).
type FBAMessageBody struct {
	Envelope types.SCPEnvelope
}

// Message is the tagged union every overlay wire frame decodes to
// (spec.md §6 "Message taxonomy").
type Message struct {
	Type MessageType

	Hello       *HelloBody
	Error       *ErrorBody
	DontHaveMsg *DontHaveBody
	HashReq     *HashRequestBody
	QSet        *QuorumSetBody
	Opaque      *OpaqueBody
	FBA         *FBAMessageBody
}

func opaqueType(t MessageType) bool {
	switch t {
	case GetPeers, Peers, GetHistory, History, GetDelta, Delta, TxSet, Transaction, GetValidations, Validations:
		return true
	default:
		return false
	}
}

func hashRequestType(t MessageType) bool {
	return t == GetTxSet || t == GetQuorumSet
}

// EncodeScale implements scale.Encodable.
func (m *Message) EncodeScale(e *scale.Encoder) (int, error) {
	var total int
	n, err := scale.EncodeByte(e, byte(m.Type))
	if err != nil {
		return total, err
	}
	total += n

	var bn int
	switch {
	case m.Type == Hello:
		bn, err = encodeHello(e, m.Hello)
	case m.Type == ErrorMsg:
		bn, err = encodeError(e, m.Error)
	case m.Type == DontHave:
		bn, err = encodeDontHave(e, m.DontHaveMsg)
	case hashRequestType(m.Type):
		bn, err = encodeHashRequest(e, m.HashReq)
	case m.Type == QuorumSetMsg:
		bn, err = encodeQuorumSetBody(e, m.QSet)
	case opaqueType(m.Type):
		bn, err = encodeOpaque(e, m.Opaque)
	case m.Type == FBAMessage:
		bn, err = (&m.FBA.Envelope).EncodeScale(e)
	default:
		return total, fmt.Errorf("wire: encode unknown message type %d", m.Type)
	}
	if err != nil {
		return total, err
	}
	return total + bn, nil
}

// DecodeScale implements scale.Decodable.
func (m *Message) DecodeScale(d *scale.Decoder) (int, error) {
	var total int
	typ, n, err := scale.DecodeByte(d)
	if err != nil {
		return total, err
	}
	total += n
	m.Type = MessageType(typ)

	var bn int
	switch {
	case m.Type == Hello:
		m.Hello = &HelloBody{}
		bn, err = decodeHello(d, m.Hello)
	case m.Type == ErrorMsg:
		m.Error = &ErrorBody{}
		bn, err = decodeError(d, m.Error)
	case m.Type == DontHave:
		m.DontHaveMsg = &DontHaveBody{}
		bn, err = decodeDontHave(d, m.DontHaveMsg)
	case hashRequestType(m.Type):
		m.HashReq = &HashRequestBody{}
		bn, err = decodeHashRequest(d, m.HashReq)
	case m.Type == QuorumSetMsg:
		m.QSet = &QuorumSetBody{}
		bn, err = decodeQuorumSetBody(d, m.QSet)
	case opaqueType(m.Type):
		m.Opaque = &OpaqueBody{}
		bn, err = decodeOpaque(d, m.Opaque)
	case m.Type == FBAMessage:
		m.FBA = &FBAMessageBody{}
		bn, err = (&m.FBA.Envelope).DecodeScale(d)
	default:
		return total, fmt.Errorf("wire: decode unknown message type %d", m.Type)
	}
	if err != nil {
		return total, err
	}
	return total + bn, nil
}

const maxOpaquePayload = 16 << 20 // spec.md §6 "implementations SHOULD cap at 16 MiB"
const maxErrorMessage = 1 << 16
const maxVersionStr = 256

func encodeHello(e *scale.Encoder, h *HelloBody) (int, error) {
	var total int
	n, err := scale.EncodeCompact32(e, h.ProtocolVersion)
	if err != nil {
		return total, err
	}
	total += n
	n, err = scale.EncodeByteSliceWithLimit(e, []byte(h.VersionStr), maxVersionStr)
	if err != nil {
		return total, err
	}
	total += n
	n, err = scale.EncodeCompact32(e, uint32(h.ListeningPort))
	if err != nil {
		return total, err
	}
	total += n
	return total, nil
}

func decodeHello(d *scale.Decoder, h *HelloBody) (int, error) {
	var total int
	v, n, err := scale.DecodeCompact32(d)
	if err != nil {
		return total, err
	}
	total += n
	h.ProtocolVersion = v
	s, n, err := scale.DecodeByteSliceWithLimit(d, maxVersionStr)
	if err != nil {
		return total, err
	}
	total += n
	h.VersionStr = string(s)
	p, n, err := scale.DecodeCompact32(d)
	if err != nil {
		return total, err
	}
	total += n
	if p > 0xFFFF {
		return total, fmt.Errorf("wire: listening port %d exceeds u16", p)
	}
	h.ListeningPort = uint16(p)
	return total, nil
}

func encodeError(e *scale.Encoder, body *ErrorBody) (int, error) {
	return scale.EncodeByteSliceWithLimit(e, []byte(body.Message), maxErrorMessage)
}

func decodeError(d *scale.Decoder, body *ErrorBody) (int, error) {
	s, n, err := scale.DecodeByteSliceWithLimit(d, maxErrorMessage)
	if err != nil {
		return n, err
	}
	body.Message = string(s)
	return n, nil
}

func encodeDontHave(e *scale.Encoder, body *DontHaveBody) (int, error) {
	var total int
	n, err := scale.EncodeByte(e, byte(body.Kind))
	if err != nil {
		return total, err
	}
	total += n
	n, err = (&body.ID).EncodeScale(e)
	if err != nil {
		return total, err
	}
	total += n
	return total, nil
}

func decodeDontHave(d *scale.Decoder, body *DontHaveBody) (int, error) {
	var total int
	kind, n, err := scale.DecodeByte(d)
	if err != nil {
		return total, err
	}
	total += n
	body.Kind = MessageType(kind)
	n, err = (&body.ID).DecodeScale(d)
	if err != nil {
		return total, err
	}
	total += n
	return total, nil
}

func encodeHashRequest(e *scale.Encoder, body *HashRequestBody) (int, error) {
	return (&body.ID).EncodeScale(e)
}

func decodeHashRequest(d *scale.Decoder, body *HashRequestBody) (int, error) {
	return (&body.ID).DecodeScale(d)
}

func encodeQuorumSetBody(e *scale.Encoder, body *QuorumSetBody) (int, error) {
	return (&body.QuorumSet).EncodeScale(e)
}

func decodeQuorumSetBody(d *scale.Decoder, body *QuorumSetBody) (int, error) {
	return (&body.QuorumSet).DecodeScale(d)
}

func encodeOpaque(e *scale.Encoder, body *OpaqueBody) (int, error) {
	return scale.EncodeByteSliceWithLimit(e, body.Payload, maxOpaquePayload)
}

func decodeOpaque(d *scale.Decoder, body *OpaqueBody) (int, error) {
	b, n, err := scale.DecodeByteSliceWithLimit(d, maxOpaquePayload)
	if err != nil {
		return n, err
	}
	body.Payload = b
	return n, nil
}
