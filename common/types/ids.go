package types

import (
	"encoding/hex"

	"github.com/spacemeshos/go-scale"
)

// NodeIDSize is the length in bytes of a NodeID.
const NodeIDSize = 32

// NodeID identifies a participant in the agreement network. Signature
// verification over a NodeID's statements is an external collaborator
// (spec.md §1); the core only compares and orders NodeIDs.
type NodeID [NodeIDSize]byte

// EmptyNodeID is the canonical zero value.
var EmptyNodeID NodeID

// String returns the hex representation of the NodeID.
func (id NodeID) String() string { return hex.EncodeToString(id[:]) }

// ShortString returns the first 8 hex characters, for logging.
func (id NodeID) ShortString() string {
	s := id.String()
	if len(s) > 8 {
		return s[:8]
	}
	return s
}

// Bytes returns the raw identifier bytes.
func (id NodeID) Bytes() []byte { return id[:] }

// EncodeScale implements scale.Encodable.
func (id *NodeID) EncodeScale(e *scale.Encoder) (int, error) {
	return scale.EncodeByteArray(e, id[:])
}

// DecodeScale implements scale.Decodable.
func (id *NodeID) DecodeScale(d *scale.Decoder) (int, error) {
	return scale.DecodeByteArray(d, id[:])
}

// Hash32Length is the length in bytes of a Hash32.
const Hash32Length = 32

// Hash32 is a generic 32-byte digest, used for quorum-set hashes and
// statement/message hashes. Hashing itself is external (spec.md §1).
type Hash32 [Hash32Length]byte

// String returns the hex representation of the hash.
func (h Hash32) String() string { return hex.EncodeToString(h[:]) }

// ShortString returns the first 8 hex characters, for logging.
func (h Hash32) ShortString() string {
	s := h.String()
	if len(s) > 8 {
		return s[:8]
	}
	return s
}

// IsEmpty reports whether the hash is the zero value.
func (h Hash32) IsEmpty() bool { return h == Hash32{} }

// EncodeScale implements scale.Encodable.
func (h *Hash32) EncodeScale(e *scale.Encoder) (int, error) {
	return scale.EncodeByteArray(e, h[:])
}

// DecodeScale implements scale.Decodable.
func (h *Hash32) DecodeScale(d *scale.Decoder) (int, error) {
	return scale.DecodeByteArray(d, h[:])
}
