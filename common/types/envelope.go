package types

import (
	"github.com/spacemeshos/go-scale"
	"go.uber.org/zap/zapcore"
)

// SCPEnvelope pairs a statement with its signature. Signature
// production/verification is an external collaborator (spec.md §1); the
// core treats Signature as opaque bytes it stores and forwards.
type SCPEnvelope struct {
	Statement SCPStatement
	Signature []byte
}

// MarshalLogObject implements zapcore.ObjectMarshaler.
func (e *SCPEnvelope) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	return enc.AddObject("statement", &e.Statement)
}

// EncodeScale implements scale.Encodable.
func (e *SCPEnvelope) EncodeScale(enc *scale.Encoder) (int, error) {
	var total int
	n, err := (&e.Statement).EncodeScale(enc)
	if err != nil {
		return total, err
	}
	total += n
	n, err = scale.EncodeByteSliceWithLimit(enc, e.Signature, maxSignatureSize)
	if err != nil {
		return total, err
	}
	total += n
	return total, nil
}

// DecodeScale implements scale.Decodable.
func (e *SCPEnvelope) DecodeScale(dec *scale.Decoder) (int, error) {
	var total int
	n, err := (&e.Statement).DecodeScale(dec)
	if err != nil {
		return total, err
	}
	total += n
	sig, n, err := scale.DecodeByteSliceWithLimit(dec, maxSignatureSize)
	if err != nil {
		return total, err
	}
	total += n
	e.Signature = sig
	return total, nil
}

const maxSignatureSize = 256
