package types

import "go.uber.org/zap/zapcore"

// MarshalLogObject implements zapcore.ObjectMarshaler so ballots render as
// structured fields rather than via %v.
func (b Ballot) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddUint32("counter", b.Counter)
	enc.AddString("value", shortHex(b.Value))
	return nil
}

// MarshalLogObject implements zapcore.ObjectMarshaler.
func (o OptBallot) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddBool("present", o.Present)
	if o.Present {
		return enc.AddObject("ballot", o.Ballot)
	}
	return nil
}
