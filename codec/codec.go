// Package codec dispatches encoding between the scale binary codec used
// by every domain type in this module and an xdr3 fallback, for any
// value that does not implement scale.Encodable/Decodable directly.
package codec

import (
	"bytes"
	"fmt"
	"io"
	"sync"

	xdr "github.com/nullstyle/go-xdr/xdr3"
	"github.com/spacemeshos/go-scale"
)

func init() {
	xdr.SliceLimit = 1 << 20
}

// Encodable is the value side of EncodeTo; concrete types normally also
// implement scale.Encodable to take the fast path.
type Encodable interface{}

// Decodable is the value side of DecodeFrom.
type Decodable interface{}

// EncodeTo writes value to w, preferring the scale codec and falling
// back to xdr3 for types outside this module's scale-encodable set
// (spec.md §4.1 "canonical tagged-union encoding").
func EncodeTo(w io.Writer, value Encodable) (int, error) {
	if encodable, ok := value.(scale.Encodable); ok {
		return encodable.EncodeScale(scale.NewEncoder(w))
	}
	n, err := xdr.Marshal(w, value)
	if err != nil {
		return n, fmt.Errorf("marshal xdr: %w", err)
	}
	return n, nil
}

// DecodeFrom reads value from r, mirroring EncodeTo's dispatch.
func DecodeFrom(r io.Reader, value Decodable) (int, error) {
	if decodable, ok := value.(scale.Decodable); ok {
		return decodable.DecodeScale(scale.NewDecoder(r))
	}
	n, err := xdr.Unmarshal(r, value)
	if err != nil {
		return n, fmt.Errorf("unmarshal xdr: %w", err)
	}
	return n, nil
}

var encoderPool = sync.Pool{
	New: func() interface{} {
		b := new(bytes.Buffer)
		b.Grow(64)
		return b
	},
}

func getEncoderBuffer() *bytes.Buffer {
	return encoderPool.Get().(*bytes.Buffer)
}

func putEncoderBuffer(b *bytes.Buffer) {
	b.Reset()
	encoderPool.Put(b)
}

// Encode returns value's canonical wire representation.
func Encode(value Encodable) ([]byte, error) {
	b := getEncoderBuffer()
	defer putEncoderBuffer(b)
	if _, err := EncodeTo(b, value); err != nil {
		return nil, err
	}
	buf := make([]byte, b.Len())
	copy(buf, b.Bytes())
	return buf, nil
}

// Decode parses value from buf.
func Decode(buf []byte, value Decodable) error {
	if _, err := DecodeFrom(bytes.NewBuffer(buf), value); err != nil {
		return fmt.Errorf("decode from buffer: %w", err)
	}
	return nil
}

// EncodeSlice encodes a slice of scale-encodable structs as one
// length-prefixed run, used for quorum validator lists and the like.
func EncodeSlice[V any, H scale.EncodablePtr[V]](value []V) ([]byte, error) {
	var b bytes.Buffer
	if _, err := scale.EncodeStructSlice[V, H](scale.NewEncoder(&b), value); err != nil {
		return nil, fmt.Errorf("encode struct slice: %w", err)
	}
	return b.Bytes(), nil
}

// DecodeSlice is the inverse of EncodeSlice.
func DecodeSlice[V any, H scale.DecodablePtr[V]](buf []byte) ([]V, error) {
	v, _, err := scale.DecodeStructSlice[V, H](scale.NewDecoder(bytes.NewReader(buf)))
	if err != nil {
		return nil, fmt.Errorf("decode struct slice: %w", err)
	}
	return v, nil
}
