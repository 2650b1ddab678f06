package wire

import (
	"encoding/binary"
	"fmt"
	"io"
)

// MaxFrameSize bounds a single framed message (spec.md §6: "implementations
// SHOULD cap at 16 MiB").
const MaxFrameSize = 16 << 20

// HeaderSize is the length of the big-endian length prefix every frame
// carries (spec.md §4.1). Exported so transports that must reassemble
// frames from raw Write calls (overlay.LoopbackSession) agree with
// Framer on where the header ends.
const HeaderSize = 4

// Framer reads and writes length-prefixed frames over an ordered byte
// stream, mirroring the teacher's msgio.LimitedReader/LimitedWriter pair
// but with an explicit 4-byte big-endian header rather than msgio's own
// varint convention (spec.md §4.1, §6).
type Framer struct {
	r io.Reader
	w io.Writer
}

// NewFramer wraps rw for framed reads and writes.
func NewFramer(r io.Reader, w io.Writer) *Framer {
	return &Framer{r: r, w: w}
}

// ReadFrame blocks for one full frame: a 4-byte length header followed by
// exactly that many body bytes (spec.md §4.1 "reads headers and bodies in
// alternation").
func (f *Framer) ReadFrame() ([]byte, error) {
	var header [HeaderSize]byte
	if _, err := io.ReadFull(f.r, header[:]); err != nil {
		return nil, err
	}
	length := binary.BigEndian.Uint32(header[:])
	if length > MaxFrameSize {
		return nil, fmt.Errorf("wire: frame length %d exceeds max %d", length, MaxFrameSize)
	}
	body := make([]byte, length)
	if _, err := io.ReadFull(f.r, body); err != nil {
		return nil, err
	}
	return body, nil
}

// WriteFrame writes body prefixed by its 4-byte big-endian length.
func (f *Framer) WriteFrame(body []byte) error {
	if len(body) > MaxFrameSize {
		return fmt.Errorf("wire: frame length %d exceeds max %d", len(body), MaxFrameSize)
	}
	var header [HeaderSize]byte
	binary.BigEndian.PutUint32(header[:], uint32(len(body)))
	if _, err := f.w.Write(header[:]); err != nil {
		return err
	}
	_, err := f.w.Write(body)
	return err
}
