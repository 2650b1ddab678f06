package wire

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFramerRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	f := NewFramer(&buf, &buf)

	want := []byte("hello overlay")
	require.NoError(t, f.WriteFrame(want))

	got, err := f.ReadFrame()
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestFramerRejectsOversizedFrame(t *testing.T) {
	var buf bytes.Buffer
	f := NewFramer(&buf, &buf)

	oversized := make([]byte, MaxFrameSize+1)
	assert.Error(t, f.WriteFrame(oversized))
}

func TestFramerMultipleFrames(t *testing.T) {
	var buf bytes.Buffer
	f := NewFramer(&buf, &buf)

	require.NoError(t, f.WriteFrame([]byte("first")))
	require.NoError(t, f.WriteFrame([]byte("second")))

	got1, err := f.ReadFrame()
	require.NoError(t, err)
	assert.Equal(t, []byte("first"), got1)

	got2, err := f.ReadFrame()
	require.NoError(t, err)
	assert.Equal(t, []byte("second"), got2)
}

func TestFramerReadFrameOnEmptyStreamFails(t *testing.T) {
	var buf bytes.Buffer
	f := NewFramer(&buf, &buf)
	_, err := f.ReadFrame()
	assert.Error(t, err)
}
