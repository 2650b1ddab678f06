package overlay

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFloodTrackerDedup(t *testing.T) {
	f := NewFloodTracker(4)
	sig := []byte("a signature")

	assert.False(t, f.SeenOrMark(sig), "first sighting should not be seen yet")
	assert.True(t, f.SeenOrMark(sig), "second sighting should be deduplicated")
}

func TestFloodTrackerDistinguishesSignatures(t *testing.T) {
	f := NewFloodTracker(4)
	assert.False(t, f.SeenOrMark([]byte("one")))
	assert.False(t, f.SeenOrMark([]byte("two")))
	assert.True(t, f.SeenOrMark([]byte("one")))
}

func TestFloodTrackerEvictsLRU(t *testing.T) {
	f := NewFloodTracker(2)
	assert.False(t, f.SeenOrMark([]byte("one")))
	assert.False(t, f.SeenOrMark([]byte("two")))
	assert.False(t, f.SeenOrMark([]byte("three"))) // evicts "one"
	assert.False(t, f.SeenOrMark([]byte("one")), "one should have been evicted and looks new again")
}
