package overlay

import (
	"encoding/hex"
	"sync"

	"github.com/hashicorp/golang-lru/v2/simplelru"
)

const defaultFloodCacheSize = 4096

// FloodTracker deduplicates FBA_MESSAGE broadcasts by envelope signature
// (SPEC_FULL.md "Flood/duplicate suppression", grounded on
// Peer::recvMessage's flood-map check in original_source's Peer.cpp).
type FloodTracker struct {
	mu    sync.Mutex
	cache *simplelru.LRU[string, struct{}]
}

// NewFloodTracker returns a tracker retaining up to size recent
// signatures.
func NewFloodTracker(size int) *FloodTracker {
	if size <= 0 {
		size = defaultFloodCacheSize
	}
	cache, err := simplelru.NewLRU[string, struct{}](size, nil)
	if err != nil {
		panic(err)
	}
	return &FloodTracker{cache: cache}
}

// SeenOrMark reports whether signature has already been seen; if not, it
// marks it seen and returns false.
func (f *FloodTracker) SeenOrMark(signature []byte) bool {
	key := hex.EncodeToString(signature)
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.cache.Get(key); ok {
		return true
	}
	f.cache.Add(key, struct{}{})
	return false
}
