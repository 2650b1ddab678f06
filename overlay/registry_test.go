package overlay

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryAddDropPeer(t *testing.T) {
	r := NewRegistry()
	s := &Session{}

	assert.Empty(t, r.Peers())

	r.AddPeer(s)
	require.Len(t, r.Peers(), 1)
	assert.Same(t, s, r.Peers()[0])

	r.DropPeer(s)
	assert.Empty(t, r.Peers())
}

func TestRegistryIsPeerAcceptedRespectsMaxPeers(t *testing.T) {
	r := NewRegistry(WithMaxPeers(1))
	a, b := &Session{}, &Session{}

	assert.True(t, r.IsPeerAccepted(a))
	r.AddPeer(a)

	assert.False(t, r.IsPeerAccepted(b), "registry is already at capacity")
	assert.True(t, r.IsPeerAccepted(a), "an already-admitted peer stays accepted")
}

func TestRegistryDropPeerIsIdempotent(t *testing.T) {
	r := NewRegistry()
	s := &Session{}
	r.DropPeer(s) // never added; must not panic
	assert.Empty(t, r.Peers())
}
