package overlay

import (
	"github.com/kbacha/fbagreement/common/types"
	"github.com/kbacha/fbagreement/log"
	"github.com/kbacha/fbagreement/metrics"
)

// RegistryOption configures a Registry at construction time.
type RegistryOption func(*Registry)

// WithRegistryLogger attaches a component logger to a Registry.
func WithRegistryLogger(l log.Log) RegistryOption {
	return func(r *Registry) { r.logger = l }
}

// WithMaxPeers bounds how many sessions Registry.IsPeerAccepted admits.
func WithMaxPeers(n int) RegistryOption {
	return func(r *Registry) { r.maxPeers = n }
}

// Registry is the concrete in-memory PeerRegistry (spec.md §2 "Peer
// registry"). It is driven exclusively from the scheduler goroutine
// (spec.md §5), so it carries no locks.
type Registry struct {
	logger   log.Log
	maxPeers int
	peers    map[*Session]struct{}
}

// NewRegistry returns an empty Registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		logger:   log.NewNop(),
		maxPeers: 64,
		peers:    make(map[*Session]struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// AddPeer admits s into the registry.
func (r *Registry) AddPeer(s *Session) {
	r.peers[s] = struct{}{}
	metrics.ReportHandshakeCompleted()
	r.logger.With().Info("peer added", log.Int("count", len(r.peers)))
}

// DropPeer removes s from the registry if present.
func (r *Registry) DropPeer(s *Session) {
	if _, ok := r.peers[s]; !ok {
		return
	}
	delete(r.peers, s)
	metrics.ReportSessionDropped("registry")
	r.logger.With().Info("peer dropped", log.Int("count", len(r.peers)))
}

// IsPeerAccepted reports whether s may be admitted, based on the current
// peer count (spec.md §2 "admits or refuses new ones").
func (r *Registry) IsPeerAccepted(s *Session) bool {
	if _, ok := r.peers[s]; ok {
		return true
	}
	return len(r.peers) < r.maxPeers
}

// Broadcast sends env's envelope to every peer except except (spec.md §6
// Broadcast).
func (r *Registry) Broadcast(env *types.SCPEnvelope, except *Session) {
	for s := range r.peers {
		if s == except {
			continue
		}
		s.sendFBAEnvelope(env)
	}
}

// Peers returns a snapshot of the currently admitted sessions.
func (r *Registry) Peers() []*Session {
	out := make([]*Session, 0, len(r.peers))
	for s := range r.peers {
		out = append(out, s)
	}
	return out
}
