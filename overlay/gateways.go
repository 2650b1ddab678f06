package overlay

import (
	"github.com/kbacha/fbagreement/common/types"
	"github.com/kbacha/fbagreement/overlay/wire"
)

// HerderGateway is the transaction-set collaborator the peer session
// consults for TX_SET-family messages (spec.md §6). Transaction
// execution and ledger storage are out of scope (spec.md §1); this
// module only forwards opaque bytes to and from it.
type HerderGateway interface {
	FetchTxSet(id types.Hash32, create bool) ([]byte, bool)
	RecvTransactionSet(raw []byte)
	RecvTransaction(raw []byte) bool
	DoesntHaveTxSet(id types.Hash32, peer *Session)
}

// OverlayGateway is the quorum-set and flood collaborator (spec.md §6).
// Quorum-set download/caching is out of scope (spec.md §1); this module
// only forwards requests and answers.
type OverlayGateway interface {
	FetchQuorumSet(id types.Hash32, create bool) (*types.QuorumSet, bool)
	RecvQuorumSet(qs *types.QuorumSet)
	DoesntHaveQSet(id types.Hash32, peer *Session)
	BroadcastMessage(msg *wire.Message, source *Session)
	RecvFloodedMsg(signature []byte, msg *wire.Message, slot uint64, peer *Session)
}

// ConsensusGateway hands a validated consensus envelope to the ballot
// protocol (spec.md §6).
type ConsensusGateway interface {
	RecvStatement(env *types.SCPEnvelope)
}

// PeerRegistry tracks live sessions and admits or refuses new ones
// (spec.md §6, §2 "Peer registry").
type PeerRegistry interface {
	AddPeer(s *Session)
	DropPeer(s *Session)
	IsPeerAccepted(s *Session) bool
	Broadcast(env *types.SCPEnvelope, except *Session)
}
