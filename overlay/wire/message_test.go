package wire

import (
	"bytes"
	"testing"

	"github.com/spacemeshos/go-scale"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kbacha/fbagreement/common/types"
)

func roundTrip(t *testing.T, m *Message) *Message {
	t.Helper()
	var buf bytes.Buffer
	_, err := m.EncodeScale(scale.NewEncoder(&buf))
	require.NoError(t, err)

	got := &Message{}
	_, err = got.DecodeScale(scale.NewDecoder(&buf))
	require.NoError(t, err)
	return got
}

func TestMessageRoundTripHello(t *testing.T) {
	m := &Message{
		Type: Hello,
		Hello: &HelloBody{
			ProtocolVersion: 3,
			VersionStr:      "fba/0.1",
			ListeningPort:   4321,
		},
	}
	got := roundTrip(t, m)
	require.NotNil(t, got.Hello)
	assert.Equal(t, m.Hello.ProtocolVersion, got.Hello.ProtocolVersion)
	assert.Equal(t, m.Hello.VersionStr, got.Hello.VersionStr)
	assert.Equal(t, m.Hello.ListeningPort, got.Hello.ListeningPort)
}

func TestMessageRoundTripDontHave(t *testing.T) {
	m := &Message{
		Type: DontHave,
		DontHaveMsg: &DontHaveBody{
			Kind: GetQuorumSet,
			ID:   types.Hash32{1, 2, 3},
		},
	}
	got := roundTrip(t, m)
	require.NotNil(t, got.DontHaveMsg)
	assert.Equal(t, m.DontHaveMsg.Kind, got.DontHaveMsg.Kind)
	assert.Equal(t, m.DontHaveMsg.ID, got.DontHaveMsg.ID)
}

func TestMessageRoundTripOpaque(t *testing.T) {
	m := &Message{
		Type:   Transaction,
		Opaque: &OpaqueBody{Payload: []byte("forwarded payload")},
	}
	got := roundTrip(t, m)
	require.NotNil(t, got.Opaque)
	assert.Equal(t, m.Opaque.Payload, got.Opaque.Payload)
}

func TestMessageRoundTripFBAMessage(t *testing.T) {
	m := &Message{
		Type: FBAMessage,
		FBA: &FBAMessageBody{
			Envelope: types.SCPEnvelope{
				Statement: types.SCPStatement{
					NodeID: types.NodeID{9},
					Slot:   7,
					Type:   types.StatementPrepare,
					Prepare: &types.PrepareBody{
						B: types.Ballot{Counter: 1, Value: types.Value{5}},
					},
				},
				Signature: []byte("sig"),
			},
		},
	}
	got := roundTrip(t, m)
	require.NotNil(t, got.FBA)
	assert.Equal(t, m.FBA.Envelope.Statement.Slot, got.FBA.Envelope.Statement.Slot)
	assert.Equal(t, m.FBA.Envelope.Statement.NodeID, got.FBA.Envelope.Statement.NodeID)
	assert.True(t, got.FBA.Envelope.Statement.Prepare.B.Value.Equal(types.Value{5}))
	assert.Equal(t, m.FBA.Envelope.Signature, got.FBA.Envelope.Signature)
}

func TestMessageDecodeUnknownTypeFails(t *testing.T) {
	var buf bytes.Buffer
	_, err := scale.EncodeByte(scale.NewEncoder(&buf), 0xFF)
	require.NoError(t, err)

	got := &Message{}
	_, err = got.DecodeScale(scale.NewDecoder(&buf))
	assert.Error(t, err)
}
