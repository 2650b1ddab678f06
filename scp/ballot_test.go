package scp

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kbacha/fbagreement/common/types"
)

func TestBallotOrdering(t *testing.T) {
	v1, v2 := types.Value{1}, types.Value{2}
	low := types.Ballot{Counter: 1, Value: v1}
	high := types.Ballot{Counter: 2, Value: v1}
	sameCounterOtherValue := types.Ballot{Counter: 1, Value: v2}

	assert.True(t, low.Less(high))
	assert.True(t, high.Greater(low))
	assert.True(t, low.LessOrEqual(low))
	assert.False(t, low.Equal(high))
	assert.True(t, low.Compatible(low))
	assert.False(t, low.Compatible(sameCounterOtherValue))
}

func TestOptBallotRoundTrip(t *testing.T) {
	b := types.Ballot{Counter: 3, Value: types.Value{9}}
	some := types.Some(b)
	got, ok := some.Get()
	assert.True(t, ok)
	assert.True(t, got.Equal(b))

	_, ok = types.None.Get()
	assert.False(t, ok)
}
