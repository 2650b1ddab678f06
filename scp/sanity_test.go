package scp

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kbacha/fbagreement/common/types"
)

func TestIsStatementSaneRejectsZeroCounter(t *testing.T) {
	st := &types.SCPStatement{
		Type:    types.StatementPrepare,
		Prepare: &types.PrepareBody{B: types.Ballot{Counter: 0, Value: types.Value{1}}},
	}
	err := isStatementSane(st)
	assert.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidStatement))
}

func TestIsStatementSaneAcceptsWellFormedPrepare(t *testing.T) {
	st := &types.SCPStatement{
		Type: types.StatementPrepare,
		Prepare: &types.PrepareBody{
			B:        types.Ballot{Counter: 2, Value: types.Value{1}},
			Prepared: types.Some(types.Ballot{Counter: 1, Value: types.Value{1}}),
		},
	}
	assert.NoError(t, isStatementSane(st))
}

func TestIsStatementSaneRejectsConfirmNCommitAboveNH(t *testing.T) {
	st := &types.SCPStatement{
		Type: types.StatementConfirm,
		Confirm: &types.ConfirmBody{
			B:       types.Ballot{Counter: 5, Value: types.Value{1}},
			NCommit: 4,
			NH:      2,
		},
	}
	err := isStatementSane(st)
	assert.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidStatement))
}

func TestIsNewerStatementOrdersByTypeThenCounters(t *testing.T) {
	prepare := &types.SCPStatement{
		Type:    types.StatementPrepare,
		Prepare: &types.PrepareBody{B: types.Ballot{Counter: 1, Value: types.Value{1}}},
	}
	confirm := &types.SCPStatement{
		Type:    types.StatementConfirm,
		Confirm: &types.ConfirmBody{B: types.Ballot{Counter: 1, Value: types.Value{1}}},
	}
	assert.True(t, isNewerStatement(prepare, confirm))
	assert.False(t, isNewerStatement(confirm, prepare))
	assert.True(t, isNewerStatement(nil, prepare))
}
