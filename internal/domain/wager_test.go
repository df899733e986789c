package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPotentialPayoutTruncates(t *testing.T) {
	tests := []struct {
		stake int64
		want  int64
	}{
		{100, 196},
		{1, 1},    // 1.96 truncates
		{50, 98},
		{51, 99},  // 99.96 truncates
		{99, 194}, // 194.04 truncates
		{1_000_000, 1_960_000},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, PotentialPayout(tt.stake), "stake %d", tt.stake)
	}
}

func TestChoiceValid(t *testing.T) {
	assert.True(t, ChoiceHeads.Valid())
	assert.True(t, ChoiceTails.Valid())
	assert.False(t, ChoiceNone.Valid())
	assert.False(t, Choice(3).Valid())
}

func TestChoiceString(t *testing.T) {
	assert.Equal(t, "heads", ChoiceHeads.String())
	assert.Equal(t, "tails", ChoiceTails.String())
	assert.Equal(t, "none", ChoiceNone.String())
}

func TestWagerActive(t *testing.T) {
	assert.False(t, Wager{}.Active())
	assert.True(t, Wager{Choice: ChoiceHeads}.Active())
}

func TestErrorClasses(t *testing.T) {
	for _, err := range []error{
		ErrAlreadyActive, ErrInvalidChoice, ErrInsufficientBalance,
		ErrBetOutOfRange, ErrNoActiveWager,
	} {
		assert.True(t, IsUserError(err), err.Error())
	}

	assert.False(t, IsUserError(ErrPayoutFailed))
	assert.True(t, IsTransient(ErrRandomnessNotReady))
	assert.True(t, IsTransient(ErrLockHeld))
	assert.False(t, IsTransient(ErrRandomnessUnknown))

	// Classification survives wrapping.
	wrapped := errors.Join(errors.New("engine: ledger lookup"), ErrAlreadyActive)
	assert.True(t, IsUserError(wrapped))
}
