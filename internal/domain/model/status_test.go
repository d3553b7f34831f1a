package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTxnStatusTerminal(t *testing.T) {
	assert.False(t, TxnStatusInitiated.Terminal())
	assert.False(t, TxnStatusProcessing.Terminal())
	assert.True(t, TxnStatusSuccess.Terminal())
	assert.True(t, TxnStatusFailed.Terminal())
	assert.True(t, TxnStatusHashMismatch.Terminal())
	assert.True(t, TxnStatusCancelled.Terminal())
}

func TestCanTransitionTo(t *testing.T) {
	// Forward moves.
	assert.True(t, TxnStatusInitiated.CanTransitionTo(TxnStatusProcessing))
	assert.True(t, TxnStatusInitiated.CanTransitionTo(TxnStatusSuccess))
	assert.True(t, TxnStatusInitiated.CanTransitionTo(TxnStatusFailed))
	assert.True(t, TxnStatusProcessing.CanTransitionTo(TxnStatusSuccess))
	assert.True(t, TxnStatusProcessing.CanTransitionTo(TxnStatusFailed))

	// Terminal statuses never move again.
	for _, terminal := range []TxnStatus{
		TxnStatusSuccess, TxnStatusFailed, TxnStatusHashMismatch, TxnStatusCancelled,
	} {
		for _, next := range []TxnStatus{
			TxnStatusInitiated, TxnStatusProcessing, TxnStatusSuccess,
			TxnStatusFailed, TxnStatusHashMismatch, TxnStatusCancelled,
		} {
			assert.False(t, terminal.CanTransitionTo(next),
				"terminal %s must not transition to %s", terminal, next)
		}
	}

	// No backwards moves.
	assert.False(t, TxnStatusProcessing.CanTransitionTo(TxnStatusInitiated))
	assert.False(t, TxnStatusProcessing.CanTransitionTo(TxnStatusCancelled))
}

func TestTransitionSourcesTo(t *testing.T) {
	assert.ElementsMatch(t,
		[]TxnStatus{TxnStatusInitiated, TxnStatusProcessing},
		TransitionSourcesTo(TxnStatusSuccess))
	assert.ElementsMatch(t,
		[]TxnStatus{TxnStatusInitiated, TxnStatusProcessing},
		TransitionSourcesTo(TxnStatusFailed))
	assert.ElementsMatch(t,
		[]TxnStatus{TxnStatusInitiated},
		TransitionSourcesTo(TxnStatusProcessing))
	assert.ElementsMatch(t,
		[]TxnStatus{TxnStatusInitiated},
		TransitionSourcesTo(TxnStatusCancelled))
	assert.Empty(t, TransitionSourcesTo(TxnStatusInitiated))
}

func TestParseTxnStatus(t *testing.T) {
	cases := map[string]TxnStatus{
		"success":       TxnStatusSuccess,
		"SUCCESS":       TxnStatusSuccess,
		"  Captured  ":  TxnStatusSuccess,
		"failure":       TxnStatusFailed,
		"failed":        TxnStatusFailed,
		"pending":       TxnStatusProcessing,
		"in progress":   TxnStatusProcessing,
		"initiated":     TxnStatusInitiated,
		"cancelled":     TxnStatusCancelled,
		"canceled":      TxnStatusCancelled,
		"usercancelled": TxnStatusCancelled,
	}
	for raw, want := range cases {
		got, ok := ParseTxnStatus(raw)
		require.True(t, ok, "expected %q to parse", raw)
		assert.Equal(t, want, got, "raw %q", raw)
	}

	_, ok := ParseTxnStatus("garbage")
	assert.False(t, ok)
	_, ok = ParseTxnStatus("")
	assert.False(t, ok)
}
