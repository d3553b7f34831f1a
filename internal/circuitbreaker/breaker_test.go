package circuitbreaker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Defaults(t *testing.T) {
	b := New(Config{})
	assert.Equal(t, StateClosed, b.GetState())
	assert.Equal(t, 5, b.failureThreshold)
	assert.Equal(t, 2, b.successThreshold)
	assert.Equal(t, 30*time.Second, b.openTimeout)
}

func TestBreaker_ClosedAllowsRequests(t *testing.T) {
	b := New(Config{FailureThreshold: 3})
	require.NoError(t, b.Allow())
}

func TestBreaker_OpensAfterThreshold(t *testing.T) {
	b := New(Config{FailureThreshold: 3, OpenTimeout: 1 * time.Hour})

	b.RecordFailure()
	b.RecordFailure()
	require.NoError(t, b.Allow(), "should still be closed below threshold")

	b.RecordFailure()
	assert.Equal(t, StateOpen, b.GetState())
	assert.ErrorIs(t, b.Allow(), ErrCircuitOpen)
}

func TestBreaker_SuccessResetsFailureCount(t *testing.T) {
	b := New(Config{FailureThreshold: 3, OpenTimeout: 1 * time.Hour})

	b.RecordFailure()
	b.RecordFailure()
	b.RecordSuccess()
	b.RecordFailure()
	b.RecordFailure()
	require.NoError(t, b.Allow())
	assert.Equal(t, StateClosed, b.GetState())
}

func TestBreaker_HalfOpenAfterTimeout(t *testing.T) {
	b := New(Config{FailureThreshold: 1, OpenTimeout: 10 * time.Millisecond})

	b.RecordFailure()
	assert.ErrorIs(t, b.Allow(), ErrCircuitOpen)

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, b.Allow(), "expired open promotes to half-open probe")
	assert.Equal(t, StateHalfOpen, b.GetState())
}

func TestBreaker_HalfOpenClosesAfterSuccesses(t *testing.T) {
	b := New(Config{FailureThreshold: 1, SuccessThreshold: 2, OpenTimeout: 10 * time.Millisecond})

	b.RecordFailure()
	time.Sleep(20 * time.Millisecond)
	require.NoError(t, b.Allow())

	b.RecordSuccess()
	assert.Equal(t, StateHalfOpen, b.GetState())
	b.RecordSuccess()
	assert.Equal(t, StateClosed, b.GetState())
}

func TestBreaker_HalfOpenReopensOnFailure(t *testing.T) {
	b := New(Config{FailureThreshold: 1, OpenTimeout: 10 * time.Millisecond})

	b.RecordFailure()
	time.Sleep(20 * time.Millisecond)
	require.NoError(t, b.Allow())

	b.RecordFailure()
	assert.Equal(t, StateOpen, b.GetState())
	assert.ErrorIs(t, b.Allow(), ErrCircuitOpen)
}

func TestBreaker_StateChangeCallback(t *testing.T) {
	var changes [][2]State
	b := New(Config{
		FailureThreshold: 1,
		OpenTimeout:      1 * time.Hour,
		OnStateChange: func(from, to State) {
			changes = append(changes, [2]State{from, to})
		},
	})

	b.RecordFailure()
	require.Len(t, changes, 1)
	assert.Equal(t, StateClosed, changes[0][0])
	assert.Equal(t, StateOpen, changes[0][1])
}
