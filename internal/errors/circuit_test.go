package errors

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCircuitBreakerOpensAfterMaxFailures(t *testing.T) {
	cb := NewCircuitBreaker("llm", WithMaxFailures(2), WithResetTimeout(time.Hour))

	assert.Equal(t, StateClosed, cb.State())
	cb.RecordFailure()
	assert.Equal(t, StateClosed, cb.State())
	cb.RecordFailure()
	assert.Equal(t, StateOpen, cb.State())
	assert.False(t, cb.Allow())
}

func TestCircuitBreakerHalfOpensAfterTimeout(t *testing.T) {
	cb := NewCircuitBreaker("llm", WithMaxFailures(1), WithResetTimeout(time.Millisecond))
	cb.RecordFailure()
	require.Equal(t, StateOpen, cb.State())

	time.Sleep(5 * time.Millisecond)
	assert.Equal(t, StateHalfOpen, cb.State())
	assert.True(t, cb.Allow())
}

func TestExecuteWithResultFallsBackWhenOpen(t *testing.T) {
	cb := NewCircuitBreaker("llm", WithMaxFailures(1), WithResetTimeout(time.Hour))
	cb.RecordFailure()

	calledFn := false
	result, err := ExecuteWithResult(cb,
		func() (string, error) {
			calledFn = true
			return "", nil
		},
		func() (string, error) {
			return "fallback", nil
		},
	)
	require.NoError(t, err)
	assert.Equal(t, "fallback", result)
	assert.False(t, calledFn)
}

func TestExecuteWithResultRecordsSuccessWhenClosed(t *testing.T) {
	cb := NewCircuitBreaker("llm", WithMaxFailures(2), WithResetTimeout(time.Hour))
	cb.RecordFailure()

	result, err := ExecuteWithResult(cb,
		func() (int, error) { return 7, nil },
		func() (int, error) { return -1, errors.New("should not be called") },
	)
	require.NoError(t, err)
	assert.Equal(t, 7, result)
	assert.Equal(t, 0, cb.Failures())
}
