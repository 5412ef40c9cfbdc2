package errors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDerivesCategoryAndSeverity(t *testing.T) {
	err := New(ErrCodeLLMTransport, "connection refused", nil)
	assert.Equal(t, CategoryNetwork, err.Category)
	assert.True(t, err.Retryable)
	assert.Equal(t, SeverityWarning, err.Severity)

	err = New(ErrCodeCorruptStore, "db corrupt", nil)
	assert.Equal(t, SeverityFatal, err.Severity)
	assert.False(t, err.Retryable)
}

func TestWrapNilReturnsNil(t *testing.T) {
	assert.Nil(t, Wrap(ErrCodeInternal, nil))
}

func TestErrorIsMatchesByCode(t *testing.T) {
	a := New(ErrCodeNotFound, "missing", nil)
	b := New(ErrCodeNotFound, "different message", nil)
	assert.True(t, errors.Is(a, b))

	c := New(ErrCodeInternal, "missing", nil)
	assert.False(t, errors.Is(a, c))
}

func TestUnwrapReturnsCause(t *testing.T) {
	cause := errors.New("boom")
	wrapped := Wrap(ErrCodeQuery, cause)
	require.Equal(t, cause, errors.Unwrap(wrapped))
}

func TestWithDetailChains(t *testing.T) {
	err := New(ErrCodeInvalidInput, "bad kind", nil).
		WithDetail("kind", "video/mp4").
		WithDetail("contentId", "abc")
	assert.Equal(t, "video/mp4", err.Details["kind"])
	assert.Equal(t, "abc", err.Details["contentId"])
}

func TestIsRetryableAndIsFatal(t *testing.T) {
	assert.True(t, IsRetryable(New(ErrCodeLLMRateLimited, "429", nil)))
	assert.False(t, IsRetryable(New(ErrCodeInvalidInput, "bad", nil)))
	assert.False(t, IsRetryable(errors.New("plain error")))

	assert.True(t, IsFatal(New(ErrCodeNotConnected, "down", nil)))
	assert.False(t, IsFatal(New(ErrCodeInvalidInput, "bad", nil)))
}

func TestGetCode(t *testing.T) {
	assert.Equal(t, ErrCodeQuery, GetCode(New(ErrCodeQuery, "x", nil)))
	assert.Equal(t, "", GetCode(errors.New("plain")))
}
