package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetryInvalidate_SucceedsWithoutRetryingOnFirstSuccess(t *testing.T) {
	calls := 0
	err := RetryInvalidate(context.Background(), 3, time.Millisecond, 10*time.Millisecond, func() error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetryInvalidate_RetriesUntilSuccess(t *testing.T) {
	calls := 0
	boom := errors.New("transient")
	err := RetryInvalidate(context.Background(), 5, time.Millisecond, 10*time.Millisecond, func() error {
		calls++
		if calls < 3 {
			return boom
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryInvalidate_ExhaustsRetriesAndReturnsError(t *testing.T) {
	calls := 0
	boom := errors.New("always fails")
	err := RetryInvalidate(context.Background(), 2, time.Millisecond, 5*time.Millisecond, func() error {
		calls++
		return boom
	})
	require.Error(t, err)
	assert.Equal(t, 3, calls) // initial attempt + 2 retries
}
