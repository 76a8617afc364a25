package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWindowVerdictUnderLimit(t *testing.T) {
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)

	allowed, retryAfter := windowVerdict(4, 5, now.Add(-time.Minute), 5*time.Minute, now)
	assert.True(t, allowed)
	assert.Equal(t, time.Duration(0), retryAfter)
}

func TestWindowVerdictAtLimit(t *testing.T) {
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	window := 5 * time.Minute

	// Oldest attempt was 2 minutes ago, so it ages out in 3.
	allowed, retryAfter := windowVerdict(5, 5, now.Add(-2*time.Minute), window, now)
	assert.False(t, allowed)
	assert.Equal(t, 3*time.Minute, retryAfter)

	// Over the cap behaves the same as exactly at it.
	allowed, retryAfter = windowVerdict(7, 5, now.Add(-2*time.Minute), window, now)
	assert.False(t, allowed)
	assert.Equal(t, 3*time.Minute, retryAfter)
}

func TestWindowVerdictRetryNeverNegative(t *testing.T) {
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)

	// The oldest attempt already aged out between fetch and decision;
	// the caller can retry immediately rather than wait a negative span.
	allowed, retryAfter := windowVerdict(5, 5, now.Add(-10*time.Minute), 5*time.Minute, now)
	assert.False(t, allowed)
	assert.Equal(t, time.Duration(0), retryAfter)
}

func TestWindowVerdictOldestExactlyExpiring(t *testing.T) {
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)

	allowed, retryAfter := windowVerdict(5, 5, now.Add(-5*time.Minute), 5*time.Minute, now)
	assert.False(t, allowed)
	assert.Equal(t, time.Duration(0), retryAfter)
}

func TestAttemptLimiterFailsOpenWithoutRedis(t *testing.T) {
	limiter := NewAttemptLimiter(nil, 5, 5*time.Minute)

	allowed, retryAfter, err := limiter.Allow(context.Background(), "stu-1")
	require.NoError(t, err)
	assert.True(t, allowed)
	assert.Equal(t, time.Duration(0), retryAfter)

	require.NoError(t, limiter.Record(context.Background(), "stu-1"))
}

func TestAttemptLimiterDisabledByZeroLimit(t *testing.T) {
	limiter := NewAttemptLimiter(nil, 0, 5*time.Minute)

	allowed, _, err := limiter.Allow(context.Background(), "stu-1")
	require.NoError(t, err)
	assert.True(t, allowed)
}
