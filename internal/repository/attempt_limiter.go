package repository

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// AttemptLimiter enforces a sliding-window cap on biometric match
// attempts per student, backed by a Redis sorted set keyed by student.
// The limiter throttles abuse of the kiosk UX; it is not an
// authentication control, so a nil or unreachable client fails open.
type AttemptLimiter struct {
	client *redis.Client
	limit  int
	window time.Duration
}

// NewAttemptLimiter constructs an AttemptLimiter.
func NewAttemptLimiter(client *redis.Client, limit int, window time.Duration) *AttemptLimiter {
	return &AttemptLimiter{client: client, limit: limit, window: window}
}

func (l *AttemptLimiter) key(studentID string) string {
	return "biometric:attempts:" + studentID
}

// Allow reports whether the student may attempt another match. When the
// cap is hit it returns the time until the oldest attempt ages out of the
// window.
func (l *AttemptLimiter) Allow(ctx context.Context, studentID string) (bool, time.Duration, error) {
	if l.client == nil || l.limit <= 0 {
		return true, 0, nil
	}

	now := time.Now()
	cutoff := now.Add(-l.window)
	key := l.key(studentID)

	if err := l.client.ZRemRangeByScore(ctx, key, "-inf", strconv.FormatInt(cutoff.UnixMilli(), 10)).Err(); err != nil {
		return true, 0, fmt.Errorf("trim attempt window for %s: %w", studentID, err)
	}

	count, err := l.client.ZCard(ctx, key).Result()
	if err != nil {
		return true, 0, fmt.Errorf("count attempts for %s: %w", studentID, err)
	}
	if int(count) < l.limit {
		return true, 0, nil
	}

	oldest, err := l.client.ZRangeWithScores(ctx, key, 0, 0).Result()
	if err != nil || len(oldest) == 0 {
		return false, l.window, nil
	}
	allowed, retryAfter := windowVerdict(int(count), l.limit, time.UnixMilli(int64(oldest[0].Score)), l.window, now)
	return allowed, retryAfter, nil
}

// windowVerdict decides a sliding-window check from already-fetched
// state: how many attempts sit in the window, the cap, and when the
// oldest attempt happened. At the cap, the caller must wait until the
// oldest attempt ages out.
func windowVerdict(count, limit int, oldest time.Time, window time.Duration, now time.Time) (bool, time.Duration) {
	if count < limit {
		return true, 0
	}
	retryAfter := oldest.Add(window).Sub(now)
	if retryAfter < 0 {
		retryAfter = 0
	}
	return false, retryAfter
}

// Record registers one attempt for the student.
func (l *AttemptLimiter) Record(ctx context.Context, studentID string) error {
	if l.client == nil || l.limit <= 0 {
		return nil
	}

	now := time.Now()
	key := l.key(studentID)
	member := redis.Z{
		Score:  float64(now.UnixMilli()),
		Member: strconv.FormatInt(now.UnixNano(), 10),
	}
	if err := l.client.ZAdd(ctx, key, member).Err(); err != nil {
		return fmt.Errorf("record attempt for %s: %w", studentID, err)
	}
	if err := l.client.Expire(ctx, key, l.window).Err(); err != nil {
		return fmt.Errorf("expire attempt window for %s: %w", studentID, err)
	}
	return nil
}
