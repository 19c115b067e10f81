package server

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func TestRateLimiter_HourWindow(t *testing.T) {
	clk := &fakeClock{t: time.Date(2026, 5, 10, 9, 0, 0, 0, time.UTC)}
	rl := NewRateLimiter(0, 3, 0, 0).WithClock(clk.now)

	for range 3 {
		require.NoError(t, rl.CheckRateLimit("a", 0))
		clk.advance(10 * time.Minute)
	}

	err := rl.CheckRateLimit("a", 0)
	var rle *RateLimitError
	require.ErrorAs(t, err, &rle)
	assert.Equal(t, "hour", rle.Type)
	assert.Equal(t, 30*time.Minute, rle.RetryAfter)

	// other clients are independent
	require.NoError(t, rl.CheckRateLimit("b", 0))

	clk.advance(30 * time.Minute)
	require.NoError(t, rl.CheckRateLimit("a", 0))
	assert.Equal(t, 1, rl.Usage("a").RequestsLastHour)
}

func TestRateLimiter_DailyQuotas(t *testing.T) {
	clk := &fakeClock{t: time.Date(2026, 5, 10, 22, 0, 0, 0, time.UTC)}

	t.Run("requests", func(t *testing.T) {
		rl := NewRateLimiter(0, 0, 2, 0).WithClock(clk.now)
		require.NoError(t, rl.CheckRateLimit("a", 0))
		require.NoError(t, rl.CheckRateLimit("a", 0))

		var qe *QuotaExceededError
		require.ErrorAs(t, rl.CheckRateLimit("a", 0), &qe)
		assert.Equal(t, "requests", qe.Type)
		assert.EqualValues(t, 2, qe.Used)
		assert.Equal(t, time.Date(2026, 5, 11, 0, 0, 0, 0, time.UTC), qe.Resets)
	})

	t.Run("data", func(t *testing.T) {
		rl := NewRateLimiter(0, 0, 0, 1000).WithClock(clk.now)
		require.NoError(t, rl.CheckRateLimit("a", 600))

		var qe *QuotaExceededError
		require.ErrorAs(t, rl.CheckRateLimit("a", 600), &qe)
		assert.Equal(t, "data", qe.Type)
		assert.EqualValues(t, 600, rl.Usage("a").DataToday)
	})

	t.Run("reset at midnight", func(t *testing.T) {
		c := &fakeClock{t: clk.t}
		rl := NewRateLimiter(0, 0, 1, 0).WithClock(c.now)
		require.NoError(t, rl.CheckRateLimit("a", 0))
		require.Error(t, rl.CheckRateLimit("a", 0))

		c.advance(2 * time.Hour)
		require.NoError(t, rl.CheckRateLimit("a", 0))
	})
}

func TestRateLimiter_Disabled(t *testing.T) {
	rl := NewRateLimiter(0, 0, 0, 0)
	for range 100 {
		require.NoError(t, rl.CheckRateLimit("a", 1<<20))
	}
	assert.Equal(t, ClientUsage{}, rl.Usage("unknown"))
}

func TestRateLimitErrors_Messages(t *testing.T) {
	err := error(&RateLimitError{Type: "minute", Limit: 1, RetryAfter: time.Second})
	assert.Contains(t, err.Error(), "minute")

	q := &QuotaExceededError{Type: "data", Limit: 10, Used: 9, Resets: time.Unix(0, 0).UTC()}
	assert.Contains(t, q.Error(), "1970-01-01T00:00:00Z")
}
