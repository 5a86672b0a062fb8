package server

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiterMinuteLimit(t *testing.T) {
	rl := NewRateLimiter(2, 0, 0, 0)

	require.NoError(t, rl.Check("10.0.0.1", 0))
	require.NoError(t, rl.Check("10.0.0.1", 0))

	err := rl.Check("10.0.0.1", 0)
	require.Error(t, err)
	var rle *RateLimitError
	require.ErrorAs(t, err, &rle)
	assert.Equal(t, "minute", rle.Window)
	assert.Equal(t, 2, rle.Limit)
}

func TestRateLimiterHourLimit(t *testing.T) {
	rl := NewRateLimiter(0, 1, 0, 0)

	require.NoError(t, rl.Check("10.0.0.1", 0))

	var rle *RateLimitError
	require.ErrorAs(t, rl.Check("10.0.0.1", 0), &rle)
	assert.Equal(t, "hour", rle.Window)
}

func TestRateLimiterDailyRequestQuota(t *testing.T) {
	rl := NewRateLimiter(0, 0, 1, 0)

	require.NoError(t, rl.Check("10.0.0.1", 0))

	var qee *QuotaExceededError
	require.ErrorAs(t, rl.Check("10.0.0.1", 0), &qee)
	assert.Equal(t, "requests", qee.Kind)
	assert.Equal(t, int64(1), qee.Used)
}

func TestRateLimiterDataQuota(t *testing.T) {
	rl := NewRateLimiter(0, 0, 0, 100)

	require.NoError(t, rl.Check("10.0.0.1", 60))

	var qee *QuotaExceededError
	require.ErrorAs(t, rl.Check("10.0.0.1", 60), &qee)
	assert.Equal(t, "data", qee.Kind)
	assert.Equal(t, int64(60), qee.Used)
	assert.Equal(t, int64(100), qee.Limit)
}

func TestRateLimiterIsolatesClients(t *testing.T) {
	rl := NewRateLimiter(1, 0, 0, 0)

	require.NoError(t, rl.Check("10.0.0.1", 0))
	require.Error(t, rl.Check("10.0.0.1", 0))
	assert.NoError(t, rl.Check("10.0.0.2", 0))
}

func TestRateLimiterMinuteWindowResets(t *testing.T) {
	rl := NewRateLimiter(1, 0, 0, 0)

	require.NoError(t, rl.Check("10.0.0.1", 0))
	require.Error(t, rl.Check("10.0.0.1", 0))

	rl.clients["10.0.0.1"].lastRequest = time.Now().Add(-61 * time.Second)
	assert.NoError(t, rl.Check("10.0.0.1", 0))
}

func TestRateLimiterDayRollover(t *testing.T) {
	rl := NewRateLimiter(0, 0, 0, 100)

	require.NoError(t, rl.Check("10.0.0.1", 90))
	require.Error(t, rl.Check("10.0.0.1", 90))

	rl.clients["10.0.0.1"].dayStart = time.Now().AddDate(0, 0, -1)
	assert.NoError(t, rl.Check("10.0.0.1", 90))
}

func TestRateLimiterZeroLimitsDisableChecks(t *testing.T) {
	rl := NewRateLimiter(0, 0, 0, 0)
	for i := 0; i < 100; i++ {
		require.NoError(t, rl.Check("10.0.0.1", 1<<30))
	}
}
