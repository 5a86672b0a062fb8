package server

import (
	"fmt"
	"sync"
	"time"
)

// RateLimiter tracks per-client request rates and daily upload quotas.
// A limit of zero disables the corresponding check.
type RateLimiter struct {
	mu sync.RWMutex

	perMinute int
	perHour   int

	maxRequestsPerDay int
	maxBytesPerDay    int64

	clients map[string]*clientUsage
}

// clientUsage tracks counters for one client, keyed by IP.
type clientUsage struct {
	minuteCount int
	hourCount   int
	dayCount    int
	dayBytes    int64

	lastRequest time.Time
	dayStart    time.Time
}

// NewRateLimiter creates a rate limiter with the given limits.
func NewRateLimiter(perMinute, perHour, maxRequestsPerDay int, maxBytesPerDay int64) *RateLimiter {
	return &RateLimiter{
		perMinute:         perMinute,
		perHour:           perHour,
		maxRequestsPerDay: maxRequestsPerDay,
		maxBytesPerDay:    maxBytesPerDay,
		clients:           make(map[string]*clientUsage),
	}
}

// Check admits or rejects a request from clientID carrying uploadSize bytes.
// Admitted requests are counted immediately.
func (rl *RateLimiter) Check(clientID string, uploadSize int64) error {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	usage, ok := rl.clients[clientID]
	if !ok {
		usage = &clientUsage{lastRequest: now, dayStart: now}
		rl.clients[clientID] = usage
	}
	usage.rollOver(now)

	if rl.perMinute > 0 && usage.minuteCount >= rl.perMinute {
		return &RateLimitError{
			Window:     "minute",
			Limit:      rl.perMinute,
			RetryAfter: time.Minute - now.Sub(usage.lastRequest),
		}
	}
	if rl.perHour > 0 && usage.hourCount >= rl.perHour {
		return &RateLimitError{
			Window:     "hour",
			Limit:      rl.perHour,
			RetryAfter: time.Hour - now.Sub(usage.lastRequest),
		}
	}

	nextDay := time.Date(now.Year(), now.Month(), now.Day()+1, 0, 0, 0, 0, now.Location())
	if rl.maxRequestsPerDay > 0 && usage.dayCount >= rl.maxRequestsPerDay {
		return &QuotaExceededError{
			Kind:   "requests",
			Limit:  int64(rl.maxRequestsPerDay),
			Used:   int64(usage.dayCount),
			Resets: nextDay,
		}
	}
	if rl.maxBytesPerDay > 0 && usage.dayBytes+uploadSize > rl.maxBytesPerDay {
		return &QuotaExceededError{
			Kind:   "data",
			Limit:  rl.maxBytesPerDay,
			Used:   usage.dayBytes,
			Resets: nextDay,
		}
	}

	usage.minuteCount++
	usage.hourCount++
	usage.dayCount++
	usage.dayBytes += uploadSize
	usage.lastRequest = now
	return nil
}

// rollOver resets counters whose window has elapsed.
func (u *clientUsage) rollOver(now time.Time) {
	if now.Day() != u.dayStart.Day() || now.Month() != u.dayStart.Month() || now.Year() != u.dayStart.Year() {
		u.dayCount = 0
		u.dayBytes = 0
		u.dayStart = now
	}
	if now.Sub(u.lastRequest) >= time.Minute {
		u.minuteCount = 0
	}
	if now.Sub(u.lastRequest) >= time.Hour {
		u.hourCount = 0
	}
}

// RateLimitError reports a request-rate violation.
type RateLimitError struct {
	Window     string
	Limit      int
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded for %s (limit: %d, retry after: %v)", e.Window, e.Limit, e.RetryAfter)
}

// QuotaExceededError reports a daily quota violation.
type QuotaExceededError struct {
	Kind   string
	Limit  int64
	Used   int64
	Resets time.Time
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("quota exceeded for %s (used: %d, limit: %d, resets: %s)",
		e.Kind, e.Used, e.Limit, e.Resets.Format(time.RFC3339))
}
