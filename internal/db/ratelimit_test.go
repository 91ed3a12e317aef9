package db

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimitFor(t *testing.T) {
	assert.Equal(t, int64(10), RateLimitFor(TierStarter))
	assert.Equal(t, int64(50), RateLimitFor(TierProfessional))
	assert.Equal(t, int64(200), RateLimitFor(TierEnterprise))

	// Trial and unknown tiers fall back to the starter ceiling.
	assert.Equal(t, int64(10), RateLimitFor(TierTrial))
	assert.Equal(t, int64(10), RateLimitFor("platinum"))
	assert.Equal(t, int64(10), RateLimitFor(""))
}

func TestRateStatusHeaders(t *testing.T) {
	reset := time.Date(2026, 3, 1, 12, 5, 0, 0, time.UTC)
	st := RateStatus{Allowed: true, Limit: 50, Remaining: 12, Reset: reset}

	h := st.Headers()
	assert.Equal(t, "50", h["X-RateLimit-Limit"])
	assert.Equal(t, "12", h["X-RateLimit-Remaining"])
	assert.Equal(t, "1772366700", h["X-RateLimit-Reset"])
}

func TestRateStatusRetryAfter(t *testing.T) {
	reset := time.Date(2026, 3, 1, 12, 5, 0, 0, time.UTC)
	st := RateStatus{Reset: reset}

	assert.Equal(t, int64(30), st.RetryAfter(reset.Add(-30*time.Second)))

	// Never less than one second, even at or past the boundary.
	assert.Equal(t, int64(1), st.RetryAfter(reset))
	assert.Equal(t, int64(1), st.RetryAfter(reset.Add(5*time.Second)))
}
