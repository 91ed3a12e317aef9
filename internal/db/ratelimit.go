package db

import (
	"strconv"
	"time"

	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Per-minute request ceilings by billing tier. This table is fixed; per-key
// overrides are deliberately not supported. Trial and unknown tiers use the
// starter ceiling.
var tierRateLimits = map[string]int64{
	TierStarter:      10,
	TierProfessional: 50,
	TierEnterprise:   200,
}

// RateLimitFor returns the requests-per-minute ceiling for a tier.
func RateLimitFor(tier string) int64 {
	if limit, ok := tierRateLimits[tier]; ok {
		return limit
	}
	return tierRateLimits[TierStarter]
}

// RateStatus is the outcome of one limiter take for a single request.
type RateStatus struct {
	Allowed   bool
	Limit     int64
	Remaining int64
	Reset     time.Time
}

// RetryAfter returns the seconds until the window resets, for the
// Retry-After header on rejected requests.
func (s RateStatus) RetryAfter(now time.Time) int64 {
	secs := int64(s.Reset.Sub(now).Seconds())
	if secs < 1 {
		secs = 1
	}
	return secs
}

// Headers renders the rate state as standard X-RateLimit headers.
func (s RateStatus) Headers() map[string]string {
	return map[string]string{
		"X-RateLimit-Limit":     strconv.FormatInt(s.Limit, 10),
		"X-RateLimit-Remaining": strconv.FormatInt(s.Remaining, 10),
		"X-RateLimit-Reset":     strconv.FormatInt(s.Reset.Unix(), 10),
	}
}

// TakeRateToken consumes one slot of the key's current one-minute window and
// reports whether the request is allowed. The upsert-increment is a single
// atomic statement, so two concurrent requests on the edge of the window
// cannot both observe a free slot. A rejected request still consumes its
// slot (fixed-window semantics).
//
// On a storage error the limiter fails open with the tier ceiling and a
// logged warning: rate limiting is best effort and must not take the API
// down with it.
func TakeRateToken(db *gorm.DB, keyID uint, tier string, now time.Time) RateStatus {
	limit := RateLimitFor(tier)
	windowStart := now.UTC().Truncate(time.Minute)
	reset := windowStart.Add(time.Minute)

	var count int64
	err := db.Raw(`
		INSERT INTO rate_counters (api_key_id, window_start, count)
		VALUES (?, ?, 1)
		ON CONFLICT (api_key_id, window_start)
		DO UPDATE SET count = rate_counters.count + 1
		RETURNING count`,
		keyID, windowStart,
	).Scan(&count).Error
	if err != nil {
		log.WithError(err).WithField("api_key_id", keyID).Warn("rate counter increment failed, allowing request")
		return RateStatus{Allowed: true, Limit: limit, Remaining: 0, Reset: reset}
	}

	remaining := limit - count
	if remaining < 0 {
		remaining = 0
	}
	return RateStatus{
		Allowed:   count <= limit,
		Limit:     limit,
		Remaining: remaining,
		Reset:     reset,
	}
}

// PeekRateStatus reads the current window without consuming a slot, for the
// usage endpoint's display-only snapshot.
func PeekRateStatus(db *gorm.DB, keyID uint, tier string, now time.Time) (RateStatus, error) {
	limit := RateLimitFor(tier)
	windowStart := now.UTC().Truncate(time.Minute)
	reset := windowStart.Add(time.Minute)

	var counter RateCounter
	err := db.Where("api_key_id = ? AND window_start = ?", keyID, windowStart).
		Limit(1).Find(&counter).Error
	if err != nil {
		return RateStatus{}, err
	}

	remaining := limit - counter.Count
	if remaining < 0 {
		remaining = 0
	}
	return RateStatus{
		Allowed:   counter.Count < limit,
		Limit:     limit,
		Remaining: remaining,
		Reset:     reset,
	}, nil
}
