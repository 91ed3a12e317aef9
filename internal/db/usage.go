package db

import (
	"sort"
	"time"

	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// RecordUsage appends one usage row and bumps the key's last-used timestamp
// and the client's period counter. Best effort: failures are logged and
// swallowed, never propagated to the request that produced them.
func RecordUsage(db *gorm.DB, rec *UsageRecord) {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	if err := db.Create(rec).Error; err != nil {
		log.WithError(err).WithFields(log.Fields{
			"api_key_id": rec.APIKeyID,
			"endpoint":   rec.Endpoint,
		}).Warn("failed to record usage")
		return
	}

	if err := TouchKey(db, rec.APIKeyID, rec.CreatedAt); err != nil {
		log.WithError(err).WithField("api_key_id", rec.APIKeyID).Warn("failed to update key last_used_at")
	}
	if err := db.Model(&APIClient{}).
		Where("id = ?", rec.ClientID).
		UpdateColumn("requests_used", gorm.Expr("requests_used + 1")).Error; err != nil {
		log.WithError(err).WithField("client_id", rec.ClientID).Warn("failed to bump requests_used")
	}
}

// UsageSummary is the top-level reduction over a client's usage window.
type UsageSummary struct {
	TotalRequests      int64      `json:"total_requests"`
	SuccessfulRequests int64      `json:"successful_requests"`
	FailedRequests     int64      `json:"failed_requests"`
	SuccessRate        float64    `json:"success_rate"`
	AvgResponseTimeMs  float64    `json:"avg_response_time_ms"`
	FirstRequest       *time.Time `json:"first_request,omitempty"`
	LastRequest        *time.Time `json:"last_request,omitempty"`
	PeriodDays         int        `json:"period_days"`
}

// DailyUsage is one calendar day (UTC) of the daily trend.
type DailyUsage struct {
	Date              string  `json:"date"`
	Requests          int64   `json:"requests"`
	Successful        int64   `json:"successful"`
	SuccessRate       float64 `json:"success_rate"`
	AvgResponseTimeMs float64 `json:"avg_response_time_ms"`
}

// EndpointUsage is the per-endpoint breakdown.
type EndpointUsage struct {
	Endpoint          string  `json:"endpoint"`
	Requests          int64   `json:"requests"`
	Successful        int64   `json:"successful"`
	SuccessRate       float64 `json:"success_rate"`
	AvgResponseTimeMs float64 `json:"avg_response_time_ms"`
}

// UsageStats is the full aggregate returned by the usage endpoint.
type UsageStats struct {
	Summary       UsageSummary    `json:"summary"`
	DailyUsage    []DailyUsage    `json:"daily_usage"`
	EndpointUsage []EndpointUsage `json:"endpoint_usage"`
}

type usageBucket struct {
	requests   int64
	successful int64
	totalMs    int64
}

func (b usageBucket) successRate() float64 {
	if b.requests == 0 {
		return 0
	}
	return float64(b.successful) / float64(b.requests)
}

func (b usageBucket) avgMs() float64 {
	if b.requests == 0 {
		return 0
	}
	return float64(b.totalMs) / float64(b.requests)
}

// ComputeUsageStats reduces a bounded set of usage rows into totals, a daily
// trend (newest day first), and a per-endpoint breakdown (most requests
// first). success_rate is successful/total when total > 0, else 0. The
// average response time is weighted by request count, not by bucket.
func ComputeUsageStats(records []UsageRecord, periodDays int) UsageStats {
	var total usageBucket
	var first, last time.Time
	byDay := make(map[string]*usageBucket)
	byEndpoint := make(map[string]*usageBucket)

	for _, r := range records {
		total.requests++
		total.totalMs += r.ResponseTimeMs
		if r.Success {
			total.successful++
		}

		if first.IsZero() || r.CreatedAt.Before(first) {
			first = r.CreatedAt
		}
		if r.CreatedAt.After(last) {
			last = r.CreatedAt
		}

		day := r.CreatedAt.UTC().Format("2006-01-02")
		db := byDay[day]
		if db == nil {
			db = &usageBucket{}
			byDay[day] = db
		}
		db.requests++
		db.totalMs += r.ResponseTimeMs
		if r.Success {
			db.successful++
		}

		eb := byEndpoint[r.Endpoint]
		if eb == nil {
			eb = &usageBucket{}
			byEndpoint[r.Endpoint] = eb
		}
		eb.requests++
		eb.totalMs += r.ResponseTimeMs
		if r.Success {
			eb.successful++
		}
	}

	stats := UsageStats{
		Summary: UsageSummary{
			TotalRequests:      total.requests,
			SuccessfulRequests: total.successful,
			FailedRequests:     total.requests - total.successful,
			SuccessRate:        total.successRate(),
			AvgResponseTimeMs:  total.avgMs(),
			PeriodDays:         periodDays,
		},
		DailyUsage:    make([]DailyUsage, 0, len(byDay)),
		EndpointUsage: make([]EndpointUsage, 0, len(byEndpoint)),
	}
	if total.requests > 0 {
		f, l := first, last
		stats.Summary.FirstRequest = &f
		stats.Summary.LastRequest = &l
	}

	for day, b := range byDay {
		stats.DailyUsage = append(stats.DailyUsage, DailyUsage{
			Date:              day,
			Requests:          b.requests,
			Successful:        b.successful,
			SuccessRate:       b.successRate(),
			AvgResponseTimeMs: b.avgMs(),
		})
	}
	sort.Slice(stats.DailyUsage, func(i, j int) bool {
		return stats.DailyUsage[i].Date > stats.DailyUsage[j].Date
	})

	for endpoint, b := range byEndpoint {
		stats.EndpointUsage = append(stats.EndpointUsage, EndpointUsage{
			Endpoint:          endpoint,
			Requests:          b.requests,
			Successful:        b.successful,
			SuccessRate:       b.successRate(),
			AvgResponseTimeMs: b.avgMs(),
		})
	}
	sort.Slice(stats.EndpointUsage, func(i, j int) bool {
		a, b := stats.EndpointUsage[i], stats.EndpointUsage[j]
		if a.Requests != b.Requests {
			return a.Requests > b.Requests
		}
		return a.Endpoint < b.Endpoint
	})

	return stats
}

// ClientUsageStats loads a client's usage rows for the trailing window and
// reduces them. days is clamped to [1, maxDays].
func ClientUsageStats(db *gorm.DB, clientID uint, days, maxDays int) (UsageStats, error) {
	if days < 1 {
		days = 1
	}
	if days > maxDays {
		days = maxDays
	}
	cutoff := time.Now().Add(-time.Duration(days) * 24 * time.Hour)

	var records []UsageRecord
	err := db.Where("client_id = ? AND created_at >= ?", clientID, cutoff).
		Select("created_at", "endpoint", "success", "response_time_ms").
		Find(&records).Error
	if err != nil {
		return UsageStats{}, err
	}
	return ComputeUsageStats(records, days), nil
}
