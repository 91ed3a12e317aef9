package db

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rec(at time.Time, endpoint string, success bool, ms int64) UsageRecord {
	return UsageRecord{CreatedAt: at, Endpoint: endpoint, Success: success, ResponseTimeMs: ms}
}

func TestComputeUsageStatsEmpty(t *testing.T) {
	stats := ComputeUsageStats(nil, 7)

	assert.Equal(t, int64(0), stats.Summary.TotalRequests)
	assert.Equal(t, float64(0), stats.Summary.SuccessRate)
	assert.Equal(t, float64(0), stats.Summary.AvgResponseTimeMs)
	assert.Nil(t, stats.Summary.FirstRequest)
	assert.Nil(t, stats.Summary.LastRequest)
	assert.Equal(t, 7, stats.Summary.PeriodDays)
	assert.Empty(t, stats.DailyUsage)
	assert.Empty(t, stats.EndpointUsage)
}

func TestComputeUsageStatsSummary(t *testing.T) {
	base := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	records := []UsageRecord{
		rec(base, "/api/v1/routes", true, 100),
		rec(base.Add(time.Hour), "/api/v1/routes", true, 200),
		rec(base.Add(2*time.Hour), "/api/v1/routes", false, 300),
		rec(base.Add(3*time.Hour), "/api/v1/optimize", true, 400),
	}

	stats := ComputeUsageStats(records, 7)
	s := stats.Summary

	assert.Equal(t, int64(4), s.TotalRequests)
	assert.Equal(t, int64(3), s.SuccessfulRequests)
	assert.Equal(t, int64(1), s.FailedRequests)
	assert.InDelta(t, 0.75, s.SuccessRate, 1e-9)
	assert.InDelta(t, 250, s.AvgResponseTimeMs, 1e-9)

	require.NotNil(t, s.FirstRequest)
	require.NotNil(t, s.LastRequest)
	assert.Equal(t, base, *s.FirstRequest)
	assert.Equal(t, base.Add(3*time.Hour), *s.LastRequest)
}

func TestComputeUsageStatsDailyOrder(t *testing.T) {
	records := []UsageRecord{
		rec(time.Date(2026, 3, 8, 10, 0, 0, 0, time.UTC), "/a", true, 10),
		rec(time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC), "/a", true, 10),
		rec(time.Date(2026, 3, 9, 10, 0, 0, 0, time.UTC), "/a", false, 10),
		rec(time.Date(2026, 3, 9, 11, 0, 0, 0, time.UTC), "/a", true, 30),
	}

	stats := ComputeUsageStats(records, 7)
	require.Len(t, stats.DailyUsage, 3)

	// Newest day first.
	assert.Equal(t, "2026-03-10", stats.DailyUsage[0].Date)
	assert.Equal(t, "2026-03-09", stats.DailyUsage[1].Date)
	assert.Equal(t, "2026-03-08", stats.DailyUsage[2].Date)

	mid := stats.DailyUsage[1]
	assert.Equal(t, int64(2), mid.Requests)
	assert.Equal(t, int64(1), mid.Successful)
	assert.InDelta(t, 0.5, mid.SuccessRate, 1e-9)
	assert.InDelta(t, 20, mid.AvgResponseTimeMs, 1e-9)
}

func TestComputeUsageStatsEndpointOrder(t *testing.T) {
	at := time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)
	records := []UsageRecord{
		rec(at, "/b", true, 10),
		rec(at, "/b", true, 10),
		rec(at, "/c", true, 10),
		rec(at, "/a", false, 10),
	}

	stats := ComputeUsageStats(records, 1)
	require.Len(t, stats.EndpointUsage, 3)

	// Most requests first, name as the tiebreak.
	assert.Equal(t, "/b", stats.EndpointUsage[0].Endpoint)
	assert.Equal(t, "/a", stats.EndpointUsage[1].Endpoint)
	assert.Equal(t, "/c", stats.EndpointUsage[2].Endpoint)

	assert.Equal(t, int64(2), stats.EndpointUsage[0].Requests)
	assert.Equal(t, float64(0), stats.EndpointUsage[1].SuccessRate)
}

func TestComputeUsageStatsDayBoundaryUTC(t *testing.T) {
	// One minute either side of midnight UTC lands in different buckets.
	records := []UsageRecord{
		rec(time.Date(2026, 3, 9, 23, 59, 0, 0, time.UTC), "/a", true, 10),
		rec(time.Date(2026, 3, 10, 0, 1, 0, 0, time.UTC), "/a", true, 10),
	}

	stats := ComputeUsageStats(records, 1)
	require.Len(t, stats.DailyUsage, 2)
	assert.Equal(t, "2026-03-10", stats.DailyUsage[0].Date)
	assert.Equal(t, "2026-03-09", stats.DailyUsage[1].Date)
}
