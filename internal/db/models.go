package db

import (
	"time"

	"gorm.io/datatypes"
)

// Billing tiers. Unknown tiers are treated as starter everywhere limits or
// quotas are derived.
const (
	TierTrial        = "trial"
	TierStarter      = "starter"
	TierProfessional = "professional"
	TierEnterprise   = "enterprise"
)

// ValidTier reports whether tier is one of the paid, assignable tiers.
// Trial is excluded: trial clients are only created through the trial flow.
func ValidTier(tier string) bool {
	switch tier {
	case TierStarter, TierProfessional, TierEnterprise:
		return true
	}
	return false
}

// APIClient is the identity record for an external API consumer. Clients are
// never hard-deleted; deactivation flips Active and cascades to their keys.
type APIClient struct {
	ID uint `gorm:"primaryKey"`

	CreatedAt time.Time
	UpdatedAt time.Time

	Email       string `gorm:"uniqueIndex;size:255;not null"`
	CompanyName string `gorm:"size:255"`

	// BillingTier is one of trial/starter/professional/enterprise.
	BillingTier string `gorm:"size:32;not null;default:starter"`

	Active bool `gorm:"default:true"`

	// TrialEndsAt is set only while BillingTier is trial.
	TrialEndsAt *time.Time

	// Billing-period state. Recomputed by the external billing job; this
	// service only reads it (and bumps RequestsUsed as usage is recorded).
	MonthlyQuota int64 `gorm:"not null;default:0"`
	RequestsUsed int64 `gorm:"not null;default:0"`
	PeriodStart  time.Time
	PeriodEnd    time.Time

	// DashboardPasswordHash is the bcrypt hash for the dashboard read path.
	// Empty means the client has no dashboard access.
	DashboardPasswordHash string `gorm:"size:255"`
}

// APIKey is a credential record. Only the sha256 digest of the key is
// stored; the plaintext is returned to the caller once at creation and is
// not recoverable afterwards.
type APIKey struct {
	ID uint `gorm:"primaryKey"`

	CreatedAt time.Time
	UpdatedAt time.Time

	ClientID uint `gorm:"index;not null"`

	Name string `gorm:"size:128;not null"`

	// KeyHash is the hex sha256 digest of the plaintext key.
	KeyHash string `gorm:"uniqueIndex;size:64;not null"`

	// KeyPrefix is the first characters of the plaintext ("sk_ab12..."),
	// kept so dashboards can identify a key without revealing it.
	KeyPrefix string `gorm:"size:16"`

	Active bool `gorm:"default:true"`

	ExpiresAt  *time.Time
	LastUsedAt *time.Time

	Client APIClient `gorm:"foreignKey:ClientID"`
}

// UsageRecord is one append-only row per completed request attempt.
// Rows are written once, read for aggregation, and reaped by retention;
// nothing updates or deletes them otherwise.
type UsageRecord struct {
	ID uint `gorm:"primaryKey"`

	CreatedAt time.Time `gorm:"index"`

	APIKeyID uint `gorm:"index;not null"`
	ClientID uint `gorm:"index;not null"`

	Endpoint string `gorm:"size:255;index;not null"`
	Success  bool

	ResponseTimeMs int64

	// ErrorCode is the envelope error code for failed requests, empty on
	// success.
	ErrorCode string `gorm:"size:64"`

	// RequestData holds an optional JSON snapshot of the request for
	// analytics (never rendered back to API callers).
	RequestData datatypes.JSONMap `gorm:"type:json"`
}

// RateCounter backs the per-minute limiter: one row per (key, minute
// window), incremented atomically. Stale windows are purged by retention.
type RateCounter struct {
	ID uint `gorm:"primaryKey"`

	APIKeyID    uint      `gorm:"uniqueIndex:idx_rate_counter_window,priority:1;not null"`
	WindowStart time.Time `gorm:"uniqueIndex:idx_rate_counter_window,priority:2;not null;index"`

	Count int64 `gorm:"not null"`
}

// TableName keeps the raw upsert in TakeRateToken and the model in sync.
func (RateCounter) TableName() string { return "rate_counters" }

// UsageRollup stores per-client daily usage totals for the dashboard trend.
// Filled by the rollup worker.
type UsageRollup struct {
	ID uint `gorm:"primaryKey"`

	ClientID uint      `gorm:"uniqueIndex:idx_usage_rollup_day,priority:1;not null"`
	Day      time.Time `gorm:"uniqueIndex:idx_usage_rollup_day,priority:2;not null"` // midnight UTC

	Requests        int64 `gorm:"not null"`
	Successful      int64 `gorm:"not null"`
	Failed          int64 `gorm:"not null"`
	TotalResponseMs int64 `gorm:"not null"`
}

// DashboardSession is an opaque login session for the dashboard read path.
// Kept in the database so concurrent instances share no in-process state.
type DashboardSession struct {
	ID uint `gorm:"primaryKey"`

	CreatedAt time.Time

	Token     string    `gorm:"uniqueIndex;size:64;not null"`
	ClientID  uint      `gorm:"index;not null"`
	ExpiresAt time.Time `gorm:"not null"`
}
