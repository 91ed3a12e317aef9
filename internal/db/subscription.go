package db

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"

	"gorm.io/gorm"
)

// Trial terms.
const (
	TrialDurationDays = 14
	TrialRequestLimit = 100
)

// Monthly request quotas by tier.
var tierMonthlyQuotas = map[string]int64{
	TierTrial:        TrialRequestLimit,
	TierStarter:      1000,
	TierProfessional: 10000,
	TierEnterprise:   100000,
}

// Per-request overage rates in USD, applied past the monthly quota.
var tierOverageRates = map[string]float64{
	TierStarter:      0.01,
	TierProfessional: 0.005,
	TierEnterprise:   0.002,
}

// MonthlyQuotaFor returns the monthly request quota for a tier; unknown
// tiers get the starter quota.
func MonthlyQuotaFor(tier string) int64 {
	if q, ok := tierMonthlyQuotas[tier]; ok {
		return q
	}
	return tierMonthlyQuotas[TierStarter]
}

// Subscription is the read-only billing-state view over a client row. The
// external billing job owns the underlying fields; this service only
// derives the view.
type Subscription struct {
	Tier              string     `json:"tier"`
	MonthlyQuota      int64      `json:"monthly_quota"`
	PeriodStart       time.Time  `json:"period_start"`
	PeriodEnd         time.Time  `json:"period_end"`
	RequestsUsed      int64      `json:"requests_used"`
	RequestsRemaining int64      `json:"requests_remaining"`
	OverageCount      int64      `json:"overage_count"`
	OverageCost       float64    `json:"overage_cost"`
	TrialEndsAt       *time.Time `json:"trial_ends_at,omitempty"`
}

// SubscriptionFor derives the billing view from a client record.
func SubscriptionFor(client *APIClient) Subscription {
	quota := client.MonthlyQuota
	if quota <= 0 {
		quota = MonthlyQuotaFor(client.BillingTier)
	}

	remaining := quota - client.RequestsUsed
	if remaining < 0 {
		remaining = 0
	}
	overage := client.RequestsUsed - quota
	if overage < 0 {
		overage = 0
	}

	return Subscription{
		Tier:              client.BillingTier,
		MonthlyQuota:      quota,
		PeriodStart:       client.PeriodStart,
		PeriodEnd:         client.PeriodEnd,
		RequestsUsed:      client.RequestsUsed,
		RequestsRemaining: remaining,
		OverageCount:      overage,
		OverageCost:       float64(overage) * tierOverageRates[client.BillingTier],
		TrialEndsAt:       client.TrialEndsAt,
	}
}

// TrialGrant is returned when a trial is created or its key regenerated.
// APIKey is the plaintext, disclosed here and never again.
type TrialGrant struct {
	APIKey            string     `json:"api_key,omitempty"`
	Tier              string     `json:"tier"`
	TrialEndsAt       time.Time  `json:"trial_ends_at"`
	RequestsLimit     int64      `json:"requests_limit"`
	RequestsRemaining int64      `json:"requests_remaining"`
	Regenerated       bool       `json:"regenerated,omitempty"`
	ExistingTrial     bool       `json:"existing_trial,omitempty"`
	KeyPrefix         string     `json:"key_prefix,omitempty"`
	LastUsedAt        *time.Time `json:"last_used_at,omitempty"`
}

var (
	// ErrAlreadySubscribed rejects trial creation for a paying client.
	ErrAlreadySubscribed = errors.New("client already has a paid subscription")
	// ErrTrialNotExpired rejects regeneration while the trial still runs.
	ErrTrialNotExpired = errors.New("trial has not expired yet")
	// ErrNoTrial is returned when a trial operation targets a non-trial client.
	ErrNoTrial = errors.New("no trial subscription found")
)

// CreateTrial provisions a 14-day trial for an email address. An expired
// trial is regenerated; an active trial returns its current details without
// minting a new key; a paid client is rejected.
func CreateTrial(db *gorm.DB, email, companyName string) (*TrialGrant, error) {
	var existing APIClient
	err := db.Where("email = ?", email).Limit(1).Find(&existing).Error
	if err != nil {
		return nil, err
	}

	if existing.ID != 0 {
		if existing.BillingTier != TierTrial {
			return nil, ErrAlreadySubscribed
		}
		if existing.TrialEndsAt != nil && existing.TrialEndsAt.Before(time.Now()) {
			return RegenerateTrialKey(db, email)
		}
		return trialDetails(db, &existing)
	}

	endsAt := time.Now().UTC().Add(TrialDurationDays * 24 * time.Hour)
	periodStart, periodEnd := currentBillingPeriod(time.Now().UTC())

	var plaintext string
	err = db.Transaction(func(tx *gorm.DB) error {
		client := &APIClient{
			Email:        email,
			CompanyName:  companyName,
			BillingTier:  TierTrial,
			Active:       true,
			TrialEndsAt:  &endsAt,
			MonthlyQuota: TrialRequestLimit,
			PeriodStart:  periodStart,
			PeriodEnd:    periodEnd,
		}
		if err := tx.Create(client).Error; err != nil {
			return err
		}
		var err error
		plaintext, _, err = CreateKey(tx, client.ID, "Trial Key", &endsAt)
		return err
	})
	if err != nil {
		return nil, err
	}

	return &TrialGrant{
		APIKey:            plaintext,
		Tier:              TierTrial,
		TrialEndsAt:       endsAt,
		RequestsLimit:     TrialRequestLimit,
		RequestsRemaining: TrialRequestLimit,
	}, nil
}

// RegenerateTrialKey replaces an expired trial: old keys are deactivated,
// the usage counter resets, the trial extends another 14 days, and a fresh
// key expiring with the trial is issued.
func RegenerateTrialKey(db *gorm.DB, email string) (*TrialGrant, error) {
	var client APIClient
	err := db.Where("email = ? AND billing_tier = ?", email, TierTrial).First(&client).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNoTrial
		}
		return nil, err
	}
	if client.TrialEndsAt != nil && client.TrialEndsAt.After(time.Now()) {
		return nil, ErrTrialNotExpired
	}

	endsAt := time.Now().UTC().Add(TrialDurationDays * 24 * time.Hour)

	var plaintext string
	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&APIKey{}).
			Where("client_id = ?", client.ID).
			Update("active", false).Error; err != nil {
			return err
		}
		if err := tx.Model(&client).Updates(map[string]interface{}{
			"trial_ends_at": endsAt,
			"requests_used": 0,
			"active":        true,
		}).Error; err != nil {
			return err
		}
		var err error
		plaintext, _, err = CreateKey(tx, client.ID, "Trial Key", &endsAt)
		return err
	})
	if err != nil {
		return nil, err
	}

	return &TrialGrant{
		APIKey:            plaintext,
		Tier:              TierTrial,
		TrialEndsAt:       endsAt,
		RequestsLimit:     TrialRequestLimit,
		RequestsRemaining: TrialRequestLimit,
		Regenerated:       true,
	}, nil
}

// UpgradeFromTrial moves a trial client onto a paid tier: trial keys are
// deactivated, the tier and quota switch over, and a non-expiring key is
// issued.
func UpgradeFromTrial(db *gorm.DB, email, newTier string) (string, *APIClient, error) {
	if !ValidTier(newTier) {
		return "", nil, errors.New("invalid billing tier: " + newTier)
	}

	var client APIClient
	err := db.Where("email = ?", email).First(&client).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil, ErrClientNotFound
		}
		return "", nil, err
	}
	if client.BillingTier != TierTrial {
		return "", nil, ErrNoTrial
	}

	var plaintext string
	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&APIKey{}).
			Where("client_id = ?", client.ID).
			Updates(map[string]interface{}{"active": false, "expires_at": time.Now()}).Error; err != nil {
			return err
		}
		if err := tx.Model(&client).Updates(map[string]interface{}{
			"billing_tier":  newTier,
			"trial_ends_at": nil,
			"monthly_quota": MonthlyQuotaFor(newTier),
			"requests_used": 0,
		}).Error; err != nil {
			return err
		}
		var err error
		plaintext, _, err = CreateKey(tx, client.ID, "Default API Key", nil)
		return err
	})
	if err != nil {
		return "", nil, err
	}

	client.BillingTier = newTier
	client.TrialEndsAt = nil
	client.MonthlyQuota = MonthlyQuotaFor(newTier)
	client.RequestsUsed = 0
	return plaintext, &client, nil
}

func trialDetails(db *gorm.DB, client *APIClient) (*TrialGrant, error) {
	var key APIKey
	if err := db.Where("client_id = ? AND active = ?", client.ID, true).
		Order("created_at DESC").Limit(1).Find(&key).Error; err != nil {
		return nil, err
	}

	remaining := client.MonthlyQuota - client.RequestsUsed
	if remaining < 0 {
		remaining = 0
	}
	grant := &TrialGrant{
		Tier:              TierTrial,
		RequestsLimit:     client.MonthlyQuota,
		RequestsRemaining: remaining,
		ExistingTrial:     true,
		KeyPrefix:         key.KeyPrefix,
		LastUsedAt:        key.LastUsedAt,
	}
	if client.TrialEndsAt != nil {
		grant.TrialEndsAt = *client.TrialEndsAt
	}
	return grant, nil
}

// NewSessionToken mints an opaque dashboard session token.
func NewSessionToken() (string, error) {
	b := make([]byte, 24)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
