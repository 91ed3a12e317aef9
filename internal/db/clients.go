package db

import (
	"errors"
	"time"

	"gorm.io/gorm"
)

// ErrClientNotFound is returned when a client lookup misses or the client
// is inactive.
var ErrClientNotFound = errors.New("client not found")

// ErrClientExists is returned when creating a client with a taken email.
var ErrClientExists = errors.New("client with this email already exists")

// CreateClient registers a new API client on a paid tier with that tier's
// monthly quota and a calendar-month billing period.
func CreateClient(db *gorm.DB, email, companyName, tier string) (*APIClient, error) {
	if !ValidTier(tier) {
		return nil, errors.New("invalid billing tier: " + tier)
	}

	var count int64
	if err := db.Model(&APIClient{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, ErrClientExists
	}

	start, end := currentBillingPeriod(time.Now().UTC())
	client := &APIClient{
		Email:        email,
		CompanyName:  companyName,
		BillingTier:  tier,
		Active:       true,
		MonthlyQuota: MonthlyQuotaFor(tier),
		PeriodStart:  start,
		PeriodEnd:    end,
	}
	if err := db.Create(client).Error; err != nil {
		return nil, err
	}
	return client, nil
}

// FindClientByEmail returns an active client by email.
func FindClientByEmail(db *gorm.DB, email string) (*APIClient, error) {
	var client APIClient
	err := db.Where("email = ? AND active = ?", email, true).First(&client).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrClientNotFound
		}
		return nil, err
	}
	return &client, nil
}

// FindClientByID returns a client by id regardless of active flag; callers
// that care about deactivation check Active themselves.
func FindClientByID(db *gorm.DB, id uint) (*APIClient, error) {
	var client APIClient
	err := db.First(&client, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrClientNotFound
		}
		return nil, err
	}
	return &client, nil
}

// DeactivateClient soft-deactivates a client and every key they own.
// Clients are never hard-deleted.
func DeactivateClient(db *gorm.DB, email string) error {
	return db.Transaction(func(tx *gorm.DB) error {
		var client APIClient
		if err := tx.Where("email = ?", email).First(&client).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrClientNotFound
			}
			return err
		}
		if err := tx.Model(&client).Update("active", false).Error; err != nil {
			return err
		}
		return tx.Model(&APIKey{}).
			Where("client_id = ?", client.ID).
			Update("active", false).Error
	})
}

// SetDashboardPassword stores the bcrypt hash enabling dashboard login for
// a client.
func SetDashboardPassword(db *gorm.DB, clientID uint, passwordHash string) error {
	res := db.Model(&APIClient{}).
		Where("id = ?", clientID).
		Update("dashboard_password_hash", passwordHash)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrClientNotFound
	}
	return nil
}

// currentBillingPeriod returns the bounds of the calendar month containing t.
func currentBillingPeriod(t time.Time) (start, end time.Time) {
	start = time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	end = start.AddDate(0, 1, 0)
	return start, end
}
