package db

import (
	"time"

	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// RunRetentionOnce performs a single retention pass: usage records older
// than the retention window, rate-counter windows more than an hour old,
// and expired dashboard sessions. Returns the number of usage rows removed.
func RunRetentionOnce(db *gorm.DB, retentionDays int) (int64, error) {
	now := time.Now()
	cutoff := now.Add(-time.Duration(retentionDays) * 24 * time.Hour)

	res := db.Where("created_at < ?", cutoff).Delete(&UsageRecord{})
	if res.Error != nil {
		return 0, res.Error
	}

	if err := db.Where("window_start < ?", now.Add(-time.Hour)).
		Delete(&RateCounter{}).Error; err != nil {
		return res.RowsAffected, err
	}
	if err := db.Where("expires_at < ?", now).
		Delete(&DashboardSession{}).Error; err != nil {
		return res.RowsAffected, err
	}
	return res.RowsAffected, nil
}

// StartRetentionWorker launches a background goroutine that runs the
// retention cleanup once at startup and then once per day.
func StartRetentionWorker(db *gorm.DB, retentionDays int) {
	go func() {
		if _, err := RunRetentionOnce(db, retentionDays); err != nil {
			log.WithError(err).Error("retention cleanup failed (startup)")
		}

		ticker := time.NewTicker(24 * time.Hour)
		defer ticker.Stop()

		for range ticker.C {
			if _, err := RunRetentionOnce(db, retentionDays); err != nil {
				log.WithError(err).Error("retention cleanup failed")
			}
		}
	}()
}
