package db

import (
	"errors"
	"time"

	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// runRollupOnce aggregates usage records for one UTC calendar day into
// UsageRollup rows, one per client. Call with day truncated to midnight UTC.
func runRollupOnce(db *gorm.DB, day time.Time) error {
	dayEnd := day.Add(24 * time.Hour)

	var records []UsageRecord
	if err := db.Where("created_at >= ? AND created_at < ?", day, dayEnd).
		Select("client_id", "success", "response_time_ms").
		Find(&records).Error; err != nil {
		return err
	}

	groups := make(map[uint]*usageBucket)
	for _, r := range records {
		b := groups[r.ClientID]
		if b == nil {
			b = &usageBucket{}
			groups[r.ClientID] = b
		}
		b.requests++
		b.totalMs += r.ResponseTimeMs
		if r.Success {
			b.successful++
		}
	}

	for clientID, b := range groups {
		row := UsageRollup{
			ClientID:        clientID,
			Day:             day,
			Requests:        b.requests,
			Successful:      b.successful,
			Failed:          b.requests - b.successful,
			TotalResponseMs: b.totalMs,
		}
		var existing UsageRollup
		err := db.Where("client_id = ? AND day = ?", clientID, day).First(&existing).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			err = db.Create(&row).Error
		} else if err == nil {
			err = db.Model(&existing).Updates(map[string]interface{}{
				"requests":          row.Requests,
				"successful":        row.Successful,
				"failed":            row.Failed,
				"total_response_ms": row.TotalResponseMs,
			}).Error
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// StartRollupWorker recomputes the current and previous day's rollups at
// startup and then hourly. Days are UTC.
func StartRollupWorker(db *gorm.DB) {
	run := func(now time.Time) {
		today := now.UTC().Truncate(24 * time.Hour)
		for _, day := range []time.Time{today.Add(-24 * time.Hour), today} {
			if err := runRollupOnce(db, day); err != nil {
				log.WithError(err).WithField("day", day.Format("2006-01-02")).Error("usage rollup failed")
			}
		}
	}

	go func() {
		run(time.Now())

		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for t := range ticker.C {
			run(t)
		}
	}()
}

// DailyTrend returns a client's rollups for the trailing N days, oldest
// first, for the dashboard chart.
func DailyTrend(db *gorm.DB, clientID uint, days int) ([]UsageRollup, error) {
	cutoff := time.Now().UTC().Truncate(24 * time.Hour).Add(-time.Duration(days) * 24 * time.Hour)
	var rollups []UsageRollup
	err := db.Where("client_id = ? AND day >= ?", clientID, cutoff).
		Order("day ASC").
		Find(&rollups).Error
	return rollups, err
}
