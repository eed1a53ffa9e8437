package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/noah-isme/cohort-assistant/internal/models"
)

// UptimeRepository stores append-only probe observations.
type UptimeRepository interface {
	Create(ctx context.Context, entry *models.UptimeEntry) error
	ListSince(ctx context.Context, targetID string, cutoff time.Time) ([]models.UptimeEntry, error)
}

type uptimeRepository struct {
	db *gorm.DB
}

// NewUptimeRepository instantiates a GORM-backed observation store.
func NewUptimeRepository(db *gorm.DB) UptimeRepository {
	return &uptimeRepository{db: db}
}

func (r *uptimeRepository) Create(ctx context.Context, entry *models.UptimeEntry) error {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	if err := r.db.WithContext(ctx).Create(entry).Error; err != nil {
		return storageErr(err)
	}
	return nil
}

// ListSince returns observations for a target newer than the cutoff, newest first.
func (r *uptimeRepository) ListSince(ctx context.Context, targetID string, cutoff time.Time) ([]models.UptimeEntry, error) {
	var entries []models.UptimeEntry
	err := r.db.WithContext(ctx).
		Where("target_id = ? AND timestamp >= ?", targetID, cutoff).
		Order("timestamp DESC").
		Find(&entries).Error
	if err != nil {
		return nil, storageErr(err)
	}
	return entries, nil
}
