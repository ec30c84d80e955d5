package store

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"bustrack-backend/internal/auth"
	"bustrack-backend/internal/model"
)

// Store defines the database operations consumed by the gateway.
type Store interface {
	// AppendLocation writes one sampled position to the store of record.
	AppendLocation(ctx context.Context, rec model.BusLocation) error
	// RecentLocations returns the newest persisted samples for a bus,
	// most recent first.
	RecentLocations(ctx context.Context, busID string, limit int) ([]model.BusLocation, error)
	// BusIDsForUser resolves the buses an identity should auto-subscribe to:
	// for drivers, buses they operate; for parents, buses serving their children.
	BusIDsForUser(ctx context.Context, userID, role string) ([]string, error)
	DB() *gorm.DB
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) DB() *gorm.DB {
	return s.db
}

func (s *gormStore) AppendLocation(ctx context.Context, rec model.BusLocation) error {
	if rec.RecordedAt.IsZero() {
		rec.RecordedAt = time.Now().UTC()
	}
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return fmt.Errorf("failed to append location for bus %s: %w", rec.BusID, err)
	}
	return nil
}

func (s *gormStore) RecentLocations(ctx context.Context, busID string, limit int) ([]model.BusLocation, error) {
	if limit <= 0 {
		limit = 10
	}
	var locations []model.BusLocation
	err := s.db.WithContext(ctx).
		Where("bus_id = ?", busID).
		Order("recorded_at DESC").
		Limit(limit).
		Find(&locations).Error
	if err != nil {
		return nil, fmt.Errorf("failed to fetch recent locations for bus %s: %w", busID, err)
	}
	return locations, nil
}

func (s *gormStore) BusIDsForUser(ctx context.Context, userID, role string) ([]string, error) {
	var ids []string
	switch role {
	case auth.RoleDriver:
		err := s.db.WithContext(ctx).
			Model(&model.Bus{}).
			Where("driver_user_id = ?", userID).
			Pluck("id", &ids).Error
		if err != nil {
			return nil, fmt.Errorf("failed to fetch buses for driver %s: %w", userID, err)
		}
	case auth.RoleParent:
		err := s.db.WithContext(ctx).
			Model(&model.Child{}).
			Distinct("bus_id").
			Where("parent_user_id = ? AND bus_id <> ''", userID).
			Pluck("bus_id", &ids).Error
		if err != nil {
			return nil, fmt.Errorf("failed to fetch buses for parent %s: %w", userID, err)
		}
	}
	return ids, nil
}
