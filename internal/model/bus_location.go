package model

import "time"

// BusLocation is one persisted position sample for a bus. Only a sampled
// subset of inbound reports lands here; the fast cache holds the freshest fix.
type BusLocation struct {
	ID         int64     `gorm:"autoIncrement;primaryKey"`
	BusID      string    `gorm:"index:idx_bus_locations_bus_recorded;size:36;not null"`
	Latitude   float64   `gorm:"not null"`
	Longitude  float64   `gorm:"not null"`
	Speed      float64   `gorm:"not null"`
	RecordedAt time.Time `gorm:"index:idx_bus_locations_bus_recorded;not null"`
	CreatedAt  time.Time
}
