package model

import "time"

// Bus represents a vehicle operated by a transport company.
type Bus struct {
	ID           string `gorm:"primaryKey;size:36"`
	CompanyID    string `gorm:"index;size:36"`
	DriverUserID string `gorm:"index;size:36"`
	PlateNumber  string `gorm:"size:32"`
	Capacity     int
	CreatedAt    time.Time
	UpdatedAt    time.Time

	// Associations
	Children []Child `gorm:"foreignKey:BusID"`
}

// Child represents a transported child, linked to the parent account and
// the bus serving the child's route.
type Child struct {
	ID           string `gorm:"primaryKey;size:36"`
	ParentUserID string `gorm:"index;size:36;not null"`
	SchoolID     string `gorm:"index;size:36"`
	BusID        string `gorm:"index;size:36"`
	FullName     string `gorm:"size:256"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
