package model

import "time"

// ZoneOccupancy is the latest observed per-zone occupancy (hot table). One
// row per zone, replaced on every successful poll of the owning branch.
type ZoneOccupancy struct {
	ZoneID          int64     `gorm:"primaryKey"` // Backend ID
	BranchID        int64     `gorm:"index;not null"`
	ZoneName        string    `gorm:"size:256;not null"`
	VehicleType     string    `gorm:"size:64"`
	TotalSpaces     int       `gorm:"not null"`
	AvailableSpaces int       `gorm:"not null"`
	OccupiedSpaces  int       `gorm:"not null"`
	ReservedSpaces  int       `gorm:"not null"`
	OccupancyRate   float64   `gorm:"not null"`
	ObservedAt      time.Time `gorm:"not null"`
}

// SnapshotRecord is the archived branch-wide summary of one poll (cold
// table). Appended on every successful poll, never updated.
type SnapshotRecord struct {
	ID              int64     `gorm:"autoIncrement;primaryKey"`
	BranchID        int64     `gorm:"not null;index:idx_snapshot_branch_observed"`
	ObservedAt      time.Time `gorm:"not null;index:idx_snapshot_branch_observed"`
	TotalSpaces     int       `gorm:"not null"`
	AvailableSpaces int       `gorm:"not null"`
	OccupiedSpaces  int       `gorm:"not null"`
	ReservedSpaces  int       `gorm:"not null"`
	OccupancyRate   float64   `gorm:"not null"`
	ActiveVehicles  int       `gorm:"not null"`
	AlertLevel      string    `gorm:"size:32;not null"`
	AlertMessage    string    `gorm:"size:512"`
}
