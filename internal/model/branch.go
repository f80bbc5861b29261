package model

import "time"

// Branch represents a physical parking-lot location tracked by the monitor.
type Branch struct {
	ID        int64     `gorm:"primaryKey"` // Backend ID
	Name      string    `gorm:"size:128;not null"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}
