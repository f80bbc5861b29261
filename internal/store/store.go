package store

import (
	"context"
	"fmt"
	"log"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"parking-status-monitor/internal/model"
	"parking-status-monitor/internal/parse"
)

// Store is the archive for polled observations. The live snapshot stays in
// memory with the synchronizer; this layer keeps the hot per-zone view and
// the append-only summary history.
type Store interface {
	RecordSnapshot(ctx context.Context, snap *model.ParkingStatusSnapshot) error
	CurrentZones(ctx context.Context, branchID int64) ([]model.ZoneOccupancy, error)
	History(ctx context.Context, branchID int64, from, to time.Time, limit int) ([]model.SnapshotRecord, error)
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

// DB exposes the underlying handle for layers that run their own queries
// (router, notification workers).
func (s *gormStore) DB() *gorm.DB {
	return s.db
}

// RecordSnapshot archives one successful poll transactionally: the branch
// row is upserted, the hot zone table is replaced with the snapshot's zones,
// and a summary history row is appended.
func (s *gormStore) RecordSnapshot(ctx context.Context, snap *model.ParkingStatusSnapshot) error {
	observedAt := snap.Timestamp
	if observedAt.IsZero() {
		observedAt = time.Now().UTC()
	}

	zones := make([]model.ZoneOccupancy, 0, len(snap.ZoneDetails))
	zoneIDs := make([]int64, 0, len(snap.ZoneDetails))
	for _, z := range snap.ZoneDetails {
		rate, err := parse.Rate(z.OccupancyRate)
		if err != nil {
			// The backend formats the rate; fall back to deriving it so a
			// formatting quirk does not drop the zone.
			log.Printf("Warning: could not parse occupancy rate for zone %d: %v", z.ZoneID, err)
			if z.TotalSpaces > 0 {
				rate = float64(z.OccupiedSpaces+z.ReservedSpaces) / float64(z.TotalSpaces) * 100
			}
		}
		zones = append(zones, model.ZoneOccupancy{
			ZoneID:          z.ZoneID,
			BranchID:        snap.BranchID,
			ZoneName:        z.ZoneName,
			VehicleType:     z.VehicleType,
			TotalSpaces:     z.TotalSpaces,
			AvailableSpaces: z.AvailableSpaces,
			OccupiedSpaces:  z.OccupiedSpaces,
			ReservedSpaces:  z.ReservedSpaces,
			OccupancyRate:   rate,
			ObservedAt:      observedAt,
		})
		zoneIDs = append(zoneIDs, z.ZoneID)
	}

	record := model.SnapshotRecord{
		BranchID:        snap.BranchID,
		ObservedAt:      observedAt,
		TotalSpaces:     snap.Summary.TotalSpaces,
		AvailableSpaces: snap.Summary.AvailableSpaces,
		OccupiedSpaces:  snap.Summary.OccupiedSpaces,
		ReservedSpaces:  snap.Summary.ReservedSpaces,
		OccupancyRate:   snap.Summary.OccupancyRate,
		ActiveVehicles:  snap.Summary.ActiveVehicles,
		AlertLevel:      string(snap.Alert.Level),
		AlertMessage:    snap.Alert.Message,
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		branch := model.Branch{ID: snap.BranchID}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoNothing: true,
		}).Create(&branch).Error; err != nil {
			return fmt.Errorf("failed to upsert branch %d: %w", snap.BranchID, err)
		}

		if len(zones) > 0 {
			if err := tx.Clauses(clause.OnConflict{
				Columns: []clause.Column{{Name: "zone_id"}},
				DoUpdates: clause.AssignmentColumns([]string{
					"branch_id", "zone_name", "vehicle_type", "total_spaces",
					"available_spaces", "occupied_spaces", "reserved_spaces",
					"occupancy_rate", "observed_at",
				}),
			}).Create(&zones).Error; err != nil {
				return fmt.Errorf("failed to upsert zone occupancy: %w", err)
			}
		}

		// Zones the backend stopped reporting are gone from the branch.
		stale := tx.Where("branch_id = ?", snap.BranchID)
		if len(zoneIDs) > 0 {
			stale = stale.Where("zone_id NOT IN ?", zoneIDs)
		}
		if err := stale.Delete(&model.ZoneOccupancy{}).Error; err != nil {
			return fmt.Errorf("failed to prune stale zone occupancy: %w", err)
		}

		if err := tx.Create(&record).Error; err != nil {
			return fmt.Errorf("failed to append snapshot record: %w", err)
		}
		return nil
	})
}

// CurrentZones returns the latest per-zone occupancy for a branch, ordered
// by zone id for a stable display.
func (s *gormStore) CurrentZones(ctx context.Context, branchID int64) ([]model.ZoneOccupancy, error) {
	var zones []model.ZoneOccupancy
	err := s.db.WithContext(ctx).
		Where("branch_id = ?", branchID).
		Order("zone_id").
		Find(&zones).Error
	if err != nil {
		return nil, fmt.Errorf("failed to fetch zone occupancy: %w", err)
	}
	return zones, nil
}

// History returns archived summary records for a branch, newest first. Zero
// from/to bounds are open; limit <= 0 means no limit.
func (s *gormStore) History(ctx context.Context, branchID int64, from, to time.Time, limit int) ([]model.SnapshotRecord, error) {
	q := s.db.WithContext(ctx).Where("branch_id = ?", branchID)
	if !from.IsZero() {
		q = q.Where("observed_at >= ?", from)
	}
	if !to.IsZero() {
		q = q.Where("observed_at <= ?", to)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}

	var records []model.SnapshotRecord
	if err := q.Order("observed_at DESC").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch snapshot history: %w", err)
	}
	return records, nil
}
