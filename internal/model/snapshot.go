package model

import "time"

// ParkingStatusSnapshot is the immutable occupancy read-model returned by
// the backend for one branch at one instant. Snapshots are replaced
// wholesale on every poll and never partially mutated.
type ParkingStatusSnapshot struct {
	BranchID    int64          `json:"branchId"`
	Timestamp   time.Time      `json:"timestamp"`
	Summary     ParkingSummary `json:"summary"`
	Alert       ParkingAlert   `json:"alert"`
	ZoneDetails []ZoneDetail   `json:"zoneDetails"`
}

// ParkingSummary aggregates the branch-wide space counts. The backend owns
// the arithmetic; the client displays it without re-deriving.
type ParkingSummary struct {
	TotalSpaces     int     `json:"totalSpaces"`
	AvailableSpaces int     `json:"availableSpaces"`
	OccupiedSpaces  int     `json:"occupiedSpaces"`
	ReservedSpaces  int     `json:"reservedSpaces"`
	OccupancyRate   float64 `json:"occupancyRate"`
	ActiveVehicles  int     `json:"activeVehicles"`
}

// ZoneDetail is a per-zone occupancy record within a snapshot. OccupancyRate
// arrives pre-formatted (e.g. "85.0%"); parse.Rate recovers the number.
type ZoneDetail struct {
	ZoneID          int64  `json:"zoneId"`
	ZoneName        string `json:"zoneName"`
	VehicleType     string `json:"vehicleType"`
	TotalSpaces     int    `json:"totalSpaces"`
	AvailableSpaces int    `json:"availableSpaces"`
	OccupiedSpaces  int    `json:"occupiedSpaces"`
	ReservedSpaces  int    `json:"reservedSpaces"`
	OccupancyRate   string `json:"occupancyRate"`
}
