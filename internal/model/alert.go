package model

import "fmt"

// AlertLevel is the severity of a branch occupancy alert as computed by the
// backend. The four levels are closed; Severity and Label switch over all of
// them so a new level is a compile-visible change.
type AlertLevel string

const (
	AlertNormal   AlertLevel = "normal"
	AlertInfo     AlertLevel = "info"
	AlertWarning  AlertLevel = "warning"
	AlertCritical AlertLevel = "critical"
)

// Known reports whether the level is one of the four recognized values.
func (l AlertLevel) Known() bool {
	switch l {
	case AlertNormal, AlertInfo, AlertWarning, AlertCritical:
		return true
	}
	return false
}

// Severity orders levels for comparison; higher is more urgent.
func (l AlertLevel) Severity() int {
	switch l {
	case AlertNormal:
		return 0
	case AlertInfo:
		return 1
	case AlertWarning:
		return 2
	case AlertCritical:
		return 3
	}
	return -1
}

// Label returns the display name for the level.
func (l AlertLevel) Label() string {
	switch l {
	case AlertNormal:
		return "Normal"
	case AlertInfo:
		return "Info"
	case AlertWarning:
		return "Warning"
	case AlertCritical:
		return "Critical"
	}
	return fmt.Sprintf("Unknown(%s)", string(l))
}

// ParkingAlert is the alert block of a status snapshot. ShouldNotify gates
// whether consumers surface a passive indicator at all, independent of Level.
type ParkingAlert struct {
	Level        AlertLevel `json:"level"`
	Message      string     `json:"message"`
	ShouldNotify bool       `json:"shouldNotify"`
}
