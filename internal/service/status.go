package service

import "github.com/noah-isme/kumon-analytics/internal/models"

// IsActive reports whether code places a student on the active roster.
func IsActive(code models.StatusCode) bool {
	switch code {
	case models.StatusCurrent, models.StatusNew, models.StatusNewMulti, models.StatusNewFormer:
		return true
	default:
		return false
	}
}

// Transition maps a submitted monthly status to the value stored on the
// student snapshot. Newly enrolled codes settle into current; everything
// else is stored verbatim.
func Transition(submitted models.StatusCode) models.StatusCode {
	switch submitted {
	case models.StatusNew, models.StatusNewMulti, models.StatusNewTransfer:
		return models.StatusCurrent
	default:
		return submitted
	}
}

// RosterStatusOf derives the two-state roster status of a stored student
// status. Legacy active/inactive values pass through.
func RosterStatusOf(code models.StatusCode) models.RosterStatus {
	switch code {
	case models.StatusActive:
		return models.RosterActive
	case models.StatusInactive:
		return models.RosterInactive
	}
	if IsActive(code) {
		return models.RosterActive
	}
	return models.RosterInactive
}

// IsKnownStatus reports whether code may be submitted on a report.
func IsKnownStatus(code models.StatusCode) bool {
	if code == models.StatusNewTransfer {
		return true
	}
	for _, s := range models.Statuses {
		if s == code {
			return true
		}
	}
	return false
}
