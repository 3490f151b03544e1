package timegrid

import (
	"fmt"

	"github.com/noah-isme/sma-timetable-api/internal/models"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
)

// FindConflict returns the first entry in the candidate's scope that overlaps it.
//
// Scope is the candidate's weekday plus its group when set; the entry whose id
// equals excludeID is ignored so an edited entry never collides with itself.
// Only the given collection is inspected: entries owned by other groups that
// share a teacher or room are not considered. Existing entries whose stored
// times cannot be parsed are skipped.
func FindConflict(candidate models.ScheduleEntry, existing []models.ScheduleEntry, excludeID string) (*models.ScheduleEntry, error) {
	span, err := ParseInterval(candidate.StartTime, candidate.EndTime)
	if err != nil {
		return nil, err
	}
	for _, entry := range existing {
		if !inScope(candidate, entry, excludeID) {
			continue
		}
		other, err := ParseInterval(entry.StartTime, entry.EndTime)
		if err != nil {
			continue
		}
		if span.Overlaps(other) {
			found := entry
			return &found, nil
		}
	}
	return nil, nil
}

// Conflicts reports whether the candidate overlaps any entry in scope.
func Conflicts(candidate models.ScheduleEntry, existing []models.ScheduleEntry, excludeID string) (bool, error) {
	found, err := FindConflict(candidate, existing, excludeID)
	if err != nil {
		return false, err
	}
	return found != nil, nil
}

func inScope(candidate, entry models.ScheduleEntry, excludeID string) bool {
	if entry.Weekday != candidate.Weekday {
		return false
	}
	if candidate.GroupID != "" && entry.GroupID != candidate.GroupID {
		return false
	}
	if excludeID != "" && entry.ID == excludeID {
		return false
	}
	return true
}

// OverlapError builds the OVERLAP_CONFLICT error for a rejected candidate.
// The conflict travels both as the wrapped *models.ScheduleConflictError and
// as the error details.
func OverlapError(conflict models.ScheduleConflict) error {
	message := "schedule overlaps an existing entry"
	if conflict.ScheduleID != "" {
		message = fmt.Sprintf("schedule overlaps %s %s-%s", conflict.Weekday, conflict.StartTime, conflict.EndTime)
	}
	domainErr := &models.ScheduleConflictError{Message: message, Conflict: conflict}
	appErr := appErrors.Wrap(domainErr, appErrors.ErrOverlapConflict.Code, appErrors.ErrOverlapConflict.Status, message)
	appErr.Details = conflict
	return appErr
}
