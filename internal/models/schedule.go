package models

import (
	"errors"
	"time"
)

// ErrScheduleOverlap is reported by storage when a write would break the
// per-group, per-weekday non-overlap invariant.
var ErrScheduleOverlap = errors.New("schedule overlaps an existing entry")

// ScheduleMode describes how a class meets.
type ScheduleMode string

const (
	ScheduleModeInPerson ScheduleMode = "IN_PERSON"
	ScheduleModeRemote   ScheduleMode = "REMOTE"
	ScheduleModeHybrid   ScheduleMode = "HYBRID"
)

// ScheduleStatus captures whether an entry is currently in effect.
type ScheduleStatus string

const (
	ScheduleStatusActive   ScheduleStatus = "ACTIVE"
	ScheduleStatusInactive ScheduleStatus = "INACTIVE"
)

// ScheduleEntry is a weekly recurring class meeting owned by a group.
type ScheduleEntry struct {
	ID        string         `json:"id"`
	GroupID   string         `json:"groupId"`
	Weekday   Weekday        `json:"weekday"`
	StartTime string         `json:"startTime"`
	EndTime   string         `json:"endTime"`
	SubjectID string         `json:"subjectId"`
	TeacherID *string        `json:"teacherId,omitempty"`
	RoomID    *string        `json:"roomId,omitempty"`
	Mode      ScheduleMode   `json:"mode"`
	Status    ScheduleStatus `json:"status"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

// ScheduleFilter narrows schedule listings to a group and optional weekday.
type ScheduleFilter struct {
	GroupID string
	Weekday *Weekday
}

// ScheduleConflict describes the existing entry a candidate collided with.
type ScheduleConflict struct {
	ScheduleID string  `json:"scheduleId"`
	GroupID    string  `json:"groupId"`
	Weekday    Weekday `json:"weekday"`
	StartTime  string  `json:"startTime"`
	EndTime    string  `json:"endTime"`
	SubjectID  string  `json:"subjectId"`
}

// NewScheduleConflict snapshots the colliding entry.
func NewScheduleConflict(existing ScheduleEntry) ScheduleConflict {
	return ScheduleConflict{
		ScheduleID: existing.ID,
		GroupID:    existing.GroupID,
		Weekday:    existing.Weekday,
		StartTime:  existing.StartTime,
		EndTime:    existing.EndTime,
		SubjectID:  existing.SubjectID,
	}
}

// ScheduleConflictError is returned when a schedule collides with an existing one.
type ScheduleConflictError struct {
	Message  string           `json:"message"`
	Conflict ScheduleConflict `json:"conflict"`
}

// Error implements the error interface for conflict errors.
func (e *ScheduleConflictError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return e.Message
}
