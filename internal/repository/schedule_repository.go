package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/sma-timetable-api/internal/models"
	"github.com/noah-isme/sma-timetable-api/pkg/timegrid"
)

// exclusionViolation is the SQLSTATE raised by the group_schedules_no_overlap constraint.
const exclusionViolation = "23P01"

const scheduleColumns = `id, group_id, weekday, start_minute, end_minute, subject_id, teacher_id, room_id, mode, status, created_at, updated_at`

type scheduleRow struct {
	ID          string    `db:"id"`
	GroupID     string    `db:"group_id"`
	Weekday     int       `db:"weekday"`
	StartMinute int       `db:"start_minute"`
	EndMinute   int       `db:"end_minute"`
	SubjectID   string    `db:"subject_id"`
	TeacherID   *string   `db:"teacher_id"`
	RoomID      *string   `db:"room_id"`
	Mode        string    `db:"mode"`
	Status      string    `db:"status"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

func (r scheduleRow) toEntry() models.ScheduleEntry {
	return models.ScheduleEntry{
		ID:        r.ID,
		GroupID:   r.GroupID,
		Weekday:   models.Weekday(r.Weekday),
		StartTime: timegrid.FormatMinutes(r.StartMinute),
		EndTime:   timegrid.FormatMinutes(r.EndMinute),
		SubjectID: r.SubjectID,
		TeacherID: r.TeacherID,
		RoomID:    r.RoomID,
		Mode:      models.ScheduleMode(r.Mode),
		Status:    models.ScheduleStatus(r.Status),
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

func rowFromEntry(entry *models.ScheduleEntry) (scheduleRow, error) {
	span, err := timegrid.ParseInterval(entry.StartTime, entry.EndTime)
	if err != nil {
		return scheduleRow{}, err
	}
	return scheduleRow{
		ID:          entry.ID,
		GroupID:     entry.GroupID,
		Weekday:     int(entry.Weekday),
		StartMinute: span.Start,
		EndMinute:   span.End,
		SubjectID:   entry.SubjectID,
		TeacherID:   entry.TeacherID,
		RoomID:      entry.RoomID,
		Mode:        string(entry.Mode),
		Status:      string(entry.Status),
		CreatedAt:   entry.CreatedAt,
		UpdatedAt:   entry.UpdatedAt,
	}, nil
}

// ScheduleRepository provides persistence for group schedules.
type ScheduleRepository struct {
	db *sqlx.DB
}

// NewScheduleRepository creates a new schedule repository.
func NewScheduleRepository(db *sqlx.DB) *ScheduleRepository {
	return &ScheduleRepository{db: db}
}

// List returns a group's schedules, optionally restricted to one weekday,
// ordered by day and start time.
func (r *ScheduleRepository) List(ctx context.Context, filter models.ScheduleFilter) ([]models.ScheduleEntry, error) {
	query := `SELECT ` + scheduleColumns + ` FROM group_schedules WHERE group_id = $1`
	args := []interface{}{filter.GroupID}
	if filter.Weekday != nil {
		query += ` AND weekday = $2`
		args = append(args, int(*filter.Weekday))
	}
	query += ` ORDER BY weekday ASC, start_minute ASC`

	var rows []scheduleRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list schedules: %w", err)
	}
	entries := make([]models.ScheduleEntry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, row.toEntry())
	}
	return entries, nil
}

// FindByID loads a schedule inside a group. Missing rows return sql.ErrNoRows.
func (r *ScheduleRepository) FindByID(ctx context.Context, groupID, id string) (*models.ScheduleEntry, error) {
	const query = `SELECT ` + scheduleColumns + ` FROM group_schedules WHERE group_id = $1 AND id = $2`
	var row scheduleRow
	if err := r.db.GetContext(ctx, &row, query, groupID, id); err != nil {
		return nil, err
	}
	entry := row.toEntry()
	return &entry, nil
}

// Create stores a new schedule record.
func (r *ScheduleRepository) Create(ctx context.Context, entry *models.ScheduleEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = now
	}
	entry.UpdatedAt = now

	row, err := rowFromEntry(entry)
	if err != nil {
		return err
	}

	const query = `INSERT INTO group_schedules (id, group_id, weekday, start_minute, end_minute, subject_id, teacher_id, room_id, mode, status, created_at, updated_at) VALUES (:id, :group_id, :weekday, :start_minute, :end_minute, :subject_id, :teacher_id, :room_id, :mode, :status, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, row); err != nil {
		return translateWriteError("create schedule", err)
	}
	return nil
}

// Update modifies a schedule record. Missing rows return sql.ErrNoRows.
func (r *ScheduleRepository) Update(ctx context.Context, entry *models.ScheduleEntry) error {
	entry.UpdatedAt = time.Now().UTC()
	row, err := rowFromEntry(entry)
	if err != nil {
		return err
	}

	const query = `UPDATE group_schedules SET weekday = :weekday, start_minute = :start_minute, end_minute = :end_minute, subject_id = :subject_id, teacher_id = :teacher_id, room_id = :room_id, mode = :mode, status = :status, updated_at = :updated_at WHERE id = :id AND group_id = :group_id`
	res, err := r.db.NamedExecContext(ctx, query, row)
	if err != nil {
		return translateWriteError("update schedule", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes a schedule by id. Missing rows return sql.ErrNoRows.
func (r *ScheduleRepository) Delete(ctx context.Context, groupID, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM group_schedules WHERE group_id = $1 AND id = $2`, groupID, id)
	if err != nil {
		return fmt.Errorf("delete schedule: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// translateWriteError maps the exclusion constraint onto models.ErrScheduleOverlap
// so concurrent writers that both passed the local check still fail cleanly.
func translateWriteError(op string, err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && string(pqErr.Code) == exclusionViolation {
		return fmt.Errorf("%s: %w", op, models.ErrScheduleOverlap)
	}
	return fmt.Errorf("%s: %w", op, err)
}
