package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-api/internal/models"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
	"github.com/noah-isme/sma-timetable-api/pkg/jobs"
	"github.com/noah-isme/sma-timetable-api/pkg/timegrid"
)

// JobTypeGridRefresh recomposes and caches a group's weekly grid.
const JobTypeGridRefresh = "grid.refresh"

type scheduleRepository interface {
	List(ctx context.Context, filter models.ScheduleFilter) ([]models.ScheduleEntry, error)
	FindByID(ctx context.Context, groupID, id string) (*models.ScheduleEntry, error)
	Create(ctx context.Context, entry *models.ScheduleEntry) error
	Update(ctx context.Context, entry *models.ScheduleEntry) error
	Delete(ctx context.Context, groupID, id string) error
}

type gridInvalidator interface {
	Invalidate(ctx context.Context, groupID string)
}

type jobDispatcher interface {
	Enqueue(job jobs.Job) error
}

// ScheduleRequest is the payload for creating or replacing a schedule entry.
type ScheduleRequest struct {
	Weekday   *models.Weekday       `json:"weekday" validate:"required,min=0,max=6"`
	StartTime string                `json:"startTime" validate:"required"`
	EndTime   string                `json:"endTime" validate:"required"`
	SubjectID string                `json:"subjectId" validate:"required"`
	TeacherID *string               `json:"teacherId,omitempty"`
	RoomID    *string               `json:"roomId,omitempty"`
	Mode      models.ScheduleMode   `json:"mode" validate:"omitempty,oneof=IN_PERSON REMOTE HYBRID"`
	Status    models.ScheduleStatus `json:"status" validate:"omitempty,oneof=ACTIVE INACTIVE"`
}

// ValidationResult is the outcome of a dry-run validation.
type ValidationResult struct {
	Valid    bool                     `json:"valid"`
	Conflict *models.ScheduleConflict `json:"conflict,omitempty"`
}

// ScheduleService coordinates conflict-free writes to a group's weekly schedule.
type ScheduleService struct {
	repo      scheduleRepository
	grids     gridInvalidator
	queue     jobDispatcher
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewScheduleService instantiates ScheduleService. grids and queue may be nil.
func NewScheduleService(repo scheduleRepository, grids gridInvalidator, queue jobDispatcher, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *ScheduleService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScheduleService{repo: repo, grids: grids, queue: queue, metrics: metrics, validator: validate, logger: logger}
}

// List returns the group's entries, optionally restricted to one weekday.
func (s *ScheduleService) List(ctx context.Context, groupID string, day *models.Weekday) ([]models.ScheduleEntry, error) {
	if day != nil && !day.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "weekday must be between 0 and 6")
	}
	start := time.Now()
	entries, err := s.repo.List(ctx, models.ScheduleFilter{GroupID: groupID, Weekday: day})
	s.metrics.ObserveDBQuery("schedules_list", time.Since(start))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list schedules")
	}
	return entries, nil
}

// Get returns a single entry.
func (s *ScheduleService) Get(ctx context.Context, groupID, id string) (*models.ScheduleEntry, error) {
	entry, err := s.repo.FindByID(ctx, groupID, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "schedule not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load schedule")
	}
	return entry, nil
}

// Validate runs the local checks without writing. Format problems are returned
// as errors; an overlap is reported through the result.
func (s *ScheduleService) Validate(ctx context.Context, groupID string, req ScheduleRequest, excludeID string) (*ValidationResult, error) {
	candidate, err := s.candidate(groupID, req)
	if err != nil {
		return nil, err
	}
	conflict, err := s.findConflict(ctx, candidate, excludeID)
	if err != nil {
		return nil, err
	}
	if conflict != nil {
		c := models.NewScheduleConflict(*conflict)
		return &ValidationResult{Valid: false, Conflict: &c}, nil
	}
	return &ValidationResult{Valid: true}, nil
}

// Create inserts a new entry after the overlap check.
func (s *ScheduleService) Create(ctx context.Context, groupID string, req ScheduleRequest) (*models.ScheduleEntry, error) {
	entry, err := s.create(ctx, groupID, req)
	s.metrics.RecordWrite("create", err)
	return entry, err
}

func (s *ScheduleService) create(ctx context.Context, groupID string, req ScheduleRequest) (*models.ScheduleEntry, error) {
	candidate, err := s.candidate(groupID, req)
	if err != nil {
		return nil, err
	}
	if err := s.ensureNoConflict(ctx, candidate, ""); err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, &candidate); err != nil {
		return nil, s.writeError(candidate, err, "failed to create schedule")
	}
	s.afterWrite(ctx, groupID)
	return &candidate, nil
}

// Update replaces an entry; the entry itself is excluded from the overlap check.
func (s *ScheduleService) Update(ctx context.Context, groupID, id string, req ScheduleRequest) (*models.ScheduleEntry, error) {
	entry, err := s.update(ctx, groupID, id, req)
	s.metrics.RecordWrite("update", err)
	return entry, err
}

func (s *ScheduleService) update(ctx context.Context, groupID, id string, req ScheduleRequest) (*models.ScheduleEntry, error) {
	existing, err := s.Get(ctx, groupID, id)
	if err != nil {
		return nil, err
	}

	candidate, err := s.candidate(groupID, req)
	if err != nil {
		return nil, err
	}
	candidate.ID = existing.ID
	candidate.CreatedAt = existing.CreatedAt

	if err := s.ensureNoConflict(ctx, candidate, existing.ID); err != nil {
		return nil, err
	}

	if err := s.repo.Update(ctx, &candidate); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "schedule not found")
		}
		return nil, s.writeError(candidate, err, "failed to update schedule")
	}
	s.afterWrite(ctx, groupID)
	return &candidate, nil
}

// Delete removes an entry.
func (s *ScheduleService) Delete(ctx context.Context, groupID, id string) error {
	err := s.repo.Delete(ctx, groupID, id)
	s.metrics.RecordWrite("delete", err)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "schedule not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete schedule")
	}
	s.afterWrite(ctx, groupID)
	return nil
}

func (s *ScheduleService) candidate(groupID string, req ScheduleRequest) (models.ScheduleEntry, error) {
	if err := s.validator.Struct(req); err != nil {
		return models.ScheduleEntry{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid schedule payload")
	}
	if _, err := timegrid.ParseInterval(req.StartTime, req.EndTime); err != nil {
		return models.ScheduleEntry{}, err
	}

	mode := req.Mode
	if mode == "" {
		mode = models.ScheduleModeInPerson
	}
	status := req.Status
	if status == "" {
		status = models.ScheduleStatusActive
	}
	return models.ScheduleEntry{
		GroupID:   groupID,
		Weekday:   *req.Weekday,
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
		SubjectID: req.SubjectID,
		TeacherID: req.TeacherID,
		RoomID:    req.RoomID,
		Mode:      mode,
		Status:    status,
	}, nil
}

func (s *ScheduleService) findConflict(ctx context.Context, candidate models.ScheduleEntry, excludeID string) (*models.ScheduleEntry, error) {
	day := candidate.Weekday
	start := time.Now()
	existing, err := s.repo.List(ctx, models.ScheduleFilter{GroupID: candidate.GroupID, Weekday: &day})
	s.metrics.ObserveDBQuery("schedules_conflict_scan", time.Since(start))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check schedule conflicts")
	}
	return timegrid.FindConflict(candidate, existing, excludeID)
}

func (s *ScheduleService) ensureNoConflict(ctx context.Context, candidate models.ScheduleEntry, excludeID string) error {
	conflict, err := s.findConflict(ctx, candidate, excludeID)
	if err != nil {
		return err
	}
	if conflict == nil {
		return nil
	}
	s.metrics.RecordConflict(ConflictSourceDetector)
	s.logger.Info("schedule overlap rejected",
		zap.String("group_id", candidate.GroupID),
		zap.Stringer("weekday", candidate.Weekday),
		zap.String("start", candidate.StartTime),
		zap.String("end", candidate.EndTime),
		zap.String("conflict_id", conflict.ID),
	)
	return timegrid.OverlapError(models.NewScheduleConflict(*conflict))
}

// writeError maps a storage failure; exclusion violations become overlap conflicts.
func (s *ScheduleService) writeError(candidate models.ScheduleEntry, err error, message string) error {
	if errors.Is(err, models.ErrScheduleOverlap) {
		s.metrics.RecordConflict(ConflictSourceStorage)
		s.logger.Info("schedule overlap rejected by storage",
			zap.String("group_id", candidate.GroupID),
			zap.Stringer("weekday", candidate.Weekday),
			zap.String("start", candidate.StartTime),
			zap.String("end", candidate.EndTime),
		)
		conflict := models.ScheduleConflict{
			GroupID:   candidate.GroupID,
			Weekday:   candidate.Weekday,
			StartTime: candidate.StartTime,
			EndTime:   candidate.EndTime,
		}
		return timegrid.OverlapError(conflict)
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
}

func (s *ScheduleService) afterWrite(ctx context.Context, groupID string) {
	if s.grids != nil {
		s.grids.Invalidate(ctx, groupID)
	}
	if s.queue == nil {
		return
	}
	job := jobs.Job{ID: uuid.NewString(), Type: JobTypeGridRefresh, Key: "grid:" + groupID, Payload: groupID}
	if err := s.queue.Enqueue(job); err != nil {
		s.logger.Sugar().Warnw("failed to enqueue grid refresh", "group_id", groupID, "error", err)
	}
}
