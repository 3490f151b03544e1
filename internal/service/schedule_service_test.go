package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-api/internal/models"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
	"github.com/noah-isme/sma-timetable-api/pkg/jobs"
)

type scheduleRepoStub struct {
	entries   map[string]models.ScheduleEntry
	seq       int
	listErr   error
	createErr error
	listCalls int
	onList    func()
}

func newScheduleRepoStub(entries ...models.ScheduleEntry) *scheduleRepoStub {
	stub := &scheduleRepoStub{entries: map[string]models.ScheduleEntry{}}
	for _, e := range entries {
		stub.entries[e.ID] = e
	}
	return stub
}

func (s *scheduleRepoStub) List(ctx context.Context, filter models.ScheduleFilter) ([]models.ScheduleEntry, error) {
	s.listCalls++
	if s.onList != nil {
		s.onList()
	}
	if s.listErr != nil {
		return nil, s.listErr
	}
	var out []models.ScheduleEntry
	for _, e := range s.entries {
		if e.GroupID != filter.GroupID {
			continue
		}
		if filter.Weekday != nil && e.Weekday != *filter.Weekday {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *scheduleRepoStub) FindByID(ctx context.Context, groupID, id string) (*models.ScheduleEntry, error) {
	e, ok := s.entries[id]
	if !ok || e.GroupID != groupID {
		return nil, sql.ErrNoRows
	}
	return &e, nil
}

func (s *scheduleRepoStub) Create(ctx context.Context, entry *models.ScheduleEntry) error {
	if s.createErr != nil {
		return s.createErr
	}
	s.seq++
	entry.ID = fmt.Sprintf("new-%d", s.seq)
	s.entries[entry.ID] = *entry
	return nil
}

func (s *scheduleRepoStub) Update(ctx context.Context, entry *models.ScheduleEntry) error {
	if _, ok := s.entries[entry.ID]; !ok {
		return sql.ErrNoRows
	}
	s.entries[entry.ID] = *entry
	return nil
}

func (s *scheduleRepoStub) Delete(ctx context.Context, groupID, id string) error {
	e, ok := s.entries[id]
	if !ok || e.GroupID != groupID {
		return sql.ErrNoRows
	}
	delete(s.entries, id)
	return nil
}

type invalidatorStub struct{ groups []string }

func (s *invalidatorStub) Invalidate(ctx context.Context, groupID string) {
	s.groups = append(s.groups, groupID)
}

type dispatcherStub struct{ jobs []jobs.Job }

func (s *dispatcherStub) Enqueue(job jobs.Job) error {
	s.jobs = append(s.jobs, job)
	return nil
}

func stored(id string, day models.Weekday, start, end string) models.ScheduleEntry {
	return models.ScheduleEntry{ID: id, GroupID: "group-1", Weekday: day, StartTime: start, EndTime: end, SubjectID: "subject-" + id}
}

func request(day models.Weekday, start, end string) ScheduleRequest {
	return ScheduleRequest{Weekday: &day, StartTime: start, EndTime: end, SubjectID: "math"}
}

func newScheduleServiceForTest(repo *scheduleRepoStub) (*ScheduleService, *invalidatorStub, *dispatcherStub) {
	inv := &invalidatorStub{}
	queue := &dispatcherStub{}
	return NewScheduleService(repo, inv, queue, NewMetricsService(), nil, zap.NewNop()), inv, queue
}

func TestScheduleServiceCreateTouchingBoundary(t *testing.T) {
	repo := newScheduleRepoStub(stored("a", models.Monday, "09:00", "10:00"))
	svc, inv, queue := newScheduleServiceForTest(repo)

	entry, err := svc.Create(context.Background(), "group-1", request(models.Monday, "10:00", "11:00"))
	require.NoError(t, err)
	assert.Equal(t, "group-1", entry.GroupID)
	assert.Equal(t, models.ScheduleModeInPerson, entry.Mode)
	assert.Equal(t, models.ScheduleStatusActive, entry.Status)
	assert.Equal(t, []string{"group-1"}, inv.groups)
	require.Len(t, queue.jobs, 1)
	assert.Equal(t, JobTypeGridRefresh, queue.jobs[0].Type)
	assert.Equal(t, "group-1", queue.jobs[0].Payload)
}

func TestScheduleServiceCreateOverlapConflict(t *testing.T) {
	repo := newScheduleRepoStub(stored("a", models.Monday, "09:00", "10:00"))
	svc, inv, _ := newScheduleServiceForTest(repo)

	_, err := svc.Create(context.Background(), "group-1", request(models.Monday, "09:30", "10:30"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrOverlapConflict))

	var conflictErr *models.ScheduleConflictError
	require.True(t, errors.As(err, &conflictErr))
	assert.Equal(t, "a", conflictErr.Conflict.ScheduleID)
	assert.Equal(t, "a", appErrors.FromError(err).Details.(models.ScheduleConflict).ScheduleID)
	assert.Len(t, repo.entries, 1)
	assert.Empty(t, inv.groups)
}

func TestScheduleServiceCreateOtherWeekdayAllowed(t *testing.T) {
	repo := newScheduleRepoStub(stored("a", models.Monday, "09:00", "10:00"))
	svc, _, _ := newScheduleServiceForTest(repo)

	_, err := svc.Create(context.Background(), "group-1", request(models.Tuesday, "09:00", "10:00"))
	assert.NoError(t, err)
}

func TestScheduleServiceCreateFormatErrors(t *testing.T) {
	repo := newScheduleRepoStub()
	svc, _, _ := newScheduleServiceForTest(repo)

	_, err := svc.Create(context.Background(), "group-1", request(models.Monday, "9:00", "10:00"))
	assert.True(t, errors.Is(err, appErrors.ErrInvalidTimeFormat))

	_, err = svc.Create(context.Background(), "group-1", request(models.Monday, "10:00", "10:00"))
	assert.True(t, errors.Is(err, appErrors.ErrEndBeforeStart))

	noSubject := request(models.Monday, "08:00", "09:00")
	noSubject.SubjectID = ""
	_, err = svc.Create(context.Background(), "group-1", noSubject)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	_, err = svc.Create(context.Background(), "group-1", request(9, "08:00", "09:00"))
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	assert.Zero(t, repo.listCalls, "format errors are reported before any lookup")
}

func TestScheduleServiceCreateStorageExclusion(t *testing.T) {
	repo := newScheduleRepoStub()
	repo.createErr = fmt.Errorf("insert schedule: %w", models.ErrScheduleOverlap)
	svc, inv, _ := newScheduleServiceForTest(repo)

	_, err := svc.Create(context.Background(), "group-1", request(models.Friday, "07:00", "08:00"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrOverlapConflict.Code, appErrors.FromError(err).Code)
	assert.Equal(t, 409, appErrors.FromError(err).Status)
	assert.Empty(t, inv.groups)
}

func TestScheduleServiceUpdateExcludesSelf(t *testing.T) {
	repo := newScheduleRepoStub(
		stored("a", models.Monday, "09:00", "10:00"),
		stored("b", models.Monday, "10:00", "11:00"),
	)
	svc, _, _ := newScheduleServiceForTest(repo)

	updated, err := svc.Update(context.Background(), "group-1", "a", request(models.Monday, "08:30", "10:00"))
	require.NoError(t, err)
	assert.Equal(t, "a", updated.ID)
	assert.Equal(t, "08:30", repo.entries["a"].StartTime)

	_, err = svc.Update(context.Background(), "group-1", "a", request(models.Monday, "09:00", "10:30"))
	require.Error(t, err)
	var conflictErr *models.ScheduleConflictError
	require.True(t, errors.As(err, &conflictErr))
	assert.Equal(t, "b", conflictErr.Conflict.ScheduleID)
}

func TestScheduleServiceUpdateMissing(t *testing.T) {
	svc, _, _ := newScheduleServiceForTest(newScheduleRepoStub())
	_, err := svc.Update(context.Background(), "group-1", "missing", request(models.Monday, "09:00", "10:00"))
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

func TestScheduleServiceDelete(t *testing.T) {
	repo := newScheduleRepoStub(stored("a", models.Monday, "09:00", "10:00"))
	svc, inv, _ := newScheduleServiceForTest(repo)

	require.NoError(t, svc.Delete(context.Background(), "group-1", "a"))
	assert.Empty(t, repo.entries)
	assert.Equal(t, []string{"group-1"}, inv.groups)

	err := svc.Delete(context.Background(), "group-1", "a")
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

func TestScheduleServiceValidate(t *testing.T) {
	repo := newScheduleRepoStub(stored("a", models.Wednesday, "09:00", "10:00"))
	svc, _, _ := newScheduleServiceForTest(repo)

	result, err := svc.Validate(context.Background(), "group-1", request(models.Wednesday, "09:59", "10:30"), "")
	require.NoError(t, err)
	assert.False(t, result.Valid)
	require.NotNil(t, result.Conflict)
	assert.Equal(t, "a", result.Conflict.ScheduleID)

	result, err = svc.Validate(context.Background(), "group-1", request(models.Wednesday, "09:30", "10:30"), "a")
	require.NoError(t, err)
	assert.True(t, result.Valid)

	_, err = svc.Validate(context.Background(), "group-1", request(models.Wednesday, "25:00", "26:00"), "")
	assert.True(t, errors.Is(err, appErrors.ErrInvalidTimeFormat))
}

func TestScheduleServiceListRejectsInvalidWeekday(t *testing.T) {
	svc, _, _ := newScheduleServiceForTest(newScheduleRepoStub())
	day := models.Weekday(7)
	_, err := svc.List(context.Background(), "group-1", &day)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}

func TestScheduleServiceListWrapsRepositoryError(t *testing.T) {
	repo := newScheduleRepoStub()
	repo.listErr = errors.New("db down")
	svc, _, _ := newScheduleServiceForTest(repo)

	_, err := svc.List(context.Background(), "group-1", nil)
	assert.Equal(t, appErrors.ErrInternal.Code, appErrors.FromError(err).Code)
}

func TestScheduleServiceCreateRequiresWeekday(t *testing.T) {
	repo := newScheduleRepoStub()
	svc, _, _ := newScheduleServiceForTest(repo)

	for _, body := range []string{
		`{"startTime":"09:00","endTime":"10:00","subjectId":"math"}`,
		`{"weekday":null,"startTime":"09:00","endTime":"10:00","subjectId":"math"}`,
	} {
		var req ScheduleRequest
		require.NoError(t, json.Unmarshal([]byte(body), &req), body)
		_, err := svc.Create(context.Background(), "group-1", req)
		assert.True(t, errors.Is(err, appErrors.ErrValidation), body)
	}

	var req ScheduleRequest
	require.NoError(t, json.Unmarshal([]byte(`{"weekday":0,"startTime":"09:00","endTime":"10:00","subjectId":"math"}`), &req))
	created, err := svc.Create(context.Background(), "group-1", req)
	require.NoError(t, err)
	assert.Equal(t, models.Sunday, created.Weekday)
	assert.Len(t, repo.entries, 1)
}
