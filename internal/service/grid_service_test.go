package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/noah-isme/sma-timetable-api/internal/models"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
	"github.com/noah-isme/sma-timetable-api/pkg/jobs"
)

type memoryCacheRepo struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemoryCacheRepo() *memoryCacheRepo {
	return &memoryCacheRepo{data: map[string][]byte{}}
}

func (m *memoryCacheRepo) Get(ctx context.Context, key string, dest interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, ok := m.data[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *memoryCacheRepo) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = raw
	return nil
}

func (m *memoryCacheRepo) DeleteByPattern(ctx context.Context, pattern string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	prefix := strings.TrimSuffix(pattern, "*")
	for key := range m.data {
		if strings.HasPrefix(key, prefix) {
			delete(m.data, key)
		}
	}
	return nil
}

func (m *memoryCacheRepo) keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.data))
	for key := range m.data {
		out = append(out, key)
	}
	return out
}

func newGridServiceForTest(repo *scheduleRepoStub, cacheRepo CacheRepository, logger *zap.Logger) (*GridService, *MetricsService) {
	metrics := NewMetricsService()
	cache := NewCacheService(cacheRepo, metrics, time.Minute, logger, cacheRepo != nil)
	settings := GridSettings{Config: models.DefaultTimeGridConfig()}
	return NewGridService(repo, cache, metrics, settings, logger), metrics
}

func TestGridServiceWeekComposesColumns(t *testing.T) {
	repo := newScheduleRepoStub(
		stored("a", models.Monday, "09:00", "10:00"),
		stored("b", models.Monday, "07:00", "07:45"),
		stored("c", models.Saturday, "09:00", "10:00"),
	)
	grids, _ := newGridServiceForTest(repo, nil, nil)

	grid, hit, err := grids.Week(context.Background(), "group-1", GridOptions{Locale: "id"})
	require.NoError(t, err)
	assert.False(t, hit)
	require.Len(t, grid.Columns, 5)
	assert.Equal(t, "Senin", grid.Columns[0].Label)
	require.Len(t, grid.Columns[0].Blocks, 2)
	assert.Equal(t, "b", grid.Columns[0].Blocks[0].Entry.ID)
	assert.Equal(t, 0.0, grid.Columns[0].Blocks[0].Layout.TopOffsetPx)
	assert.Equal(t, 120.0, grid.Columns[0].Blocks[1].Layout.TopOffsetPx)
	assert.Equal(t, 480.0, grid.GridHeightPx)
	for _, column := range grid.Columns {
		assert.NotEqual(t, models.Saturday, column.Weekday)
	}
}

func TestGridServiceWeekUsesCache(t *testing.T) {
	repo := newScheduleRepoStub(stored("a", models.Monday, "09:00", "10:00"))
	cacheRepo := newMemoryCacheRepo()
	grids, _ := newGridServiceForTest(repo, cacheRepo, nil)

	_, hit, err := grids.Week(context.Background(), "group-1", GridOptions{})
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, []string{GridKey("group-1", "en")}, cacheRepo.keys())

	calls := repo.listCalls
	grid, hit, err := grids.Week(context.Background(), "group-1", GridOptions{})
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, calls, repo.listCalls)
	assert.Equal(t, "a", grid.Columns[0].Blocks[0].Entry.ID)

	minHeight := 90.0
	grid, hit, err = grids.Week(context.Background(), "group-1", GridOptions{ContentMinHeightPx: &minHeight})
	require.NoError(t, err)
	assert.False(t, hit, "custom content heights bypass the cache")
	assert.True(t, grid.Columns[0].Blocks[0].Layout.NeedsScroll)

	grids.Invalidate(context.Background(), "group-1")
	assert.Empty(t, cacheRepo.keys())
}

func TestGridServiceLogsDegradedBlocks(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	repo := newScheduleRepoStub(
		stored("bad", models.Tuesday, "06:00", "07:00"),
		stored("ok", models.Tuesday, "08:00", "09:00"),
	)
	grids, metrics := newGridServiceForTest(repo, nil, zap.New(core))

	grid, _, err := grids.Week(context.Background(), "group-1", GridOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, grid.DegradedCount)

	entries := logs.FilterMessage("degraded schedule layout").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "bad", entries[0].ContextMap()["schedule_id"])
	assert.Equal(t, appErrors.ErrInvalidScheduleGeometry.Code, entries[0].ContextMap()["code"])
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.degradedLayouts))
}

func TestGridServiceWeekRejectsNegativeHeight(t *testing.T) {
	grids, _ := newGridServiceForTest(newScheduleRepoStub(), nil, nil)
	negative := -1.0
	_, _, err := grids.Week(context.Background(), "group-1", GridOptions{ContentMinHeightPx: &negative})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}

func TestGridServiceLayout(t *testing.T) {
	grids, _ := newGridServiceForTest(newScheduleRepoStub(), nil, nil)

	result, err := grids.Layout(LayoutRequest{StartTime: "09:00", EndTime: "10:00", ContentMinHeightPx: 80})
	require.NoError(t, err)
	assert.Equal(t, models.LayoutResult{TopOffsetPx: 120, HeightPx: 60, NeedsScroll: true}, result)

	result, err = grids.Layout(LayoutRequest{StartTime: "10:00", EndTime: "09:00"})
	require.NoError(t, err)
	assert.True(t, result.Degraded)
	assert.Equal(t, 0.0, result.TopOffsetPx)
	assert.Equal(t, 60.0, result.HeightPx)

	custom := models.TimeGridConfig{FirstSlotStart: "08:00", LastSlotEnd: "12:00", PixelsPerHour: 120}
	result, err = grids.Layout(LayoutRequest{StartTime: "09:00", EndTime: "09:30", Grid: &custom})
	require.NoError(t, err)
	assert.Equal(t, 120.0, result.TopOffsetPx)
	assert.Equal(t, 60.0, result.HeightPx)
}

func TestGridRefreshWorkerStoresGrid(t *testing.T) {
	repo := newScheduleRepoStub(stored("a", models.Monday, "09:00", "10:00"))
	cacheRepo := newMemoryCacheRepo()
	grids, _ := newGridServiceForTest(repo, cacheRepo, nil)
	worker := NewGridRefreshWorker(grids, nil)

	require.NoError(t, worker.Handle(context.Background(), jobs.Job{ID: "job-1", Type: JobTypeGridRefresh, Payload: "group-1"}))
	assert.Equal(t, []string{GridKey("group-1", "en")}, cacheRepo.keys())

	assert.Error(t, worker.Handle(context.Background(), jobs.Job{Type: "other"}))
	assert.Error(t, worker.Handle(context.Background(), jobs.Job{Type: JobTypeGridRefresh}))
}

func TestScheduleWritesRefreshGridThroughQueue(t *testing.T) {
	repo := newScheduleRepoStub()
	cacheRepo := newMemoryCacheRepo()
	grids, metrics := newGridServiceForTest(repo, cacheRepo, nil)

	queue := jobs.NewQueue("grid-refresh", NewGridRefreshWorker(grids, nil).Handle, jobs.QueueConfig{Workers: 1})
	queue.Start(context.Background())
	defer queue.Stop()

	svc := NewScheduleService(repo, grids, queue, metrics, nil, nil)
	_, err := svc.Create(context.Background(), "group-1", request(models.Monday, "09:00", "10:00"))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return len(cacheRepo.keys()) == 1
	}, time.Second, 10*time.Millisecond)

	var cached models.WeeklyGrid
	require.NoError(t, cacheRepo.Get(context.Background(), GridKey("group-1", "en"), &cached))
	require.Len(t, cached.Columns[0].Blocks, 1)
}

func TestGridServiceSkipsCachingGridInvalidatedDuringCompose(t *testing.T) {
	repo := newScheduleRepoStub(stored("a", models.Monday, "09:00", "10:00"))
	cacheRepo := newMemoryCacheRepo()
	grids, _ := newGridServiceForTest(repo, cacheRepo, nil)

	// A write lands while the grid is being composed from the old rows.
	repo.onList = func() {
		repo.onList = nil
		grids.Invalidate(context.Background(), "group-1")
	}
	grid, hit, err := grids.Week(context.Background(), "group-1", GridOptions{})
	require.NoError(t, err)
	assert.False(t, hit)
	require.Len(t, grid.Columns[0].Blocks, 1)
	assert.Empty(t, cacheRepo.keys())

	repo.onList = func() {
		repo.onList = nil
		grids.Invalidate(context.Background(), "group-1")
	}
	require.NoError(t, grids.Refresh(context.Background(), "group-1"))
	assert.Empty(t, cacheRepo.keys())

	_, _, err = grids.Week(context.Background(), "group-1", GridOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{GridKey("group-1", "en")}, cacheRepo.keys())
}
