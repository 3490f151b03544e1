package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-api/internal/models"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
	"github.com/noah-isme/sma-timetable-api/pkg/jobs"
	"github.com/noah-isme/sma-timetable-api/pkg/timegrid"
)

type scheduleLister interface {
	List(ctx context.Context, filter models.ScheduleFilter) ([]models.ScheduleEntry, error)
}

type gridCache interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	InvalidateGroup(ctx context.Context, groupID string) error
}

// GridSettings holds the server-wide grid defaults.
type GridSettings struct {
	Config             models.TimeGridConfig
	Days               []models.Weekday
	ContentMinHeightPx float64
	DefaultLocale      string
	CacheTTL           time.Duration
}

// GridOptions are the per-request grid overrides.
type GridOptions struct {
	Locale             string
	ContentMinHeightPx *float64
}

// LayoutRequest asks for the geometry of a single block.
type LayoutRequest struct {
	StartTime          string                 `json:"startTime"`
	EndTime            string                 `json:"endTime"`
	Grid               *models.TimeGridConfig `json:"grid,omitempty"`
	ContentMinHeightPx float64                `json:"contentMinHeightPx"`
}

// GridService composes weekly grids and computes block layouts.
type GridService struct {
	repo     scheduleLister
	cache    gridCache
	metrics  *MetricsService
	settings GridSettings
	logger   *zap.Logger

	versions sync.Map // group id -> *gridVersion
}

// gridVersion counts invalidations of one group. A grid composed under an
// older generation is never written to the cache.
type gridVersion struct {
	mu  sync.Mutex
	gen uint64
}

// NewGridService builds a grid service. cache may be nil.
func NewGridService(repo scheduleLister, cache gridCache, metrics *MetricsService, settings GridSettings, logger *zap.Logger) *GridService {
	if logger == nil {
		logger = zap.NewNop()
	}
	settings.Config = timegrid.NormalizeConfig(settings.Config)
	if len(settings.Days) == 0 {
		settings.Days = timegrid.DefaultDays
	}
	if settings.DefaultLocale == "" {
		settings.DefaultLocale = models.DefaultLocale
	}
	return &GridService{repo: repo, cache: cache, metrics: metrics, settings: settings, logger: logger}
}

// Settings returns the normalised grid defaults.
func (s *GridService) Settings() GridSettings {
	return s.settings
}

// Week composes the group's weekly grid. Grids using the default content
// height are served from and written to the cache; the flag reports a hit.
func (s *GridService) Week(ctx context.Context, groupID string, opts GridOptions) (*models.WeeklyGrid, bool, error) {
	locale := opts.Locale
	if locale == "" {
		locale = s.settings.DefaultLocale
	}
	minHeight := s.settings.ContentMinHeightPx
	cacheable := opts.ContentMinHeightPx == nil
	if !cacheable {
		minHeight = *opts.ContentMinHeightPx
	}
	if minHeight < 0 {
		return nil, false, appErrors.Clone(appErrors.ErrValidation, "minContentHeight must not be negative")
	}

	key := GridKey(groupID, locale)
	var gen uint64
	if cacheable && s.cache != nil {
		gen = s.generation(groupID)
		var cached models.WeeklyGrid
		if hit, err := s.cache.Get(ctx, key, &cached); err == nil && hit {
			return &cached, true, nil
		}
	}

	grid, err := s.compose(ctx, groupID, locale, minHeight)
	if err != nil {
		return nil, false, err
	}

	if cacheable && s.cache != nil {
		_ = s.store(ctx, groupID, key, grid, gen)
	}
	return grid, false, nil
}

// Refresh recomposes the default-locale grid and stores it in the cache.
func (s *GridService) Refresh(ctx context.Context, groupID string) error {
	if s.cache == nil {
		return nil
	}
	locale := s.settings.DefaultLocale
	gen := s.generation(groupID)
	grid, err := s.compose(ctx, groupID, locale, s.settings.ContentMinHeightPx)
	if err != nil {
		return err
	}
	return s.store(ctx, groupID, GridKey(groupID, locale), grid, gen)
}

// Invalidate drops cached grids of a group. Failures are logged by the cache.
// Grids still being composed from the previous data are not cached afterwards.
func (s *GridService) Invalidate(ctx context.Context, groupID string) {
	if s.cache == nil {
		return
	}
	v := s.version(groupID)
	v.mu.Lock()
	v.gen++
	v.mu.Unlock()
	_ = s.cache.InvalidateGroup(ctx, groupID)
}

func (s *GridService) version(groupID string) *gridVersion {
	v, _ := s.versions.LoadOrStore(groupID, &gridVersion{})
	return v.(*gridVersion)
}

func (s *GridService) generation(groupID string) uint64 {
	v := s.version(groupID)
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.gen
}

// store writes grid unless the group was invalidated after gen was read. The
// lock spans the write so an invalidation either precedes it and skips it, or
// follows it and deletes it.
func (s *GridService) store(ctx context.Context, groupID, key string, grid *models.WeeklyGrid, gen uint64) error {
	v := s.version(groupID)
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.gen != gen {
		s.logger.Debug("skipping stale grid cache write", zap.String("group_id", groupID))
		return nil
	}
	return s.cache.Set(ctx, key, grid, s.settings.CacheTTL)
}

// Layout computes the geometry of an ad-hoc block.
func (s *GridService) Layout(req LayoutRequest) (models.LayoutResult, error) {
	if req.ContentMinHeightPx < 0 {
		return models.LayoutResult{}, appErrors.Clone(appErrors.ErrValidation, "contentMinHeightPx must not be negative")
	}
	cfg := s.settings.Config
	if req.Grid != nil {
		cfg = *req.Grid
	}
	result := timegrid.ComputeLayout(timegrid.TimeRange{Start: req.StartTime, End: req.EndTime}, cfg, req.ContentMinHeightPx)
	if result.Degraded {
		s.metrics.RecordDegradedLayouts(1)
		s.logger.Warn("degraded schedule layout",
			zap.String("code", appErrors.ErrInvalidScheduleGeometry.Code),
			zap.String("start", req.StartTime),
			zap.String("end", req.EndTime),
		)
	}
	return result, nil
}

func (s *GridService) compose(ctx context.Context, groupID, locale string, minHeight float64) (*models.WeeklyGrid, error) {
	start := time.Now()
	entries, err := s.repo.List(ctx, models.ScheduleFilter{GroupID: groupID})
	s.metrics.ObserveDBQuery("schedules_week", time.Since(start))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load schedules")
	}

	grid := timegrid.ComposeWeek(groupID, entries, s.settings.Config, timegrid.ComposeOptions{
		Days:               s.settings.Days,
		ContentMinHeightPx: minHeight,
		Locale:             locale,
	})

	if grid.DegradedCount > 0 {
		s.metrics.RecordDegradedLayouts(grid.DegradedCount)
		for _, column := range grid.Columns {
			for _, block := range column.Blocks {
				if !block.Layout.Degraded {
					continue
				}
				s.logger.Warn("degraded schedule layout",
					zap.String("code", appErrors.ErrInvalidScheduleGeometry.Code),
					zap.String("group_id", groupID),
					zap.String("schedule_id", block.Entry.ID),
					zap.String("start", block.Entry.StartTime),
					zap.String("end", block.Entry.EndTime),
				)
			}
		}
	}
	return &grid, nil
}

// GridRefreshWorker bridges queue jobs to GridService.Refresh.
type GridRefreshWorker struct {
	grids  *GridService
	logger *zap.Logger
}

// NewGridRefreshWorker constructs the worker.
func NewGridRefreshWorker(grids *GridService, logger *zap.Logger) *GridRefreshWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GridRefreshWorker{grids: grids, logger: logger}
}

// Handle processes a queue job.
func (w *GridRefreshWorker) Handle(ctx context.Context, job jobs.Job) error {
	if job.Type != JobTypeGridRefresh {
		return fmt.Errorf("unsupported job type %q", job.Type)
	}
	groupID, ok := job.Payload.(string)
	if !ok || groupID == "" {
		return errors.New("grid refresh job without group id")
	}
	if err := w.grids.Refresh(ctx, groupID); err != nil {
		return err
	}
	w.logger.Debug("grid refreshed", zap.String("group_id", groupID), zap.String("job_id", job.ID))
	return nil
}
