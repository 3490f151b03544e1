package timegrid

import (
	"math"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

// fallbackDurationMinutes is the block length substituted for invalid geometry.
const fallbackDurationMinutes = 60

// TimeRange is the pair of "HH:MM" bounds the layout engine positions.
type TimeRange struct {
	Start string `json:"startTime"`
	End   string `json:"endTime"`
}

// RangeOf extracts the time range of a schedule entry.
func RangeOf(entry models.ScheduleEntry) TimeRange {
	return TimeRange{Start: entry.StartTime, End: entry.EndTime}
}

// NormalizeConfig fills empty bounds with the defaults and replaces a
// non-positive or non-finite scale with DefaultPixelsPerHour.
func NormalizeConfig(cfg models.TimeGridConfig) models.TimeGridConfig {
	if cfg.FirstSlotStart == "" {
		cfg.FirstSlotStart = models.DefaultFirstSlotStart
	}
	if cfg.LastSlotEnd == "" {
		cfg.LastSlotEnd = models.DefaultLastSlotEnd
	}
	if !(cfg.PixelsPerHour > 0) || math.IsInf(cfg.PixelsPerHour, 0) {
		cfg.PixelsPerHour = models.DefaultPixelsPerHour
	}
	return cfg
}

// ComputeLayout converts a time range into vertical pixel geometry.
//
// Unparsable times, a start before the grid's first slot and non-positive
// durations fall back to a one-hour block at the top of the grid with
// Degraded set; callers are expected to report degraded results.
func ComputeLayout(candidate TimeRange, cfg models.TimeGridConfig, contentMinHeightPx float64) models.LayoutResult {
	cfg = NormalizeConfig(cfg)

	startOffset, duration, ok := blockGeometry(candidate, cfg)
	if !ok {
		startOffset, duration = 0, fallbackDurationMinutes
	}

	pixelsPerMinute := cfg.PixelsPerHour / 60
	height := float64(duration) * pixelsPerMinute
	return models.LayoutResult{
		TopOffsetPx: float64(startOffset) * pixelsPerMinute,
		HeightPx:    height,
		NeedsScroll: height < contentMinHeightPx,
		Degraded:    !ok,
	}
}

// GridHeightPx returns the pixel height of the visible grid, or false when
// its bounds are invalid.
func GridHeightPx(cfg models.TimeGridConfig) (float64, bool) {
	cfg = NormalizeConfig(cfg)
	span, err := ParseInterval(cfg.FirstSlotStart, cfg.LastSlotEnd)
	if err != nil {
		return 0, false
	}
	return float64(span.Duration()) * cfg.PixelsPerHour / 60, true
}

func blockGeometry(candidate TimeRange, cfg models.TimeGridConfig) (int, int, bool) {
	start, err := ToMinutes(candidate.Start)
	if err != nil {
		return 0, 0, false
	}
	end, err := ToMinutes(candidate.End)
	if err != nil {
		return 0, 0, false
	}
	first, err := ToMinutes(cfg.FirstSlotStart)
	if err != nil {
		return 0, 0, false
	}
	startOffset := start - first
	duration := end - start
	if startOffset < 0 || duration <= 0 {
		return 0, 0, false
	}
	return startOffset, duration, true
}
