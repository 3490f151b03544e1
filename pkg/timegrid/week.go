package timegrid

import (
	"sort"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

// DefaultDays are the school-week columns shown when none are configured.
var DefaultDays = []models.Weekday{models.Monday, models.Tuesday, models.Wednesday, models.Thursday, models.Friday}

// ComposeOptions tunes the weekly grid composition.
type ComposeOptions struct {
	Days               []models.Weekday
	ContentMinHeightPx float64
	Locale             string
}

// ComposeWeek partitions entries by weekday and lays out each column on its own.
// Entries on days outside opts.Days are not shown.
func ComposeWeek(groupID string, entries []models.ScheduleEntry, cfg models.TimeGridConfig, opts ComposeOptions) models.WeeklyGrid {
	cfg = NormalizeConfig(cfg)
	days := opts.Days
	if len(days) == 0 {
		days = DefaultDays
	}

	byDay := make(map[models.Weekday][]models.ScheduleEntry, len(days))
	for _, entry := range entries {
		byDay[entry.Weekday] = append(byDay[entry.Weekday], entry)
	}

	grid := models.WeeklyGrid{GroupID: groupID, Config: cfg, Columns: make([]models.GridColumn, 0, len(days))}
	grid.GridHeightPx, _ = GridHeightPx(cfg)

	for _, day := range days {
		column := composeColumn(day, byDay[day], cfg, opts)
		for _, block := range column.Blocks {
			if block.Layout.Degraded {
				grid.DegradedCount++
			}
		}
		grid.Columns = append(grid.Columns, column)
	}
	return grid
}

func composeColumn(day models.Weekday, entries []models.ScheduleEntry, cfg models.TimeGridConfig, opts ComposeOptions) models.GridColumn {
	ordered := make([]models.ScheduleEntry, len(entries))
	copy(ordered, entries)
	sort.SliceStable(ordered, func(i, j int) bool {
		si, sj := sortKey(ordered[i]), sortKey(ordered[j])
		if si != sj {
			return si < sj
		}
		return ordered[i].ID < ordered[j].ID
	})

	column := models.GridColumn{Weekday: day, Label: day.DisplayName(opts.Locale), Blocks: make([]models.GridBlock, 0, len(ordered))}
	for _, entry := range ordered {
		column.Blocks = append(column.Blocks, models.GridBlock{
			Entry:  entry,
			Layout: ComputeLayout(RangeOf(entry), cfg, opts.ContentMinHeightPx),
		})
	}
	return column
}

// sortKey orders by start time; unparsable starts sink to the bottom.
func sortKey(entry models.ScheduleEntry) int {
	minutes, err := ToMinutes(entry.StartTime)
	if err != nil {
		return MinutesPerDay
	}
	return minutes
}
