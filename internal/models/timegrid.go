package models

// Default grid visual constants.
const (
	DefaultFirstSlotStart = "07:00"
	DefaultLastSlotEnd    = "15:00"
	DefaultPixelsPerHour  = 60.0
)

// TimeGridConfig bounds the visible grid and sets the rendering scale.
type TimeGridConfig struct {
	FirstSlotStart string  `json:"firstSlotStart"`
	LastSlotEnd    string  `json:"lastSlotEnd"`
	PixelsPerHour  float64 `json:"pixelsPerHour"`
}

// DefaultTimeGridConfig returns the stock 07:00–15:00 grid at 60px per hour.
func DefaultTimeGridConfig() TimeGridConfig {
	return TimeGridConfig{
		FirstSlotStart: DefaultFirstSlotStart,
		LastSlotEnd:    DefaultLastSlotEnd,
		PixelsPerHour:  DefaultPixelsPerHour,
	}
}

// LayoutResult is advisory vertical geometry for one rendered block.
type LayoutResult struct {
	TopOffsetPx float64 `json:"topOffsetPx"`
	HeightPx    float64 `json:"heightPx"`
	NeedsScroll bool    `json:"needsScroll"`
	Degraded    bool    `json:"degraded"`
}

// GridBlock pairs an entry with its computed geometry.
type GridBlock struct {
	Entry  ScheduleEntry `json:"entry"`
	Layout LayoutResult  `json:"layout"`
}

// GridColumn holds the blocks of a single weekday.
type GridColumn struct {
	Weekday Weekday     `json:"weekday"`
	Label   string      `json:"label"`
	Blocks  []GridBlock `json:"blocks"`
}

// WeeklyGrid is the composed calendar view of a group's schedule.
type WeeklyGrid struct {
	GroupID       string         `json:"groupId"`
	Config        TimeGridConfig `json:"config"`
	GridHeightPx  float64        `json:"gridHeightPx"`
	Columns       []GridColumn   `json:"columns"`
	DegradedCount int            `json:"degradedCount"`
}
