package timegrid

import (
	"fmt"
	"regexp"
	"strconv"

	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
)

// MinutesPerDay bounds minutes-since-midnight values.
const MinutesPerDay = 24 * 60

var clockPattern = regexp.MustCompile(`^([01][0-9]|2[0-3]):([0-5][0-9])$`)

// ToMinutes converts a strict "HH:MM" 24-hour string into minutes since midnight.
func ToMinutes(value string) (int, error) {
	match := clockPattern.FindStringSubmatch(value)
	if match == nil {
		return 0, appErrors.Clone(appErrors.ErrInvalidTimeFormat, fmt.Sprintf("invalid time %q: expected HH:MM", value))
	}
	hours, _ := strconv.Atoi(match[1])
	minutes, _ := strconv.Atoi(match[2])
	return hours*60 + minutes, nil
}

// FormatMinutes renders minutes since midnight back to "HH:MM". It is the
// inverse of ToMinutes on [0, MinutesPerDay); the schema keeps stored bounds
// inside that range since "HH:MM" cannot express 24:00.
func FormatMinutes(minutes int) string {
	minutes = ((minutes % MinutesPerDay) + MinutesPerDay) % MinutesPerDay
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// Interval is a half-open [Start, End) range in minutes since midnight.
type Interval struct {
	Start int
	End   int
}

// ParseInterval validates both bounds and requires Start < End.
func ParseInterval(start, end string) (Interval, error) {
	startMinutes, err := ToMinutes(start)
	if err != nil {
		return Interval{}, err
	}
	endMinutes, err := ToMinutes(end)
	if err != nil {
		return Interval{}, err
	}
	if endMinutes <= startMinutes {
		return Interval{}, appErrors.Clone(appErrors.ErrEndBeforeStart, fmt.Sprintf("end time %s must be after start time %s", end, start))
	}
	return Interval{Start: startMinutes, End: endMinutes}, nil
}

// Duration returns the length of the interval in minutes.
func (i Interval) Duration() int {
	return i.End - i.Start
}

// Overlaps reports strict intersection; intervals that only touch do not overlap.
func (i Interval) Overlaps(other Interval) bool {
	return i.Start < other.End && i.End > other.Start
}
