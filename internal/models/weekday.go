package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Weekday is the opaque day index used to scope scheduling comparisons.
// Numbering follows time.Weekday: 0 is Sunday, 6 is Saturday.
type Weekday int

const (
	Sunday Weekday = iota
	Monday
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
)

// DaysInWeek is the number of valid weekday indexes.
const DaysInWeek = 7

// Valid reports whether the index is inside 0..6.
func (d Weekday) Valid() bool {
	return d >= Sunday && d <= Saturday
}

// String returns the English display name, mostly for logs.
func (d Weekday) String() string {
	return d.DisplayName(DefaultLocale)
}

// DisplayName resolves the localised name for the weekday.
func (d Weekday) DisplayName(locale string) string {
	if !d.Valid() {
		return fmt.Sprintf("Weekday(%d)", int(d))
	}
	return weekdayNames(locale)[d]
}

// MarshalJSON always emits the numeric index.
func (d Weekday) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Itoa(int(d))), nil
}

// UnmarshalJSON accepts the numeric index or a day name in any supported locale.
// null is rejected rather than decoded as Sunday.
func (d *Weekday) UnmarshalJSON(data []byte) error {
	if string(bytes.TrimSpace(data)) == "null" {
		return fmt.Errorf("weekday must not be null")
	}
	var idx int
	if err := json.Unmarshal(data, &idx); err == nil {
		day := Weekday(idx)
		if !day.Valid() {
			return fmt.Errorf("weekday index %d out of range", idx)
		}
		*d = day
		return nil
	}
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("weekday must be an index or a day name")
	}
	day, err := ParseWeekday(raw)
	if err != nil {
		return err
	}
	*d = day
	return nil
}

// ParseWeekday resolves an index ("1") or a localised day name ("Monday", "SENIN", "lunes").
func ParseWeekday(raw string) (Weekday, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return 0, fmt.Errorf("weekday is required")
	}
	if idx, err := strconv.Atoi(value); err == nil {
		day := Weekday(idx)
		if !day.Valid() {
			return 0, fmt.Errorf("weekday index %d out of range", idx)
		}
		return day, nil
	}
	if day, ok := weekdayLookup[foldDayName(value)]; ok {
		return day, nil
	}
	return 0, fmt.Errorf("unknown weekday %q", raw)
}
