package models

import (
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// DefaultLocale is used when a caller does not ask for a specific language.
const DefaultLocale = "en"

var localeWeekdayNames = map[string][DaysInWeek]string{
	"en": {"Sunday", "Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday"},
	"id": {"Minggu", "Senin", "Selasa", "Rabu", "Kamis", "Jumat", "Sabtu"},
	"es": {"Domingo", "Lunes", "Martes", "Miércoles", "Jueves", "Viernes", "Sábado"},
}

var weekdayLookup = buildWeekdayLookup()

// WeekdayLabel pairs an index with its display name.
type WeekdayLabel struct {
	Weekday Weekday `json:"weekday"`
	Name    string  `json:"name"`
}

// SupportedLocales lists locales with a weekday table.
func SupportedLocales() []string {
	locales := make([]string, 0, len(localeWeekdayNames))
	for locale := range localeWeekdayNames {
		locales = append(locales, locale)
	}
	sort.Strings(locales)
	return locales
}

// WeekdayLabels returns the table for a locale, falling back to DefaultLocale.
func WeekdayLabels(locale string) []WeekdayLabel {
	names := weekdayNames(locale)
	labels := make([]WeekdayLabel, 0, DaysInWeek)
	for i, name := range names {
		labels = append(labels, WeekdayLabel{Weekday: Weekday(i), Name: name})
	}
	return labels
}

func weekdayNames(locale string) [DaysInWeek]string {
	key := strings.ToLower(strings.TrimSpace(locale))
	if idx := strings.IndexAny(key, "-_"); idx > 0 {
		key = key[:idx]
	}
	if names, ok := localeWeekdayNames[key]; ok {
		return names
	}
	return localeWeekdayNames[DefaultLocale]
}

func buildWeekdayLookup() map[string]Weekday {
	lookup := make(map[string]Weekday)
	for _, names := range localeWeekdayNames {
		for i, name := range names {
			lookup[foldDayName(name)] = Weekday(i)
		}
	}
	return lookup
}

// foldDayName lowercases and strips accents so "MIERCOLES" matches "Miércoles".
func foldDayName(name string) string {
	decomposed := norm.NFD.String(strings.ToLower(strings.TrimSpace(name)))
	var b strings.Builder
	for _, r := range decomposed {
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
