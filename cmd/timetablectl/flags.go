package main

import (
	"flag"
	"strings"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

// entryFlags are the editable fields shared by add and edit.
type entryFlags struct {
	day     *string
	start   *string
	end     *string
	subject *string
	teacher *string
	room    *string
	mode    *string
}

func bindEntryFlags(fs *flag.FlagSet) *entryFlags {
	return &entryFlags{
		day:     fs.String("day", "", "weekday index or name"),
		start:   fs.String("start", "", "start time HH:MM"),
		end:     fs.String("end", "", "end time HH:MM"),
		subject: fs.String("subject", "", "subject id"),
		teacher: fs.String("teacher", "", "teacher id"),
		room:    fs.String("room", "", "room id"),
		mode:    fs.String("mode", "", "IN_PERSON, REMOTE or HYBRID"),
	}
}

// apply overlays the flags that were set on the command line onto base.
func (f *entryFlags) apply(base models.ScheduleEntry, fs *flag.FlagSet) (models.ScheduleEntry, error) {
	set := map[string]bool{}
	fs.Visit(func(fl *flag.Flag) { set[fl.Name] = true })

	if set["day"] {
		day, err := models.ParseWeekday(*f.day)
		if err != nil {
			return base, err
		}
		base.Weekday = day
	}
	if set["start"] {
		base.StartTime = strings.TrimSpace(*f.start)
	}
	if set["end"] {
		base.EndTime = strings.TrimSpace(*f.end)
	}
	if set["subject"] {
		base.SubjectID = *f.subject
	}
	if set["teacher"] {
		base.TeacherID = optional(*f.teacher)
	}
	if set["room"] {
		base.RoomID = optional(*f.room)
	}
	if set["mode"] {
		base.Mode = models.ScheduleMode(strings.ToUpper(*f.mode))
	}
	return base, nil
}

func optional(value string) *string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return &value
}
