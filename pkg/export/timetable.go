package export

import (
	"strconv"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

// TimetableHeaders are the CSV columns of a flattened weekly grid.
var TimetableHeaders = []string{"weekday", "day", "start_time", "end_time", "subject_id", "teacher_id", "room_id", "mode", "top_offset_px", "height_px", "degraded"}

// TimetableDataset flattens a weekly grid into rows ordered by column then block.
func TimetableDataset(grid models.WeeklyGrid) Dataset {
	data := Dataset{Headers: TimetableHeaders}
	for _, column := range grid.Columns {
		for _, block := range column.Blocks {
			data.Rows = append(data.Rows, map[string]string{
				"weekday":       strconv.Itoa(int(column.Weekday)),
				"day":           column.Label,
				"start_time":    block.Entry.StartTime,
				"end_time":      block.Entry.EndTime,
				"subject_id":    block.Entry.SubjectID,
				"teacher_id":    deref(block.Entry.TeacherID),
				"room_id":       deref(block.Entry.RoomID),
				"mode":          string(block.Entry.Mode),
				"top_offset_px": strconv.FormatFloat(block.Layout.TopOffsetPx, 'f', -1, 64),
				"height_px":     strconv.FormatFloat(block.Layout.HeightPx, 'f', -1, 64),
				"degraded":      strconv.FormatBool(block.Layout.Degraded),
			})
		}
	}
	return data
}

func deref(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
