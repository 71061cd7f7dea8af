package lesson

import (
	"fmt"
	"time"

	"tutorcal/internal/model"
)

// Converter turns API lesson records into a Schedule.
type Converter struct {
	// Location is used both for the date key and for local midnight, so the
	// offsets in a day's list always agree with its key. nil means UTC.
	Location *time.Location
}

// Convert groups records by the calendar date of their start time,
// preserving input order within each day. It fails on the first timestamp
// that does not parse.
func (c Converter) Convert(records []model.LessonRecord) (model.Schedule, error) {
	loc := c.Location
	if loc == nil {
		loc = time.UTC
	}

	out := make(model.Schedule)
	for _, rec := range records {
		entry, err := c.entry(rec, loc)
		if err != nil {
			return nil, err
		}
		key := DateKey(entry.Start, loc)
		out[key] = append(out[key], entry)
	}
	return out, nil
}

// Convert is a shortcut for Converter{}.Convert (UTC keys).
func Convert(records []model.LessonRecord) (model.Schedule, error) {
	return Converter{}.Convert(records)
}

func (c Converter) entry(rec model.LessonRecord, loc *time.Location) (model.LessonEntry, error) {
	start, err := ParseTimestamp(rec.StartTime)
	if err != nil {
		return model.LessonEntry{}, fmt.Errorf("lesson %s: parse startTime: %w", rec.LessonID, err)
	}
	end, err := ParseTimestamp(rec.EndTime)
	if err != nil {
		return model.LessonEntry{}, fmt.Errorf("lesson %s: parse endTime: %w", rec.LessonID, err)
	}
	start = start.In(loc)
	end = end.In(loc)

	// Both offsets are measured from the start day's midnight.
	midnight := Midnight(start, loc)

	atts := rec.Attendances
	if atts == nil {
		atts = []model.Attendance{}
	}

	return model.LessonEntry{
		LessonID:       rec.LessonID,
		Address:        rec.Address,
		Description:    rec.Description,
		LessonType:     rec.LessonType,
		Attendances:    atts,
		Start:          start,
		End:            end,
		StartTimestamp: start.Sub(midnight).Milliseconds(),
		EndTimestamp:   end.Sub(midnight).Milliseconds(),
		StartTime:      ClockString(start, loc),
		EndTime:        ClockString(end, loc),
		FullyConfirmed: FullyConfirmed(atts),
		Status:         DeriveStatus(atts),
		Answered:       HasAnswers(atts),
	}, nil
}
