package ics

import (
	"sort"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	"tutorcal/internal/model"
)

// ProductID identifies feeds produced by this package.
const ProductID = "-//tutorcal//lesson schedule//EN"

// Export renders a schedule as an iCalendar feed with one VEVENT per
// lesson. UIDs are lesson IDs so subscribers update events in place.
func Export(s model.Schedule, name string, stamp time.Time) []byte {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(ProductID)
	if name != "" {
		cal.SetName(name)
	}

	for _, e := range sortedEntries(s) {
		ev := cal.AddEvent(e.LessonID + "@tutorcal")
		ev.SetDtStampTime(stamp)
		ev.SetStartAt(e.Start)
		ev.SetEndAt(e.End)
		ev.SetSummary(summary(e))
		if e.Address != "" {
			ev.SetLocation(e.Address)
		}
		if e.Description != "" {
			ev.SetDescription(e.Description)
		}
		ev.SetStatus(eventStatus(e.Status))
	}
	return []byte(cal.Serialize())
}

func sortedEntries(s model.Schedule) []model.LessonEntry {
	out := make([]model.LessonEntry, 0, s.Len())
	for _, day := range s {
		out = append(out, day...)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Start.Equal(out[j].Start) {
			return out[i].LessonID < out[j].LessonID
		}
		return out[i].Start.Before(out[j].Start)
	})
	return out
}

func summary(e model.LessonEntry) string {
	names := make([]string, 0, len(e.Attendances))
	for _, a := range e.Attendances {
		names = append(names, strings.TrimSpace(a.StudentName+" "+a.StudentSurname))
	}
	title := "Lesson"
	if e.LessonType != "" {
		title = e.LessonType
	}
	if len(names) == 0 {
		return title
	}
	return title + ": " + strings.Join(names, ", ")
}

func eventStatus(s model.Status) ical.ObjectStatus {
	switch s {
	case model.StatusConfirmed:
		return ical.ObjectStatusConfirmed
	case model.StatusRejected:
		return ical.ObjectStatusCancelled
	default:
		return ical.ObjectStatusTentative
	}
}
