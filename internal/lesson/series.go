package lesson

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/teambition/rrule-go"

	appLog "tutorcal/internal/log"
	"tutorcal/internal/model"
)

const (
	// DefaultSeriesHorizon bounds open-ended rules.
	DefaultSeriesHorizon = 26 * 7 * 24 * time.Hour
	// MaxSeriesLessons caps a single series expansion.
	MaxSeriesLessons = 200
)

var ErrEmptySeries = errors.New("series: rule produced no lessons")

// ExpandSeries turns a recurring draft into one concrete draft per
// occurrence, each keeping the template's duration.
func ExpandSeries(s model.SeriesDraft) ([]model.LessonDraft, error) {
	tpl := s.Draft
	if !tpl.EndTime.After(tpl.StartTime) {
		return nil, errors.New("series: end time must be after start time")
	}

	rule := strings.TrimPrefix(strings.TrimSpace(s.RRule), "RRULE:")
	r, err := rrule.StrToRRule(rule)
	if err != nil {
		return nil, fmt.Errorf("series: parse rrule %q: %w", s.RRule, err)
	}
	r.DTStart(tpl.StartTime)

	var set rrule.Set
	set.RRule(r)
	for _, ex := range s.Exclude {
		set.ExDate(ex.In(tpl.StartTime.Location()))
	}

	until := s.Until
	if until.IsZero() {
		until = tpl.StartTime.Add(DefaultSeriesHorizon)
	}

	starts := set.Between(tpl.StartTime, until, true)
	if len(starts) > MaxSeriesLessons {
		appLog.Warn("series: truncated occurrences", "rrule", rule, "cap", MaxSeriesLessons, "total", len(starts))
		starts = starts[:MaxSeriesLessons]
	}
	if len(starts) == 0 {
		return nil, ErrEmptySeries
	}

	dur := tpl.EndTime.Sub(tpl.StartTime)
	out := make([]model.LessonDraft, 0, len(starts))
	for _, st := range starts {
		d := tpl
		d.StartTime = st
		d.EndTime = st.Add(dur)
		d.StudentIDs = append([]string(nil), tpl.StudentIDs...)
		out = append(out, d)
	}
	return out, nil
}
