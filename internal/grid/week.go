package grid

import (
	"sort"
	"strings"
	"time"

	"tutorcal/internal/lesson"
	"tutorcal/internal/model"
)

// DaysPerWeek is the number of columns in a week view.
const DaysPerWeek = 7

// ParseWeekStart maps "monday"/"sunday" to a weekday, defaulting to Monday.
func ParseWeekStart(s string) time.Weekday {
	if strings.EqualFold(strings.TrimSpace(s), "sunday") {
		return time.Sunday
	}
	return time.Monday
}

// WeekRange returns the [start, end) bounds of the week containing now,
// shifted by offset weeks. start is local midnight of the first weekday.
func WeekRange(now time.Time, offset int, weekStart time.Weekday, loc *time.Location) (time.Time, time.Time) {
	if loc == nil {
		loc = time.UTC
	}
	day := lesson.Midnight(now, loc)
	back := (int(day.Weekday()) - int(weekStart) + DaysPerWeek) % DaysPerWeek
	start := day.AddDate(0, 0, -back+offset*DaysPerWeek)
	return start, start.AddDate(0, 0, DaysPerWeek)
}

// Block is one lesson placed inside a day column.
type Block struct {
	Entry       model.LessonEntry
	Top         float64
	Height      float64
	Status      model.Status
	Interactive bool
}

// Day is one column of the week view.
type Day struct {
	Key     string
	Date    time.Time
	Weekday time.Weekday
	Blocks  []Block
}

// Week is the renderable weekly grid.
type Week struct {
	Start        time.Time
	ColumnHeight float64
	Days         [DaysPerWeek]Day
}

// Layout places each entry of the seven days starting at weekStart into its
// column. Blocks are ordered by start offset; lessons sharing a slot keep
// their schedule order.
func Layout(s model.Schedule, weekStart time.Time, columnHeight float64) Week {
	w := Week{Start: weekStart, ColumnHeight: columnHeight}
	for i := 0; i < DaysPerWeek; i++ {
		date := weekStart.AddDate(0, 0, i)
		key := date.Format(time.DateOnly)
		entries := s[key]

		blocks := make([]Block, 0, len(entries))
		for _, e := range entries {
			blocks = append(blocks, Block{
				Entry:       e,
				Top:         Top(e.StartTimestamp, e.EndTimestamp, columnHeight),
				Height:      Height(e.StartTimestamp, e.EndTimestamp, columnHeight),
				Status:      e.Status,
				Interactive: lesson.Interactive(e),
			})
		}
		sort.SliceStable(blocks, func(a, b int) bool {
			return blocks[a].Entry.StartTimestamp < blocks[b].Entry.StartTimestamp
		})

		w.Days[i] = Day{Key: key, Date: date, Weekday: date.Weekday(), Blocks: blocks}
	}
	return w
}

// HourMarks returns the pixel position of each full hour, 0..24 inclusive.
func HourMarks(columnHeight float64) []float64 {
	marks := make([]float64, 25)
	for h := range marks {
		marks[h] = OffsetPosition(int64(h)*int64(time.Hour/time.Millisecond), columnHeight)
	}
	return marks
}
