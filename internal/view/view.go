package view

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"tutorcal/internal/api"
	"tutorcal/internal/grid"
	"tutorcal/internal/lesson"
	appLog "tutorcal/internal/log"
	"tutorcal/internal/model"
)

var (
	ErrAlreadyConfirming = errors.New("lesson confirmation already in progress")
	ErrNotPending        = errors.New("lesson is not awaiting confirmation")
	ErrLessonNotFound    = errors.New("lesson not in current schedule")
)

// LessonAPI is the subset of the REST client a view needs.
type LessonAPI interface {
	ListLessons(ctx context.Context, from, to time.Time) ([]model.LessonRecord, error)
	ConfirmLesson(ctx context.Context, lessonID string, confirmed bool) (model.ConfirmResult, error)
	DeleteLesson(ctx context.Context, lessonID string) error
	EditLesson(ctx context.Context, lessonID string, patch model.LessonPatch) error
	CreateLesson(ctx context.Context, draft model.LessonDraft) (string, error)
}

// Options configures a ScheduleView.
type Options struct {
	Location  *time.Location
	WeekStart time.Weekday
	Now       func() time.Time

	// OnCurrentWeek receives every freshly fetched schedule of the current
	// week (offset 0), whichever week the view is showing.
	OnCurrentWeek func(model.Schedule)
}

// ScheduleView owns the schedule of one mounted week view: the converted
// lessons, loading/error state, and the set of lessons being confirmed.
type ScheduleView struct {
	api        LessonAPI
	conv       lesson.Converter
	opts       Options
	confirming *ConfirmingSet

	mu       sync.Mutex
	schedule model.Schedule
	offset   int
	inflight int
	errMsg   string
	issued   uint64
	applied  uint64

	bg sync.WaitGroup
}

func New(client LessonAPI, opts Options) *ScheduleView {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &ScheduleView{
		api:        client,
		conv:       lesson.Converter{Location: opts.Location},
		opts:       opts,
		confirming: NewConfirmingSet(),
	}
}

// Schedule returns a copy of the current schedule, nil before the first
// successful fetch.
func (v *ScheduleView) Schedule() model.Schedule {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.schedule.Clone()
}

func (v *ScheduleView) Loading() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.inflight > 0
}

// Error returns the banner message of the last failure, "" when clear.
func (v *ScheduleView) Error() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.errMsg
}

// Offset is the week offset of the schedule currently shown.
func (v *ScheduleView) Offset() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.offset
}

// ConfirmingLessons lists lessons with a confirmation in flight.
func (v *ScheduleView) ConfirmingLessons() []string { return v.confirming.IDs() }

func (v *ScheduleView) IsConfirming(lessonID string) bool { return v.confirming.Has(lessonID) }

// Range returns the [from, to) window requested for a week offset.
func (v *ScheduleView) Range(offset int) (time.Time, time.Time) {
	return grid.WeekRange(v.opts.Now(), offset, v.opts.WeekStart, v.opts.Location)
}

// Refetch loads the week at offset (0 = current week) and replaces the
// schedule. Responses are fenced by generation: a response older than one
// already applied is dropped, so a slow stale fetch never overwrites a
// newer schedule.
func (v *ScheduleView) Refetch(ctx context.Context, offset int) error {
	v.mu.Lock()
	v.issued++
	gen := v.issued
	v.inflight++
	v.mu.Unlock()

	from, to := v.Range(offset)
	appLog.Debug("schedule fetch start", "gen", gen, "offset", offset, "from", from.Format(time.RFC3339))

	sched, err := v.fetch(ctx, from, to)

	v.mu.Lock()
	v.inflight--
	if gen < v.applied {
		v.mu.Unlock()
		appLog.Info("schedule fetch discarded as stale", "gen", gen, "applied", v.applied)
		return nil
	}
	v.applied = gen
	if err != nil {
		v.errMsg = api.Message(err)
		v.mu.Unlock()
		appLog.Error("schedule fetch failed", err, "gen", gen, "offset", offset, "kind", api.KindOf(err))
		return err
	}
	v.schedule = sched
	v.offset = offset
	v.errMsg = ""
	v.mu.Unlock()

	appLog.Info("schedule fetched", "gen", gen, "offset", offset, "lessons", sched.Len())
	if offset == 0 {
		v.currentWeek(sched)
	}
	return nil
}

// Sync refetches the week the view is showing. When that is not the
// current week, the current week is fetched as well, without replacing the
// view's schedule, so OnCurrentWeek always sees today's lessons.
func (v *ScheduleView) Sync(ctx context.Context) error {
	offset := v.Offset()
	if err := v.Refetch(ctx, offset); err != nil {
		return err
	}
	if offset == 0 {
		return nil
	}
	from, to := v.Range(0)
	sched, err := v.fetch(ctx, from, to)
	if err != nil {
		appLog.Error("current week fetch failed", err, "kind", api.KindOf(err))
		return err
	}
	v.currentWeek(sched)
	return nil
}

func (v *ScheduleView) currentWeek(sched model.Schedule) {
	if v.opts.OnCurrentWeek != nil {
		v.opts.OnCurrentWeek(sched.Clone())
	}
}

func (v *ScheduleView) fetch(ctx context.Context, from, to time.Time) (model.Schedule, error) {
	recs, err := v.api.ListLessons(ctx, from, to)
	if err != nil {
		return nil, err
	}
	sched, err := v.conv.Convert(recs)
	if err != nil {
		return nil, fmt.Errorf("convert schedule: %w", err)
	}
	return sched, nil
}

// ConfirmMeeting confirms (or rejects) a pending lesson. It reports true
// when the server accepted the answer. Failures never panic or leave the
// lesson marked as confirming; their message is kept in Error().
//
// A conflict answer means the local copy is stale: the current week is
// refetched in the background and the optimistic state is dropped.
func (v *ScheduleView) ConfirmMeeting(ctx context.Context, lessonID string, confirmed bool) (bool, error) {
	entry, ok := v.entry(lessonID)
	if !ok {
		return false, ErrLessonNotFound
	}
	if !lesson.Interactive(entry) {
		return false, ErrNotPending
	}
	if !v.confirming.TryAdd(lessonID) {
		appLog.Debug("confirm ignored, already in flight", "lesson_id", lessonID)
		return false, ErrAlreadyConfirming
	}
	defer v.confirming.Remove(lessonID)

	res, err := v.api.ConfirmLesson(ctx, lessonID, confirmed)
	if err != nil {
		v.fail(ctx, "confirm", lessonID, err)
		return false, err
	}
	if res.Confirmed != confirmed {
		err := fmt.Errorf("confirm lesson %s: server answered confirmed=%t", lessonID, res.Confirmed)
		v.setError("something went wrong")
		appLog.Error("confirm not applied", err, "lesson_id", lessonID)
		return false, err
	}

	v.patch(lessonID, func(e model.LessonEntry) model.LessonEntry {
		return lesson.ApplyConfirmation(e, confirmed)
	})
	v.setError("")
	appLog.Info("lesson answered", "lesson_id", lessonID, "confirmed", confirmed)
	return true, nil
}

// DeleteLesson removes a lesson on the server and then from the view.
func (v *ScheduleView) DeleteLesson(ctx context.Context, lessonID string) error {
	if err := v.api.DeleteLesson(ctx, lessonID); err != nil {
		v.fail(ctx, "delete", lessonID, err)
		return err
	}
	v.mu.Lock()
	if key, i, ok := v.schedule.Find(lessonID); ok {
		day := v.schedule[key]
		rest := make([]model.LessonEntry, 0, len(day)-1)
		rest = append(rest, day[:i]...)
		rest = append(rest, day[i+1:]...)
		if len(rest) == 0 {
			delete(v.schedule, key)
		} else {
			v.schedule[key] = rest
		}
	}
	v.errMsg = ""
	v.mu.Unlock()
	appLog.Info("lesson deleted", "lesson_id", lessonID)
	return nil
}

// EditLesson updates a lesson and reloads the current week, since a time
// change can move it to another day.
func (v *ScheduleView) EditLesson(ctx context.Context, lessonID string, patch model.LessonPatch) error {
	if err := v.api.EditLesson(ctx, lessonID, patch); err != nil {
		v.fail(ctx, "edit", lessonID, err)
		return err
	}
	appLog.Info("lesson edited", "lesson_id", lessonID)
	_ = v.Refetch(ctx, v.Offset())
	return nil
}

// CreateLesson adds one lesson and reloads the current week.
func (v *ScheduleView) CreateLesson(ctx context.Context, draft model.LessonDraft) (string, error) {
	id, err := v.api.CreateLesson(ctx, draft)
	if err != nil {
		v.fail(ctx, "create", "", err)
		return "", err
	}
	_ = v.Refetch(ctx, v.Offset())
	return id, nil
}

// CreateSeries expands a recurring draft and creates each occurrence in
// order. It stops at the first failure and returns the IDs created so far.
func (v *ScheduleView) CreateSeries(ctx context.Context, series model.SeriesDraft) ([]string, error) {
	drafts, err := lesson.ExpandSeries(series)
	if err != nil {
		v.setError("invalid lesson details")
		return nil, err
	}

	ids := make([]string, 0, len(drafts))
	for _, d := range drafts {
		id, err := v.api.CreateLesson(ctx, d)
		if err != nil {
			v.fail(ctx, "create series", "", err)
			if len(ids) > 0 {
				_ = v.Refetch(ctx, v.Offset())
			}
			return ids, err
		}
		ids = append(ids, id)
	}
	appLog.Info("lesson series created", "count", len(ids), "rrule", series.RRule)
	_ = v.Refetch(ctx, v.Offset())
	return ids, nil
}

// Wait blocks until background refetches triggered by conflicts finish.
func (v *ScheduleView) Wait() { v.bg.Wait() }

func (v *ScheduleView) entry(lessonID string) (model.LessonEntry, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	key, i, ok := v.schedule.Find(lessonID)
	if !ok {
		return model.LessonEntry{}, false
	}
	return v.schedule[key][i], true
}

// patch replaces one entry in its day. The day slice is copied so snapshots
// handed out earlier keep their contents.
func (v *ScheduleView) patch(lessonID string, fn func(model.LessonEntry) model.LessonEntry) {
	v.mu.Lock()
	defer v.mu.Unlock()
	key, i, ok := v.schedule.Find(lessonID)
	if !ok {
		return
	}
	day := make([]model.LessonEntry, len(v.schedule[key]))
	copy(day, v.schedule[key])
	day[i] = fn(day[i])
	v.schedule[key] = day
}

func (v *ScheduleView) setError(msg string) {
	v.mu.Lock()
	v.errMsg = msg
	v.mu.Unlock()
}

// fail records a failed mutation and schedules recovery for conflicts.
func (v *ScheduleView) fail(ctx context.Context, op, lessonID string, err error) {
	kind := api.KindOf(err)
	v.setError(api.Message(err))
	appLog.Error("lesson "+op+" failed", err, "lesson_id", lessonID, "kind", kind)

	if kind != api.KindConflict {
		return
	}
	offset := v.Offset()
	bgCtx := context.WithoutCancel(ctx)
	v.bg.Add(1)
	go func() {
		defer v.bg.Done()
		if err := v.Refetch(bgCtx, offset); err != nil {
			appLog.Error("conflict refetch failed", err, "lesson_id", lessonID)
		}
	}()
}
