package notify

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	appLog "tutorcal/internal/log"
	"tutorcal/internal/model"
)

const (
	// ReminderPrefix tags every lesson reminder this package registers.
	ReminderPrefix = "lesson-reminder-"
	// DefaultLead is how long before a lesson its reminder fires.
	DefaultLead = time.Hour
)

var reminderNamespace = uuid.MustParse("6f1c2a8e-4b0d-5c3e-9a7f-2d8e1b4c6a90")

// NotificationID derives the reminder ID for a lesson. The same lesson
// always maps to the same ID, so a rerun replaces instead of duplicating.
func NotificationID(lessonID string) string {
	return ReminderPrefix + uuid.NewSHA1(reminderNamespace, []byte(lessonID)).String()
}

// Scheduler keeps one reminder per upcoming lesson registered on a Platform.
type Scheduler struct {
	platform Platform

	Lead     time.Duration
	Location *time.Location
	Now      func() time.Time

	run sync.Mutex
	bg  sync.WaitGroup
}

func NewScheduler(p Platform, lead time.Duration, loc *time.Location) *Scheduler {
	if lead <= 0 {
		lead = DefaultLead
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Scheduler{platform: p, Lead: lead, Location: loc, Now: time.Now}
}

type candidate struct {
	entry model.LessonEntry
	start time.Time
}

// Upcoming flattens a schedule into lessons starting after now, earliest
// first, one per lesson ID.
func Upcoming(s model.Schedule, now time.Time) []model.LessonEntry {
	seen := make(map[string]struct{})
	cands := make([]candidate, 0, s.Len())
	for _, day := range s {
		for _, e := range day {
			if !e.Start.After(now) {
				continue
			}
			if _, dup := seen[e.LessonID]; dup {
				continue
			}
			seen[e.LessonID] = struct{}{}
			cands = append(cands, candidate{entry: e, start: e.Start})
		}
	}
	sort.SliceStable(cands, func(i, j int) bool {
		if cands[i].start.Equal(cands[j].start) {
			return cands[i].entry.LessonID < cands[j].entry.LessonID
		}
		return cands[i].start.Before(cands[j].start)
	})
	out := make([]model.LessonEntry, len(cands))
	for i, c := range cands {
		out[i] = c.entry
	}
	return out
}

// Run cancels every previously registered lesson reminder and registers one
// for each upcoming lesson whose reminder time is still ahead. A failure on
// one lesson is logged and does not stop the others. It returns the number
// of reminders registered.
func (s *Scheduler) Run(ctx context.Context, sched model.Schedule) (int, error) {
	s.run.Lock()
	defer s.run.Unlock()

	if err := s.cancelAll(ctx); err != nil {
		return 0, err
	}

	granted, err := s.platform.RequestPermissions(ctx)
	if err != nil {
		return 0, fmt.Errorf("notify: request permissions: %w", err)
	}
	if !granted {
		appLog.Warn("notification permission denied; reminders not scheduled")
		return 0, nil
	}

	now := s.Now()
	count := 0
	for _, e := range Upcoming(sched, now) {
		fireAt := e.Start.Add(-s.Lead)
		secs := secondsUntil(fireAt.Sub(now))
		if secs <= 0 {
			appLog.Debug("reminder window passed", "lesson_id", e.LessonID, "start", e.Start.Format(time.RFC3339))
			continue
		}

		req := Request{
			ID:      NotificationID(e.LessonID),
			Content: s.content(e),
			Trigger: Trigger{Seconds: secs},
		}
		if _, err := s.platform.Schedule(ctx, req); err != nil {
			appLog.Error("reminder schedule failed", err, "lesson_id", e.LessonID)
			continue
		}
		count++
	}
	appLog.Info("reminders scheduled", "count", count)
	return count, nil
}

// secondsUntil rounds d up to whole seconds; anything at or below zero
// has already passed.
func secondsUntil(d time.Duration) int64 {
	if d <= 0 {
		return 0
	}
	return int64((d + time.Second - 1) / time.Second)
}

// Dispatch runs the scheduler in the background; errors are only logged.
func (s *Scheduler) Dispatch(ctx context.Context, sched model.Schedule) {
	s.bg.Add(1)
	go func() {
		defer s.bg.Done()
		if _, err := s.Run(ctx, sched); err != nil {
			appLog.Error("reminder scheduling failed", err)
		}
	}()
}

// Wait blocks until dispatched runs finish.
func (s *Scheduler) Wait() { s.bg.Wait() }

func (s *Scheduler) cancelAll(ctx context.Context) error {
	existing, err := s.platform.ListScheduled(ctx)
	if err != nil {
		return fmt.Errorf("notify: list scheduled: %w", err)
	}
	for _, n := range existing {
		if !strings.HasPrefix(n.Identifier, ReminderPrefix) {
			continue
		}
		if err := s.platform.Cancel(ctx, n.Identifier); err != nil {
			appLog.Error("reminder cancel failed", err, "id", n.Identifier)
		}
	}
	return nil
}

func (s *Scheduler) content(e model.LessonEntry) Content {
	start := e.Start.In(s.Location)
	title := "Lesson in " + humanLead(s.Lead)
	body := start.Format("15:04")
	if e.Address != "" {
		body += " at " + e.Address
	}
	if e.Description != "" {
		body += ": " + e.Description
	}
	return Content{
		Title: title,
		Body:  body,
		Data:  map[string]string{"lessonId": e.LessonID, "startTime": e.Start.UTC().Format(time.RFC3339)},
	}
}

func humanLead(d time.Duration) string {
	if d%time.Hour == 0 {
		h := int(d / time.Hour)
		if h == 1 {
			return "1 hour"
		}
		return fmt.Sprintf("%d hours", h)
	}
	return fmt.Sprintf("%d minutes", int(d/time.Minute))
}
