package notify

import (
	"context"
	"sort"
	"sync"
	"time"

	appLog "tutorcal/internal/log"
)

// Content is what the user sees when a reminder fires.
type Content struct {
	Title string
	Body  string
	Data  map[string]string
}

// Trigger fires once after Seconds unless Repeats is set.
type Trigger struct {
	Seconds int64
	Repeats bool
}

// Request registers one notification under a caller-chosen ID.
type Request struct {
	ID      string
	Content Content
	Trigger Trigger
}

// Scheduled describes a notification waiting to fire.
type Scheduled struct {
	Identifier string
	FireAt     time.Time
}

// Platform is the device notification facility.
type Platform interface {
	RequestPermissions(ctx context.Context) (bool, error)
	Schedule(ctx context.Context, req Request) (string, error)
	Cancel(ctx context.Context, id string) error
	ListScheduled(ctx context.Context) ([]Scheduled, error)
}

// LocalPlatform delivers notifications from in-process timers. Scheduling
// an existing ID replaces the pending timer.
type LocalPlatform struct {
	// Deliver is called when a notification fires; nil logs it.
	Deliver func(Request)

	mu      sync.Mutex
	granted bool
	unit    time.Duration
	now     func() time.Time
	timers  map[string]*localTimer
}

type localTimer struct {
	t      *time.Timer
	fireAt time.Time
}

func NewLocalPlatform(deliver func(Request)) *LocalPlatform {
	return &LocalPlatform{
		Deliver: deliver,
		granted: true,
		unit:    time.Second,
		now:     time.Now,
		timers:  make(map[string]*localTimer),
	}
}

// SetPermission toggles what RequestPermissions answers.
func (p *LocalPlatform) SetPermission(granted bool) {
	p.mu.Lock()
	p.granted = granted
	p.mu.Unlock()
}

func (p *LocalPlatform) RequestPermissions(context.Context) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.granted, nil
}

func (p *LocalPlatform) Schedule(_ context.Context, req Request) (string, error) {
	d := time.Duration(req.Trigger.Seconds) * p.unit

	p.mu.Lock()
	defer p.mu.Unlock()
	if old, ok := p.timers[req.ID]; ok {
		old.t.Stop()
	}
	lt := &localTimer{fireAt: p.now().Add(d)}
	lt.t = time.AfterFunc(d, func() { p.fire(req, lt) })
	p.timers[req.ID] = lt
	return req.ID, nil
}

func (p *LocalPlatform) fire(req Request, lt *localTimer) {
	p.mu.Lock()
	if cur, ok := p.timers[req.ID]; !ok || cur != lt {
		p.mu.Unlock()
		return
	}
	if req.Trigger.Repeats {
		d := time.Duration(req.Trigger.Seconds) * p.unit
		lt.fireAt = p.now().Add(d)
		lt.t.Reset(d)
	} else {
		delete(p.timers, req.ID)
	}
	deliver := p.Deliver
	p.mu.Unlock()

	if deliver == nil {
		appLog.Info("reminder", "id", req.ID, "title", req.Content.Title, "body", req.Content.Body)
		return
	}
	deliver(req)
}

func (p *LocalPlatform) Cancel(_ context.Context, id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if lt, ok := p.timers[id]; ok {
		lt.t.Stop()
		delete(p.timers, id)
	}
	return nil
}

func (p *LocalPlatform) ListScheduled(context.Context) ([]Scheduled, error) {
	p.mu.Lock()
	out := make([]Scheduled, 0, len(p.timers))
	for id, lt := range p.timers {
		out = append(out, Scheduled{Identifier: id, FireAt: lt.fireAt})
	}
	p.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].FireAt.Before(out[j].FireAt) })
	return out, nil
}

// Close stops every pending timer.
func (p *LocalPlatform) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for id, lt := range p.timers {
		lt.t.Stop()
		delete(p.timers, id)
	}
}
