package web

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"tutorcal/internal/config"
	"tutorcal/internal/model"
	"tutorcal/internal/view"
)

var testNow = time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC) // Wednesday

type fakeAPI struct {
	mu       sync.Mutex
	records  []model.LessonRecord
	ranges   [][2]time.Time
	answered map[string]bool
}

func (f *fakeAPI) ListLessons(_ context.Context, from, to time.Time) ([]model.LessonRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ranges = append(f.ranges, [2]time.Time{from, to})
	return f.records, nil
}

func (f *fakeAPI) ConfirmLesson(_ context.Context, id string, confirmed bool) (model.ConfirmResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.answered == nil {
		f.answered = make(map[string]bool)
	}
	f.answered[id] = confirmed
	return model.ConfirmResult{LessonID: id, Confirmed: confirmed}, nil
}

func (f *fakeAPI) DeleteLesson(context.Context, string) error { return nil }
func (f *fakeAPI) EditLesson(context.Context, string, model.LessonPatch) error { return nil }
func (f *fakeAPI) CreateLesson(context.Context, model.LessonDraft) (string, error) { return "", nil }

func boolPtr(b bool) *bool { return &b }

func newTestServer(t *testing.T, cfg *config.Config, preview string) (*Server, *fakeAPI) {
	t.Helper()
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	fake := &fakeAPI{records: []model.LessonRecord{
		{
			LessonID: "L1", StartTime: "2024-01-09T10:00:00Z", EndTime: "2024-01-09T11:00:00Z",
			Address: "Main St 1", LessonType: "Math",
			Attendances: []model.Attendance{{StudentName: "Ada", StudentSurname: "L"}},
		},
		{
			LessonID: "L2", StartTime: "2024-01-11T08:00:00Z", EndTime: "2024-01-11T09:30:00Z",
			Attendances: []model.Attendance{{StudentName: "Bo", Confirmed: boolPtr(true)}},
		},
	}}
	v := view.New(fake, view.Options{
		Location:  time.UTC,
		WeekStart: time.Monday,
		Now:       func() time.Time { return testNow },
	})
	srv := NewServer(cfg, v, preview)
	srv.now = func() time.Time { return testNow }
	return srv, fake
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestScheduleEndpoint(t *testing.T) {
	srv, fake := newTestServer(t, nil, "")

	rec := do(t, srv.Handler(), http.MethodGet, "/api/schedule", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	var resp scheduleResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Offset != 0 || !resp.RangeStart.Equal(time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("offset/range = %d %v", resp.Offset, resp.RangeStart)
	}
	day := resp.Schedule["2024-01-09"]
	if len(day) != 1 || day[0].LessonID != "L1" || day[0].StartTimestamp != 36000000 {
		t.Errorf("unexpected day: %+v", day)
	}
	if day[0].Status != model.StatusPending {
		t.Errorf("status = %q", day[0].Status)
	}

	rec = do(t, srv.Handler(), http.MethodGet, "/api/schedule?offset=1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	last := fake.ranges[len(fake.ranges)-1]
	if !last[0].Equal(time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("offset=1 fetched from %v", last[0])
	}

	rec = do(t, srv.Handler(), http.MethodGet, "/api/schedule?offset=soon", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad offset status = %d", rec.Code)
	}
}

func TestConfirmEndpoint(t *testing.T) {
	srv, fake := newTestServer(t, nil, "")
	h := srv.Handler()
	do(t, h, http.MethodGet, "/api/schedule", "")

	tests := []struct {
		name   string
		target string
		body   string
		want   int
	}{
		{"bad body", "/api/lessons/L1/confirm", `{}`, http.StatusBadRequest},
		{"unknown lesson", "/api/lessons/L9/confirm", `{"confirmed":true}`, http.StatusNotFound},
		{"already confirmed", "/api/lessons/L2/confirm", `{"confirmed":false}`, http.StatusConflict},
		{"pending", "/api/lessons/L1/confirm", `{"confirmed":true}`, http.StatusOK},
		{"no longer pending", "/api/lessons/L1/confirm", `{"confirmed":false}`, http.StatusConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, tt.target, tt.body)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d (body %s)", rec.Code, tt.want, rec.Body)
			}
		})
	}

	if got, ok := fake.answered["L1"]; !ok || !got {
		t.Errorf("backend answered = %v", fake.answered)
	}

	rec := do(t, h, http.MethodGet, "/api/schedule", "")
	var resp scheduleResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if got := resp.Schedule["2024-01-09"][0].Status; got != model.StatusConfirmed {
		t.Errorf("status after confirm = %q", got)
	}
}

func TestCalendarPage(t *testing.T) {
	srv, _ := newTestServer(t, nil, "")
	rec := do(t, srv.Handler(), http.MethodGet, "/calendar", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{
		`data-ready="true"`,
		`data-lesson-id="L1"`,
		`data-date="2024-01-09"`,
		`lesson pending`,
		`lesson confirmed`,
		"Ada L",
		"top: 400.00px",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("calendar missing %q", want)
		}
	}
}

func TestICSEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, nil, "")
	rec := do(t, srv.Handler(), http.MethodGet, "/calendar.ics", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/calendar") {
		t.Errorf("content type = %q", ct)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "L1@tutorcal") || !strings.Contains(body, "L2@tutorcal") {
		t.Errorf("feed missing events:\n%s", body)
	}
}

func TestPreview(t *testing.T) {
	path := filepath.Join(t.TempDir(), "preview.png")
	srv, _ := newTestServer(t, nil, path)

	if rec := do(t, srv.Handler(), http.MethodGet, "/preview.png", ""); rec.Code != http.StatusNotFound {
		t.Errorf("missing preview status = %d", rec.Code)
	}
	if err := os.WriteFile(path, []byte("\x89PNG\r\n\x1a\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if rec := do(t, srv.Handler(), http.MethodGet, "/preview.png", ""); rec.Code != http.StatusOK {
		t.Errorf("preview status = %d", rec.Code)
	}
}

func TestBasicAuth(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.BasicAuth = &config.BasicAuthConfig{Username: "tutor", Password: "s3cret"}
	srv, _ := newTestServer(t, cfg, "")
	h := srv.Handler()

	if rec := do(t, h, http.MethodGet, "/health", ""); rec.Code != http.StatusOK {
		t.Errorf("/health status = %d", rec.Code)
	}
	rec := do(t, h, http.MethodGet, "/api/schedule", "")
	if rec.Code != http.StatusUnauthorized || rec.Header().Get("WWW-Authenticate") == "" {
		t.Errorf("unauthenticated status = %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/schedule", nil)
	req.SetBasicAuth("tutor", "s3cret")
	ok := httptest.NewRecorder()
	h.ServeHTTP(ok, req)
	if ok.Code != http.StatusOK {
		t.Errorf("authenticated status = %d", ok.Code)
	}
}
