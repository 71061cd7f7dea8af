package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"tutorcal/internal/api"
	"tutorcal/internal/config"
	"tutorcal/internal/ics"
	appLog "tutorcal/internal/log"
	"tutorcal/internal/model"
	"tutorcal/internal/view"
)

// ScheduleSource is what the HTTP layer needs from a schedule view.
type ScheduleSource interface {
	Schedule() model.Schedule
	Offset() int
	Loading() bool
	Error() string
	ConfirmingLessons() []string
	Range(offset int) (time.Time, time.Time)
	Refetch(ctx context.Context, offset int) error
	ConfirmMeeting(ctx context.Context, lessonID string, confirmed bool) (bool, error)
}

// Server exposes the week view as JSON, HTML, iCalendar and a PNG preview.
type Server struct {
	cfg         *config.Config
	src         ScheduleSource
	previewPath string
	now         func() time.Time
	mux         *http.ServeMux
}

// NewServer constructs a Server. previewPath is the PNG written by the
// capture job; an empty path disables /preview.png.
func NewServer(cfg *config.Config, src ScheduleSource, previewPath string) *Server {
	s := &Server{
		cfg:         cfg,
		src:         src,
		previewPath: previewPath,
		now:         time.Now,
		mux:         http.NewServeMux(),
	}
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	// An empty username or password disables auth.
	return s.cfg.BasicAuth.Username != "" && s.cfg.BasicAuth.Password != ""
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="tutorcal", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /api/schedule", s.handleSchedule)
	s.mux.HandleFunc("POST /api/lessons/{id}/confirm", s.handleConfirm)
	s.mux.HandleFunc("GET /calendar", s.handleCalendar)
	s.mux.HandleFunc("GET /calendar.ics", s.handleICS)
	s.mux.HandleFunc("GET /preview.png", s.handlePreview)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// scheduleResponse is the JSON shape for /api/schedule.
type scheduleResponse struct {
	Offset     int            `json:"offset"`
	RangeStart time.Time      `json:"range_start"`
	RangeEnd   time.Time      `json:"range_end"`
	Timezone   string         `json:"timezone"`
	WeekStart  string         `json:"week_start"`
	Loading    bool           `json:"loading"`
	Error      string         `json:"error,omitempty"`
	Confirming []string       `json:"confirming"`
	Schedule   model.Schedule `json:"schedule"`
}

// handleSchedule returns the converted schedule for a week.
//
// GET /api/schedule?offset=-1
//   - offset: weeks relative to the current one (default: the view's week)
func (s *Server) handleSchedule(w http.ResponseWriter, r *http.Request) {
	offset, err := s.ensureWeek(r)
	if err != nil {
		writeError(w, statusFor(err), messageFor(err))
		return
	}

	from, to := s.src.Range(offset)
	sched := s.src.Schedule()
	if sched == nil {
		sched = model.Schedule{}
	}
	writeJSON(w, http.StatusOK, scheduleResponse{
		Offset:     offset,
		RangeStart: from,
		RangeEnd:   to,
		Timezone:   s.cfg.Timezone,
		WeekStart:  s.cfg.WeekStart,
		Loading:    s.src.Loading(),
		Error:      s.src.Error(),
		Confirming: s.src.ConfirmingLessons(),
		Schedule:   sched,
	})
}

type confirmRequest struct {
	Confirmed *bool `json:"confirmed"`
}

type confirmResponse struct {
	LessonID  string `json:"lesson_id"`
	Confirmed bool   `json:"confirmed"`
}

// handleConfirm answers a pending lesson.
//
// POST /api/lessons/{id}/confirm  {"confirmed": true}
func (s *Server) handleConfirm(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "lesson id is required")
		return
	}

	var req confirmRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&req); err != nil || req.Confirmed == nil {
		writeError(w, http.StatusBadRequest, `body must be {"confirmed": true|false}`)
		return
	}

	ok, err := s.src.ConfirmMeeting(r.Context(), id, *req.Confirmed)
	if err != nil {
		appLog.Info("confirm request failed", "lesson_id", id, "error", err.Error())
		writeError(w, statusFor(err), messageFor(err))
		return
	}
	if !ok {
		writeError(w, http.StatusBadGateway, "something went wrong")
		return
	}
	writeJSON(w, http.StatusOK, confirmResponse{LessonID: id, Confirmed: *req.Confirmed})
}

// handleICS serves the current week as an iCalendar feed.
func (s *Server) handleICS(w http.ResponseWriter, r *http.Request) {
	if _, err := s.ensureWeek(r); err != nil {
		writeError(w, statusFor(err), messageFor(err))
		return
	}
	body := ics.Export(s.src.Schedule(), "Lessons", s.now())
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `inline; filename="lessons.ics"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

// handlePreview serves the last PNG written by the capture job.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	if s.previewPath == "" {
		http.NotFound(w, r)
		return
	}
	// ServeFile maps missing files to 404.
	http.ServeFile(w, r, s.previewPath)
}

// ensureWeek makes sure the view holds the week requested by ?offset and
// returns that offset. Without the parameter the view's week is used and
// only fetched when nothing has been loaded yet.
func (s *Server) ensureWeek(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("offset")
	offset := s.src.Offset()
	if raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return 0, errBadOffset
		}
		offset = n
	}
	if offset != s.src.Offset() || s.src.Schedule() == nil {
		if err := s.src.Refetch(r.Context(), offset); err != nil {
			return offset, err
		}
	}
	return offset, nil
}

var errBadOffset = errors.New("offset must be an integer")

// statusFor maps view and client errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, errBadOffset):
		return http.StatusBadRequest
	case errors.Is(err, view.ErrLessonNotFound):
		return http.StatusNotFound
	case errors.Is(err, view.ErrNotPending), errors.Is(err, view.ErrAlreadyConfirming):
		return http.StatusConflict
	}
	switch api.KindOf(err) {
	case api.KindAuth:
		return http.StatusUnauthorized
	case api.KindConflict:
		return http.StatusConflict
	case api.KindTimeout:
		return http.StatusGatewayTimeout
	case api.KindNetwork, api.KindServer:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func messageFor(err error) string {
	switch {
	case errors.Is(err, errBadOffset),
		errors.Is(err, view.ErrLessonNotFound),
		errors.Is(err, view.ErrNotPending),
		errors.Is(err, view.ErrAlreadyConfirming):
		return err.Error()
	}
	return api.Message(err)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
