package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"tutorcal/internal/model"
)

func newTestClient(t *testing.T, h http.HandlerFunc) (*Client, *Session) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	sess := NewSession("tok")
	c, err := NewClient(srv.URL+"/v1/", sess, time.Second)
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	return c, sess
}

func TestListLessons(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/v1/lesson" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if got := r.URL.Query().Get("startTime"); got != "2024-01-08T00:00:00Z" {
			t.Errorf("startTime = %q", got)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("Authorization = %q", got)
		}
		_, _ = w.Write([]byte(`[{"lessonId":"L1","startTime":"2024-01-08T10:00:00Z","endTime":"2024-01-08T11:00:00Z",
			"address":"Main St","description":"algebra","attendances":[{"studentName":"A","studentSurname":"B","confirmed":null}]}]`))
	})

	from := time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC)
	recs, err := c.ListLessons(context.Background(), from, from.AddDate(0, 0, 7))
	if err != nil {
		t.Fatalf("ListLessons() error = %v", err)
	}
	if len(recs) != 1 || recs[0].LessonID != "L1" || recs[0].Attendances[0].Confirmed != nil {
		t.Errorf("unexpected records: %+v", recs)
	}
}

func TestConfirmLesson(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut || r.URL.Path != "/v1/lesson/L%201/confirm" && r.URL.Path != "/v1/lesson/L 1/confirm" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var body map[string]bool
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || !body["confirmed"] {
			t.Errorf("body = %v, err = %v", body, err)
		}
		_, _ = w.Write([]byte(`{"lessonId":"L 1","confirmed":true,"updatedAt":"2024-01-08T09:00:00Z"}`))
	})

	res, err := c.ConfirmLesson(context.Background(), "L 1", true)
	if err != nil {
		t.Fatalf("ConfirmLesson() error = %v", err)
	}
	if !res.Confirmed || res.LessonID != "L 1" || res.UpdatedAt.IsZero() {
		t.Errorf("unexpected result: %+v", res)
	}
}

func TestStatusClassification(t *testing.T) {
	tests := []struct {
		status int
		want   Kind
	}{
		{http.StatusUnauthorized, KindAuth},
		{http.StatusForbidden, KindAuth},
		{http.StatusConflict, KindConflict},
		{http.StatusInternalServerError, KindServer},
		{http.StatusBadGateway, KindServer},
		{http.StatusBadRequest, KindUnknown},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "nope", tt.status)
			})
			err := c.DeleteLesson(context.Background(), "L1")
			if got := KindOf(err); got != tt.want {
				t.Errorf("KindOf() = %s, want %s (err %v)", got, tt.want, err)
			}
			var apiErr *Error
			if !errors.As(err, &apiErr) || apiErr.Status != tt.status {
				t.Errorf("expected *Error with status %d, got %v", tt.status, err)
			}
		})
	}
}

func TestUnauthorizedClearsSession(t *testing.T) {
	c, sess := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	cleared := make(chan string, 1)
	unsub := sess.Subscribe(func(tok string) { cleared <- tok })
	defer unsub()

	_, _ = c.ListLessons(context.Background(), time.Now(), time.Now())
	select {
	case tok := <-cleared:
		if tok != "" {
			t.Errorf("subscriber saw %q, want empty token", tok)
		}
	default:
		t.Fatal("subscriber not notified")
	}

	// A cleared session fails fast without reaching the server.
	_, err := c.ListLessons(context.Background(), time.Now(), time.Now())
	if !errors.Is(err, ErrNoSession) || KindOf(err) != KindAuth {
		t.Errorf("err = %v, want ErrNoSession/auth", err)
	}
}

func TestNetworkAndTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	c, err := NewClient(srv.URL, NewSession("tok"), 20*time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}
	err = c.DeleteLesson(context.Background(), "L1")
	if KindOf(err) != KindTimeout {
		t.Errorf("slow server: KindOf = %s (%v), want timeout", KindOf(err), err)
	}
	srv.Close()

	err = c.DeleteLesson(context.Background(), "L1")
	if KindOf(err) != KindNetwork {
		t.Errorf("closed server: KindOf = %s (%v), want network", KindOf(err), err)
	}
	if Message(err) != "no connection, changes not saved" {
		t.Errorf("Message = %q", Message(err))
	}
}

func TestExpiredJWTFailsFast(t *testing.T) {
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
	}).SignedString([]byte("secret"))
	if err != nil {
		t.Fatal(err)
	}
	called := false
	c, sess := newTestClient(t, func(w http.ResponseWriter, r *http.Request) { called = true })
	sess.Set(tok)

	err = c.DeleteLesson(context.Background(), "L1")
	if !errors.Is(err, ErrSessionExpired) {
		t.Errorf("err = %v, want ErrSessionExpired", err)
	}
	if called {
		t.Error("request reached the server with an expired token")
	}
	if NewSession("opaque-token").Expired(time.Now()) {
		t.Error("opaque tokens must not count as expired")
	}
}

func TestEditAndCreateValidation(t *testing.T) {
	calls := 0
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		if r.Method == http.MethodPost {
			_, _ = w.Write([]byte(`{"lessonId":"new-1"}`))
		}
	})
	ctx := context.Background()
	start := time.Date(2024, 1, 8, 10, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)
	empty := ""

	if err := c.EditLesson(ctx, "L1", model.LessonPatch{StartTime: &start}); err == nil {
		t.Error("start without end should fail validation")
	}
	if err := c.EditLesson(ctx, "L1", model.LessonPatch{StartTime: &end, EndTime: &start}); err == nil {
		t.Error("inverted times should fail")
	}
	err := c.EditLesson(ctx, "L1", model.LessonPatch{Address: &empty})
	if err == nil || Message(err) != "invalid lesson details" {
		t.Errorf("empty address: err = %v, message %q", err, Message(err))
	}
	if calls != 0 {
		t.Fatalf("invalid edits reached the server %d times", calls)
	}
	if err := c.EditLesson(ctx, "L1", model.LessonPatch{StartTime: &start, EndTime: &end}); err != nil {
		t.Errorf("valid edit: %v", err)
	}

	if _, err := c.CreateLesson(ctx, model.LessonDraft{StartTime: start, EndTime: end, Address: "x"}); err == nil {
		t.Error("draft without students should fail validation")
	}
	id, err := c.CreateLesson(ctx, model.LessonDraft{StartTime: start, EndTime: end, Address: "x", StudentIDs: []string{"s1"}})
	if err != nil || id != "new-1" {
		t.Errorf("CreateLesson() = %q, %v", id, err)
	}
}

func TestMessageKinds(t *testing.T) {
	if got := Message(nil); got != "" {
		t.Errorf("Message(nil) = %q", got)
	}
	if got := Message(&Error{Kind: KindConflict}); got == "" || got == Message(&Error{Kind: KindUnknown}) {
		t.Errorf("conflict message not distinct: %q", got)
	}
	if KindOf(context.DeadlineExceeded) != KindTimeout {
		t.Error("deadline should classify as timeout")
	}
	if KindOf(errors.New("parse")) != KindUnknown {
		t.Error("plain errors should classify as unknown")
	}
}
