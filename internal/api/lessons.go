package api

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"tutorcal/internal/model"
)

// ListLessons fetches lessons whose start lies in [from, to).
//
// GET /lesson?startTime=...&endTime=...
func (c *Client) ListLessons(ctx context.Context, from, to time.Time) ([]model.LessonRecord, error) {
	q := url.Values{}
	q.Set("startTime", from.UTC().Format(time.RFC3339))
	q.Set("endTime", to.UTC().Format(time.RFC3339))

	var out []model.LessonRecord
	if err := c.do(ctx, "list lessons", http.MethodGet, "/lesson", q, nil, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []model.LessonRecord{}
	}
	return out, nil
}

type confirmRequest struct {
	Confirmed bool `json:"confirmed"`
}

// ConfirmLesson answers a lesson invitation.
//
// PUT /lesson/{id}/confirm
func (c *Client) ConfirmLesson(ctx context.Context, lessonID string, confirmed bool) (model.ConfirmResult, error) {
	var out model.ConfirmResult
	path := "/lesson/" + url.PathEscape(lessonID) + "/confirm"
	err := c.do(ctx, "confirm lesson", http.MethodPut, path, nil, confirmRequest{Confirmed: confirmed}, &out)
	return out, err
}

type deleteRequest struct {
	LessonID string `json:"lessonId"`
}

// DeleteLesson removes a lesson.
//
// POST /delete-lesson
func (c *Client) DeleteLesson(ctx context.Context, lessonID string) error {
	return c.do(ctx, "delete lesson", http.MethodPost, "/delete-lesson", nil, deleteRequest{LessonID: lessonID}, nil)
}

// EditLesson applies a partial update.
//
// PATCH /lesson/{id}
func (c *Client) EditLesson(ctx context.Context, lessonID string, patch model.LessonPatch) error {
	if err := c.validate.Struct(patch); err != nil {
		return &Error{Op: "edit lesson", Kind: KindUnknown, Err: err}
	}
	if patch.StartTime != nil && patch.EndTime != nil && !patch.EndTime.After(*patch.StartTime) {
		return &Error{Op: "edit lesson", Kind: KindUnknown, Err: errEndBeforeStart}
	}
	return c.do(ctx, "edit lesson", http.MethodPatch, "/lesson/"+url.PathEscape(lessonID), nil, patch, nil)
}

type createResponse struct {
	LessonID string `json:"lessonId"`
}

// CreateLesson adds a single lesson and returns its ID.
//
// POST /lesson
func (c *Client) CreateLesson(ctx context.Context, draft model.LessonDraft) (string, error) {
	if err := c.validate.Struct(draft); err != nil {
		return "", &Error{Op: "create lesson", Kind: KindUnknown, Err: err}
	}
	var out createResponse
	if err := c.do(ctx, "create lesson", http.MethodPost, "/lesson", nil, draft, &out); err != nil {
		return "", err
	}
	return out.LessonID, nil
}
