package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/go-playground/validator/v10"
)

// Kind classifies a failed request for messaging and recovery.
type Kind string

const (
	KindNetwork  Kind = "network"
	KindTimeout  Kind = "timeout"
	KindAuth     Kind = "auth"
	KindConflict Kind = "conflict"
	KindServer   Kind = "server"
	KindUnknown  Kind = "unknown"
)

var (
	ErrNoSession      = errors.New("no active session")
	ErrSessionExpired = errors.New("session expired")

	errEndBeforeStart = errors.New("end time must be after start time")
)

// Error is returned by every Client method that fails.
type Error struct {
	Op     string // e.g. "confirm lesson"
	Kind   Kind
	Status int // HTTP status, 0 when no response was received
	Err    error
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: %s (status %d): %v", e.Op, e.Kind, e.Status, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf classifies any error. Errors that are not *Error are classified
// by their cause; anything unrecognized, including parse failures, is
// KindUnknown.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return transportKind(err)
}

func transportKind(err error) Kind {
	if errors.Is(err, ErrNoSession) || errors.Is(err, ErrSessionExpired) {
		return KindAuth
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return KindTimeout
		}
		return KindNetwork
	}
	return KindUnknown
}

func statusKind(status int) Kind {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return KindAuth
	case status == http.StatusConflict:
		return KindConflict
	case status >= 500:
		return KindServer
	default:
		return KindUnknown
	}
}

// IsConflict reports whether err means local state is stale.
func IsConflict(err error) bool { return KindOf(err) == KindConflict }

// Message turns err into the banner text shown to the user.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		return "invalid lesson details"
	}
	switch KindOf(err) {
	case KindNetwork:
		return "no connection, changes not saved"
	case KindTimeout:
		return "the server took too long to respond"
	case KindAuth:
		return "your session has expired, please sign in again"
	case KindConflict:
		return "the lesson was changed elsewhere, refreshing"
	case KindServer:
		return "server error, please try again later"
	default:
		return "something went wrong"
	}
}
