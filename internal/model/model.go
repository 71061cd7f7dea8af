package model

import "time"

// Attendance is one student's place in a lesson. Confirmed is nil until the
// student has answered.
type Attendance struct {
	StudentName    string `json:"studentName"`
	StudentSurname string `json:"studentSurname"`
	Confirmed      *bool  `json:"confirmed"`
}

// LessonRecord is a lesson as returned by GET /lesson.
// StartTime/EndTime are ISO-8601 strings and are parsed during conversion,
// so a malformed timestamp surfaces as a conversion error.
type LessonRecord struct {
	LessonID    string       `json:"lessonId"`
	StartTime   string       `json:"startTime"`
	EndTime     string       `json:"endTime"`
	Address     string       `json:"address"`
	Description string       `json:"description"`
	LessonType  string       `json:"lessonType,omitempty"`
	Attendances []Attendance `json:"attendances"`
}

// Status is the per-lesson confirmation state.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusRejected  Status = "rejected"
)

// LessonEntry is a LessonRecord normalized for a single calendar day.
type LessonEntry struct {
	LessonID    string       `json:"lessonId"`
	Address     string       `json:"address"`
	Description string       `json:"description"`
	LessonType  string       `json:"lessonType,omitempty"`
	Attendances []Attendance `json:"attendances"`

	// Start / End are the absolute instants in the converter's location.
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`

	// StartTimestamp / EndTimestamp are milliseconds since local midnight.
	StartTimestamp int64 `json:"startTimestamp"`
	EndTimestamp   int64 `json:"endTimestamp"`

	// StartTime / EndTime are "HH:mm".
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`

	// FullyConfirmed keeps the legacy tri-state: nil when every attendance is
	// confirmed or every attendance is unanswered, false otherwise.
	FullyConfirmed *bool `json:"fullyConfirmed"`

	// Status separates the cases FullyConfirmed collapses.
	Status Status `json:"status"`

	// Answered is true once any attendance holds an explicit answer.
	Answered bool `json:"answered"`
}

// Schedule maps a "YYYY-MM-DD" date key to that day's lessons in input order.
type Schedule map[string][]LessonEntry

// Len returns the total number of entries across all days.
func (s Schedule) Len() int {
	n := 0
	for _, day := range s {
		n += len(day)
	}
	return n
}

// Find locates a lesson by ID, returning its date key and index in the day.
func (s Schedule) Find(lessonID string) (string, int, bool) {
	for key, day := range s {
		for i := range day {
			if day[i].LessonID == lessonID {
				return key, i, true
			}
		}
	}
	return "", 0, false
}

// Clone copies the map and each day's slice so a patch on the copy does not
// leak into readers of the original.
func (s Schedule) Clone() Schedule {
	if s == nil {
		return nil
	}
	out := make(Schedule, len(s))
	for key, day := range s {
		cp := make([]LessonEntry, len(day))
		copy(cp, day)
		out[key] = cp
	}
	return out
}

// ConfirmResult is the body returned by PUT /lesson/{id}/confirm.
type ConfirmResult struct {
	LessonID  string    `json:"lessonId"`
	Confirmed bool      `json:"confirmed"`
	UpdatedAt time.Time `json:"updatedAt"`
}
