package model

import "time"

// LessonDraft is the body of POST /lesson.
type LessonDraft struct {
	StartTime   time.Time `json:"startTime" validate:"required"`
	EndTime     time.Time `json:"endTime" validate:"required,gtfield=StartTime"`
	Address     string    `json:"address" validate:"required"`
	Description string    `json:"description"`
	LessonType  string    `json:"lessonType,omitempty" validate:"omitempty,max=64"`
	StudentIDs  []string  `json:"studentIds" validate:"required,min=1,dive,required"`
}

// LessonPatch is the body of PATCH /lesson/{id}. Nil fields are left as is.
type LessonPatch struct {
	StartTime   *time.Time `json:"startTime,omitempty"`
	EndTime     *time.Time `json:"endTime,omitempty" validate:"required_with=StartTime"`
	Address     *string    `json:"address,omitempty" validate:"omitempty,min=1"`
	Description *string    `json:"description,omitempty"`
	LessonType  *string    `json:"lessonType,omitempty" validate:"omitempty,max=64"`
}

// SeriesDraft describes a recurring lesson. RRule follows RFC 5545
// ("FREQ=WEEKLY;BYDAY=MO,WE;COUNT=10"); DTSTART is taken from Draft.
type SeriesDraft struct {
	Draft   LessonDraft
	RRule   string
	Until   time.Time   // zero: a default horizon applies
	Exclude []time.Time // occurrences to skip, matched on start instant
}
