package lesson

import "tutorcal/internal/model"

// FullyConfirmed derives the legacy tri-state from attendance answers:
//   - every answer true            -> nil
//   - every answer unset           -> nil
//   - anything else (mixed, false) -> false
//
// "All confirmed" and "all pending" deliberately collapse into nil; Status
// is what tells them apart.
func FullyConfirmed(atts []model.Attendance) *bool {
	allTrue := true
	allUnset := true
	for _, a := range atts {
		if a.Confirmed == nil || !*a.Confirmed {
			allTrue = false
		}
		if a.Confirmed != nil {
			allUnset = false
		}
	}
	if allTrue || allUnset {
		return nil
	}
	f := false
	return &f
}

// DeriveStatus maps attendance answers onto Pending/Confirmed/Rejected.
// It refines FullyConfirmed without changing which lessons accept answers:
// whenever FullyConfirmed is false (an explicit no, or a partial answer)
// the lesson is Rejected and terminal. A nil FullyConfirmed is Confirmed
// when every attendance said yes, Pending when nobody answered.
func DeriveStatus(atts []model.Attendance) model.Status {
	if FullyConfirmed(atts) != nil {
		return model.StatusRejected
	}
	if HasAnswers(atts) {
		return model.StatusConfirmed
	}
	return model.StatusPending
}

// HasAnswers reports whether any attendance carries an explicit answer.
// It separates "all pending" from "all confirmed" when FullyConfirmed is nil.
func HasAnswers(atts []model.Attendance) bool {
	for _, a := range atts {
		if a.Confirmed != nil {
			return true
		}
	}
	return false
}

// Interactive reports whether confirm/reject actions may be offered.
func Interactive(e model.LessonEntry) bool {
	return e.Status == model.StatusPending
}

// ApplyConfirmation returns a copy of e with every attendance set to
// confirmed and the derived fields recomputed.
func ApplyConfirmation(e model.LessonEntry, confirmed bool) model.LessonEntry {
	atts := make([]model.Attendance, len(e.Attendances))
	for i, a := range e.Attendances {
		v := confirmed
		a.Confirmed = &v
		atts[i] = a
	}
	e.Attendances = atts
	e.FullyConfirmed = FullyConfirmed(atts)
	e.Status = DeriveStatus(atts)
	e.Answered = HasAnswers(atts)
	return e
}
