package web

import (
	"bytes"
	"fmt"
	"html/template"
	"net/http"
	"strings"

	"tutorcal/internal/grid"
	appLog "tutorcal/internal/log"
	"tutorcal/internal/model"
)

// calendarPage is the data handed to calendarTmpl.
type calendarPage struct {
	Week       grid.Week
	Offset     int
	Hours      []hourMark
	Error      string
	Confirming map[string]bool
}

type hourMark struct {
	Label string
	Top   float64
}

var calendarTmpl = template.Must(template.New("calendar").Funcs(template.FuncMap{
	"px": func(v float64) string { return fmt.Sprintf("%.2fpx", v) },
	"names": func(atts []model.Attendance) string {
		out := make([]string, 0, len(atts))
		for _, a := range atts {
			out = append(out, strings.TrimSpace(a.StudentName+" "+a.StudentSurname))
		}
		return strings.Join(out, ", ")
	},
	"prev": func(n int) int { return n - 1 },
	"next": func(n int) int { return n + 1 },
}).Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Lessons</title>
<style>
body { font-family: sans-serif; margin: 0; }
nav { display: flex; gap: 1em; padding: 8px; }
.error { color: #b00020; padding: 0 8px; }
.grid { display: flex; }
.hours, .day { position: relative; height: {{px .Week.ColumnHeight}}; }
.hours { width: 48px; }
.hour { position: absolute; font-size: 10px; }
.day { flex: 1; border-left: 1px solid #ccc; }
.day h2 { font-size: 12px; margin: 0; position: sticky; top: 0; }
.lesson { position: absolute; left: 2px; right: 2px; overflow: hidden; font-size: 11px; border-radius: 3px; padding: 2px; box-sizing: border-box; }
.pending { background: #fff3c4; }
.confirmed { background: #c8f7c5; }
.rejected { background: #f7c5c5; text-decoration: line-through; }
.confirming { opacity: 0.5; }
</style>
</head>
<body>
<div id="calendar" data-ready="true" data-offset="{{.Offset}}">
<nav>
<a href="/calendar?offset={{prev .Offset}}">&larr; previous</a>
<span>{{.Week.Start.Format "2 Jan 2006"}}</span>
<a href="/calendar?offset={{next .Offset}}">next &rarr;</a>
</nav>
{{if .Error}}<p class="error">{{.Error}}</p>{{end}}
<div class="grid">
<div class="hours">{{range .Hours}}<span class="hour" style="top: {{px .Top}}">{{.Label}}</span>{{end}}</div>
{{range .Week.Days}}<div class="day" data-date="{{.Key}}">
<h2>{{.Date.Format "Mon 2"}}</h2>
{{range .Blocks}}<div class="lesson {{.Status}}{{if index $.Confirming .Entry.LessonID}} confirming{{end}}" data-lesson-id="{{.Entry.LessonID}}" data-interactive="{{.Interactive}}" style="top: {{px .Top}}; height: {{px .Height}}">
<strong>{{.Entry.StartTime}}&ndash;{{.Entry.EndTime}}</strong> {{.Entry.LessonType}}<br>
{{names .Entry.Attendances}}<br>
{{.Entry.Address}}
</div>{{end}}
</div>{{end}}
</div>
</div>
</body>
</html>
`))

// handleCalendar renders the week grid as HTML. The root element carries
// data-ready="true" so the capture job knows rendering is done.
//
// GET /calendar?offset=N
func (s *Server) handleCalendar(w http.ResponseWriter, r *http.Request) {
	offset, err := s.ensureWeek(r)
	if err != nil {
		http.Error(w, messageFor(err), statusFor(err))
		return
	}

	from, _ := s.src.Range(offset)
	week := grid.Layout(s.src.Schedule(), from, s.cfg.ColumnHeight)

	confirming := make(map[string]bool)
	for _, id := range s.src.ConfirmingLessons() {
		confirming[id] = true
	}

	marks := grid.HourMarks(s.cfg.ColumnHeight)
	hours := make([]hourMark, 0, len(marks)-1)
	for h, top := range marks[:len(marks)-1] {
		hours = append(hours, hourMark{Label: fmt.Sprintf("%02d:00", h), Top: top})
	}

	var buf bytes.Buffer
	page := calendarPage{
		Week:       week,
		Offset:     offset,
		Hours:      hours,
		Error:      s.src.Error(),
		Confirming: confirming,
	}
	if err := calendarTmpl.Execute(&buf, page); err != nil {
		appLog.Error("calendar template failed", err)
		http.Error(w, "failed to render calendar", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}
