// Package export maps a computed schedule's day offsets onto real calendar
// dates, walking forward from an anchor date and counting only configured
// working days.
package export

import (
	"math"
	"strings"
	"time"

	"github.com/joshharrison/loomplan/internal/errs"
	"github.com/joshharrison/loomplan/internal/models"
)

const dateLayout = "2006-01-02"

var weekdays = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"sun":       time.Sunday,
	"monday":    time.Monday,
	"mon":       time.Monday,
	"tuesday":   time.Tuesday,
	"tue":       time.Tuesday,
	"wednesday": time.Wednesday,
	"wed":       time.Wednesday,
	"thursday":  time.Thursday,
	"thu":       time.Thursday,
	"friday":    time.Friday,
	"fri":       time.Friday,
	"saturday":  time.Saturday,
	"sat":       time.Saturday,
}

// Options control the calendar mapping. Zero values mean "anchor now" and
// "all seven days are working days".
type Options struct {
	AnchorDate  string
	WorkingDays []string
}

// TaskDates is one task's schedule mapped onto the calendar.
type TaskDates struct {
	TaskID     string  `json:"task_id"`
	StartDate  string  `json:"start_date"`
	FinishDate string  `json:"finish_date"`
	LateStart  string  `json:"late_start"`
	LateFinish string  `json:"late_finish"`
	IsCritical bool    `json:"is_critical"`
	TotalFloat float64 `json:"total_float"`
}

// Document is the exported schedule for one project.
type Document struct {
	ProjectID   string      `json:"project_id"`
	AnchorDate  string      `json:"anchor_date"`
	WorkingDays []string    `json:"working_days"`
	Tasks       []TaskDates `json:"tasks"`
}

// Build validates the options and maps every node's offsets to dates.
func Build(projectID string, nodes []models.WBSNode, opts Options) (*Document, error) {
	anchor := time.Now().UTC().Truncate(24 * time.Hour)
	anchorStr := anchor.Format(dateLayout)
	if opts.AnchorDate != "" {
		parsed, err := time.Parse(dateLayout, opts.AnchorDate)
		if err != nil {
			return nil, errs.Invalid("Invalid anchor_date format")
		}
		anchor = parsed
		anchorStr = opts.AnchorDate
	}

	working, names, err := parseWorkingDays(opts.WorkingDays)
	if err != nil {
		return nil, err
	}

	doc := &Document{
		ProjectID:   projectID,
		AnchorDate:  anchorStr,
		WorkingDays: names,
	}

	cal := calendar{anchor: anchor, working: working}
	for i := range nodes {
		n := &nodes[i]
		doc.Tasks = append(doc.Tasks, TaskDates{
			TaskID:     n.TaskID,
			StartDate:  cal.startDate(n.EarlyStart).Format(dateLayout),
			FinishDate: cal.finishDate(n.EarlyStart, n.EarlyFinish).Format(dateLayout),
			LateStart:  cal.startDate(n.LateStart).Format(dateLayout),
			LateFinish: cal.finishDate(n.LateStart, n.LateFinish).Format(dateLayout),
			IsCritical: n.IsCritical,
			TotalFloat: n.TotalFloat,
		})
	}
	return doc, nil
}

// parseWorkingDays resolves day-name tokens. Unknown tokens fail with the
// exact message callers match on; an empty list means all seven days.
func parseWorkingDays(tokens []string) (map[time.Weekday]bool, []string, error) {
	working := make(map[time.Weekday]bool, 7)
	if len(tokens) == 0 {
		for d := time.Sunday; d <= time.Saturday; d++ {
			working[d] = true
		}
		return working, nil, nil
	}

	var names []string
	for _, tok := range tokens {
		day, ok := weekdays[strings.ToLower(strings.TrimSpace(tok))]
		if !ok {
			return nil, nil, errs.Invalid("Invalid working day: %s", tok)
		}
		if !working[day] {
			working[day] = true
			names = append(names, day.String())
		}
	}
	return working, names, nil
}

type calendar struct {
	anchor  time.Time
	working map[time.Weekday]bool
}

// startDate maps a day offset to the working day a task starts on: advance
// floor(offset) working days from the anchor, then roll forward to the next
// working day if needed.
func (c calendar) startDate(offset float64) time.Time {
	return c.advance(int(math.Floor(offset + 1e-9)))
}

// finishDate maps a finish offset to the last working day of the task.
// A task spanning (start, finish] occupies ceil(finish)-1 as its final
// working-day index, never earlier than its start day.
func (c calendar) finishDate(start, finish float64) time.Time {
	last := int(math.Ceil(finish-1e-9)) - 1
	first := int(math.Floor(start + 1e-9))
	if last < first {
		last = first
	}
	return c.advance(last)
}

// advance returns the nth working day counting from the anchor, where the
// first working day on or after the anchor is day zero.
func (c calendar) advance(n int) time.Time {
	cur := c.anchor
	for !c.working[cur.Weekday()] {
		cur = cur.AddDate(0, 0, 1)
	}
	for i := 0; i < n; i++ {
		cur = cur.AddDate(0, 0, 1)
		for !c.working[cur.Weekday()] {
			cur = cur.AddDate(0, 0, 1)
		}
	}
	return cur
}
