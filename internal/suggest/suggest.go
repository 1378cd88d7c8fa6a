// Package suggest infers candidate dependency edges between a project's
// tasks from temporal, resource, discipline, and naming signals. Suggestions
// are advisory only — nothing here mutates stored data.
package suggest

import (
	"regexp"
	"sort"
	"strconv"
	"time"

	"github.com/joshharrison/loomplan/internal/models"
)

// Heuristic names recorded in a suggestion's reasons list, in evaluation order.
const (
	ReasonTemporalGap      = "temporal_gap"
	ReasonTemporalGapLoose = "temporal_gap_loose"
	ReasonSharedResource   = "shared_resource"
	ReasonDisciplineOrder  = "discipline_order"
	ReasonCodeSequence     = "code_sequence"
)

// TaskFacts is the minimal task record the engine scores over.
type TaskFacts struct {
	ID         string
	Title      string
	Start      *time.Time
	End        *time.Time
	Resources  []string
	Discipline string
}

// Suggestion is a candidate edge: FromTask should precede ToTask.
type Suggestion struct {
	FromTask   string   `json:"from_task"`
	ToTask     string   `json:"to_task"`
	Confidence float64  `json:"confidence"`
	Reasons    []string `json:"reasons"`
}

// Facts extracts the fields the engine needs from a stored task.
func Facts(t models.Task) TaskFacts {
	return TaskFacts{
		ID:         t.ID,
		Title:      t.Title,
		Start:      t.StartDate,
		End:        t.EndDate,
		Resources:  t.Resources(),
		Discipline: t.Discipline,
	}
}

// codePattern matches titles like "P101" or "civ12": a letter prefix
// followed by a sequence number.
var codePattern = regexp.MustCompile(`^([A-Za-z]+)(\d+)$`)

// Suggest scores every ordered task pair and returns candidate edges sorted
// by confidence, descending. Heuristic contributions are additive and the
// final confidence is clamped to 1.0; pairs no heuristic fires on are
// omitted. Ties keep pair enumeration order (stable sort over input order).
func Suggest(tasks []TaskFacts) []Suggestion {
	var out []Suggestion

	for i := range tasks {
		for j := range tasks {
			if i == j {
				continue
			}
			if s, ok := scorePair(&tasks[i], &tasks[j]); ok {
				out = append(out, s)
			}
		}
	}

	sort.SliceStable(out, func(a, b int) bool {
		return out[a].Confidence > out[b].Confidence
	})
	return out
}

func scorePair(a, b *TaskFacts) (Suggestion, bool) {
	confidence := 0.0
	var reasons []string

	// Temporal gap: a finishing shortly before b starts.
	if a.End != nil && b.Start != nil && !a.End.After(*b.Start) {
		gap := b.Start.Sub(*a.End).Hours() / 24
		switch {
		case gap <= 2:
			confidence += 0.4
			reasons = append(reasons, ReasonTemporalGap)
		case gap <= 7:
			confidence += 0.2
			reasons = append(reasons, ReasonTemporalGapLoose)
		}
	}

	if sharesResource(a.Resources, b.Resources) {
		confidence += 0.3
		reasons = append(reasons, ReasonSharedResource)
	}

	if a.Discipline != "" && b.Discipline != "" && a.Discipline < b.Discipline {
		confidence += 0.2
		reasons = append(reasons, ReasonDisciplineOrder)
	}

	if inCodeSequence(a.Title, b.Title) {
		confidence += 0.4
		reasons = append(reasons, ReasonCodeSequence)
	}

	if confidence <= 0 {
		return Suggestion{}, false
	}
	if confidence > 1 {
		confidence = 1
	}

	return Suggestion{
		FromTask:   a.ID,
		ToTask:     b.ID,
		Confidence: confidence,
		Reasons:    reasons,
	}, true
}

func sharesResource(a, b []string) bool {
	if len(a) == 0 || len(b) == 0 {
		return false
	}
	set := make(map[string]bool, len(a))
	for _, r := range a {
		set[r] = true
	}
	for _, r := range b {
		if set[r] {
			return true
		}
	}
	return false
}

// inCodeSequence reports whether the titles share a letter prefix and b's
// number is exactly a's number plus one (e.g. "P101" -> "P102").
func inCodeSequence(titleA, titleB string) bool {
	ma := codePattern.FindStringSubmatch(titleA)
	mb := codePattern.FindStringSubmatch(titleB)
	if ma == nil || mb == nil || ma[1] != mb[1] {
		return false
	}
	na, errA := strconv.Atoi(ma[2])
	nb, errB := strconv.Atoi(mb[2])
	return errA == nil && errB == nil && nb == na+1
}
