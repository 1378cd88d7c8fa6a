package suggest

import (
	"testing"
	"time"
)

func day(s string) *time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return &t
}

func find(t *testing.T, suggestions []Suggestion, from, to string) *Suggestion {
	t.Helper()
	for i := range suggestions {
		if suggestions[i].FromTask == from && suggestions[i].ToTask == to {
			return &suggestions[i]
		}
	}
	return nil
}

func hasReason(s *Suggestion, reason string) bool {
	for _, r := range s.Reasons {
		if r == reason {
			return true
		}
	}
	return false
}

func TestSuggest_TemporalGap(t *testing.T) {
	suggestions := Suggest([]TaskFacts{
		{ID: "a", End: day("2024-03-01")},
		{ID: "b", Start: day("2024-03-02")},
	})

	s := find(t, suggestions, "a", "b")
	if s == nil {
		t.Fatalf("expected a->b suggestion, got %v", suggestions)
	}
	if s.Confidence != 0.4 {
		t.Errorf("expected confidence 0.4, got %v", s.Confidence)
	}
	if !hasReason(s, ReasonTemporalGap) {
		t.Errorf("expected reason %q, got %v", ReasonTemporalGap, s.Reasons)
	}
	if find(t, suggestions, "b", "a") != nil {
		t.Error("reverse pair should not fire the temporal heuristic")
	}
}

func TestSuggest_TemporalGapLoose(t *testing.T) {
	// Five days between finish and start: loose window only.
	suggestions := Suggest([]TaskFacts{
		{ID: "a", End: day("2024-03-01")},
		{ID: "b", Start: day("2024-03-06")},
	})

	s := find(t, suggestions, "a", "b")
	if s == nil {
		t.Fatal("expected a->b suggestion")
	}
	if s.Confidence != 0.2 || !hasReason(s, ReasonTemporalGapLoose) {
		t.Errorf("expected 0.2/%s, got %v %v", ReasonTemporalGapLoose, s.Confidence, s.Reasons)
	}
}

func TestSuggest_GapBeyondWindowFiresNothing(t *testing.T) {
	suggestions := Suggest([]TaskFacts{
		{ID: "a", End: day("2024-03-01")},
		{ID: "b", Start: day("2024-03-20")},
	})
	if len(suggestions) != 0 {
		t.Errorf("expected no suggestions for an 19-day gap, got %v", suggestions)
	}
}

func TestSuggest_SharedResource(t *testing.T) {
	suggestions := Suggest([]TaskFacts{
		{ID: "a", Resources: []string{"crane", "crew-2"}},
		{ID: "b", Resources: []string{"crew-2"}},
	})

	s := find(t, suggestions, "a", "b")
	if s == nil || s.Confidence != 0.3 || !hasReason(s, ReasonSharedResource) {
		t.Fatalf("expected shared_resource at 0.3, got %v", suggestions)
	}
	// Resource overlap is symmetric: both directions are suggested.
	if find(t, suggestions, "b", "a") == nil {
		t.Error("expected the symmetric b->a suggestion")
	}
}

func TestSuggest_DisciplineOrder(t *testing.T) {
	suggestions := Suggest([]TaskFacts{
		{ID: "a", Discipline: "civil"},
		{ID: "b", Discipline: "mechanical"},
	})

	s := find(t, suggestions, "a", "b")
	if s == nil || s.Confidence != 0.2 || !hasReason(s, ReasonDisciplineOrder) {
		t.Fatalf("expected discipline_order at 0.2, got %v", suggestions)
	}
	if find(t, suggestions, "b", "a") != nil {
		t.Error("discipline ordering must only fire in one direction")
	}
}

func TestSuggest_CodeSequence(t *testing.T) {
	suggestions := Suggest([]TaskFacts{
		{ID: "a", Title: "P101"},
		{ID: "b", Title: "P102"},
		{ID: "c", Title: "Q102"},
	})

	s := find(t, suggestions, "a", "b")
	if s == nil || s.Confidence != 0.4 || !hasReason(s, ReasonCodeSequence) {
		t.Fatalf("expected code_sequence P101->P102, got %v", suggestions)
	}
	if find(t, suggestions, "a", "c") != nil {
		t.Error("differing prefixes must not count as a sequence")
	}
	if find(t, suggestions, "b", "a") != nil {
		t.Error("sequence only fires when the number increments")
	}
}

func TestSuggest_AdditiveAndClamped(t *testing.T) {
	// All four heuristics fire: 0.4 + 0.3 + 0.2 + 0.4 clamps to 1.0.
	suggestions := Suggest([]TaskFacts{
		{ID: "a", Title: "P101", End: day("2024-03-01"), Resources: []string{"rig"}, Discipline: "civil"},
		{ID: "b", Title: "P102", Start: day("2024-03-02"), Resources: []string{"rig"}, Discipline: "piping"},
	})

	s := find(t, suggestions, "a", "b")
	if s == nil {
		t.Fatal("expected a->b suggestion")
	}
	if s.Confidence != 1.0 {
		t.Errorf("expected confidence clamped to 1.0, got %v", s.Confidence)
	}
	if len(s.Reasons) != 4 {
		t.Errorf("expected all 4 reasons recorded, got %v", s.Reasons)
	}
}

func TestSuggest_SortedDescending(t *testing.T) {
	suggestions := Suggest([]TaskFacts{
		{ID: "a", Title: "P101", End: day("2024-03-01"), Resources: []string{"rig"}},
		{ID: "b", Title: "P102", Start: day("2024-03-02"), Resources: []string{"rig"}},
		{ID: "c", Discipline: "civil"},
		{ID: "d", Discipline: "structural"},
	})

	if len(suggestions) < 2 {
		t.Fatalf("expected several suggestions, got %v", suggestions)
	}
	for i := 1; i < len(suggestions); i++ {
		if suggestions[i].Confidence > suggestions[i-1].Confidence {
			t.Fatalf("suggestions not sorted descending at %d: %v", i, suggestions)
		}
	}
	for _, s := range suggestions {
		if s.Confidence <= 0 || s.Confidence > 1 {
			t.Errorf("confidence out of (0,1]: %v", s)
		}
	}
}

func TestSuggest_NoSignalsNoSuggestions(t *testing.T) {
	suggestions := Suggest([]TaskFacts{
		{ID: "a", Title: "Pour foundation"},
		{ID: "b", Title: "Install pumps"},
	})
	if len(suggestions) != 0 {
		t.Errorf("expected no suggestions without signals, got %v", suggestions)
	}
}
