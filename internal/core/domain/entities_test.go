package domain

import "testing"

func TestIsCanonicalID(t *testing.T) {
	tests := []struct {
		id   string
		want bool
	}{
		{"123456", true},
		{"0", true},
		{"", false},
		{"TH-123456", false},
		{"kgl_42", false},
		{"12 34", false},
		{"١٢٣", false},
	}
	for _, tt := range tests {
		if got := IsCanonicalID(tt.id); got != tt.want {
			t.Errorf("IsCanonicalID(%q) = %v, want %v", tt.id, got, tt.want)
		}
	}
}

func TestRunSummary_Add(t *testing.T) {
	var s RunSummary
	s.Add(LocationOutcome{Outcome: OutcomeMatched})
	s.Add(LocationOutcome{Outcome: OutcomeSkipped})
	s.Add(LocationOutcome{Outcome: OutcomeUnmatched})
	s.Add(LocationOutcome{Outcome: OutcomeUnmatched})

	if s.Total != 4 || s.Matched != 1 || s.Skipped != 1 || s.Unmatched != 2 {
		t.Fatalf("unexpected counters: %+v", s)
	}
	if len(s.Outcomes) != 4 {
		t.Fatalf("expected 4 outcomes, got %d", len(s.Outcomes))
	}
}
