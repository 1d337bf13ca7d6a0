package domain

import "time"

// Outcome is the terminal state of one location in a reconciliation run.
type Outcome string

const (
	OutcomeMatched   Outcome = "matched"
	OutcomeSkipped   Outcome = "skipped"
	OutcomeUnmatched Outcome = "unmatched"
)

// Reasons attached to skipped/unmatched outcomes.
const (
	ReasonNoCoordinates  = "no_coordinates"
	ReasonTransportError = "transport_error"
	ReasonRejected       = "gateway_rejected"
	ReasonNoCandidates   = "no_candidates"
	ReasonNoMatch        = "no_match"
	ReasonMergeFailed    = "merge_failed"
)

// MatchTier tells how a canonical ID was accepted.
type MatchTier string

const (
	// TierGeometric: nearest candidate within the match threshold.
	TierGeometric MatchTier = "geometric"
	// TierPositional: no candidate exposed coordinates; first one accepted.
	TierPositional MatchTier = "positional"
)

// MergeMode describes what the identity merge did to the store.
type MergeMode string

const (
	MergeRenamed MergeMode = "renamed"
	MergeMerged  MergeMode = "merged"
	MergeNoop    MergeMode = "noop"
)

// LocationOutcome is the per-location line of a reconciliation run.
type LocationOutcome struct {
	RunID          string    `json:"run_id"`
	Region         string    `json:"region"`
	LocationID     string    `json:"location_id"`
	Outcome        Outcome   `json:"outcome"`
	CanonicalID    string    `json:"canonical_id,omitempty"`
	DistanceMeters float64   `json:"distance_m,omitempty"`
	Tier           MatchTier `json:"tier,omitempty"`
	Merge          MergeMode `json:"merge,omitempty"`
	Reason         string    `json:"reason,omitempty"`
	DryRun         bool      `json:"dry_run,omitempty"`
	At             time.Time `json:"at"`
}

// RunSummary aggregates a reconciliation run over one region.
type RunSummary struct {
	RunID      string            `json:"run_id"`
	Region     string            `json:"region"`
	Total      int               `json:"total"`
	Matched    int               `json:"matched"`
	Skipped    int               `json:"skipped"`
	Unmatched  int               `json:"unmatched"`
	DryRun     bool              `json:"dry_run,omitempty"`
	Outcomes   []LocationOutcome `json:"outcomes"`
	StartedAt  time.Time         `json:"started_at"`
	FinishedAt time.Time         `json:"finished_at"`
}

// Add records an outcome and bumps the matching counter.
func (s *RunSummary) Add(o LocationOutcome) {
	s.Outcomes = append(s.Outcomes, o)
	s.Total++
	switch o.Outcome {
	case OutcomeMatched:
		s.Matched++
	case OutcomeSkipped:
		s.Skipped++
	default:
		s.Unmatched++
	}
}
