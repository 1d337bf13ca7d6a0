package report

import (
	"fmt"
	"math"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/samirrijal/menuwatch/internal/core/domain"
)

const (
	outcomeSheet = "Outcomes"
	summarySheet = "Summary"
)

var outcomeHeaders = []interface{}{
	"Location", "Outcome", "Canonical ID", "Distance (m)", "Tier", "Merge", "Reason", "At",
}

// XLSX writes one row per location outcome plus a summary sheet.
type XLSX struct {
	Path string
}

// NewXLSX returns a reporter writing to path.
func NewXLSX(path string) *XLSX {
	return &XLSX{Path: path}
}

// WriteSummary implements ports.OutcomeReporter.
func (r *XLSX) WriteSummary(s *domain.RunSummary) error {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(outcomeSheet)
	if err != nil {
		return err
	}

	sw, err := f.NewStreamWriter(outcomeSheet)
	if err != nil {
		return err
	}
	if err := sw.SetRow("A1", outcomeHeaders); err != nil {
		return err
	}
	for i, o := range s.Outcomes {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := sw.SetRow(cell, outcomeRow(o)); err != nil {
			return fmt.Errorf("row %d: %w", i+2, err)
		}
	}
	if err := sw.Flush(); err != nil {
		return err
	}

	if _, err := f.NewSheet(summarySheet); err != nil {
		return err
	}
	for i, kv := range summaryRows(s) {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(summarySheet, cell, &kv); err != nil {
			return err
		}
	}

	f.SetActiveSheet(index)
	f.DeleteSheet("Sheet1")
	return f.SaveAs(r.Path)
}

func outcomeRow(o domain.LocationOutcome) []interface{} {
	var distance interface{}
	if o.Outcome == domain.OutcomeMatched {
		distance = math.Round(o.DistanceMeters*10) / 10
	}
	return []interface{}{
		o.LocationID,
		string(o.Outcome),
		o.CanonicalID,
		distance,
		string(o.Tier),
		string(o.Merge),
		o.Reason,
		o.At.UTC().Format(time.RFC3339),
	}
}

func summaryRows(s *domain.RunSummary) [][]interface{} {
	return [][]interface{}{
		{"Run", s.RunID},
		{"Region", s.Region},
		{"Dry run", s.DryRun},
		{"Total", s.Total},
		{"Matched", s.Matched},
		{"Skipped", s.Skipped},
		{"Unmatched", s.Unmatched},
		{"Started", s.StartedAt.UTC().Format(time.RFC3339)},
		{"Finished", s.FinishedAt.UTC().Format(time.RFC3339)},
	}
}
