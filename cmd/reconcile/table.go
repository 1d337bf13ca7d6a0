package main

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/samirrijal/menuwatch/internal/core/domain"
)

// renderSummary lists every location outcome with the run totals in the footer.
func renderSummary(s *domain.RunSummary) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.SetTitle(fmt.Sprintf("%s  run %s", s.Region, s.RunID))
	tw.AppendHeader(table.Row{"Location", "Outcome", "Canonical", "Distance (m)", "Tier", "Detail"})

	for _, o := range s.Outcomes {
		distance := ""
		if o.Outcome == domain.OutcomeMatched {
			distance = fmt.Sprintf("%.1f", o.DistanceMeters)
		}
		detail := o.Reason
		if o.Merge != "" {
			detail = string(o.Merge)
		} else if o.DryRun && o.Outcome == domain.OutcomeMatched {
			detail = "dry run"
		}
		tw.AppendRow(table.Row{o.LocationID, string(o.Outcome), o.CanonicalID, distance, string(o.Tier), detail})
	}

	tw.AppendFooter(table.Row{
		fmt.Sprintf("total %d", s.Total),
		fmt.Sprintf("matched %d", s.Matched),
		fmt.Sprintf("skipped %d", s.Skipped),
		fmt.Sprintf("unmatched %d", s.Unmatched),
		"", "",
	})
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 4, Align: text.AlignRight, AlignHeader: text.AlignLeft},
	})
	return tw.Render()
}
