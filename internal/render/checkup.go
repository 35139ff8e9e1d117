// Package render turns pipeline probe results into terminal output for the
// check command.
package render

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"github.com/linguacast/linguacast/pkg/relay/pipeline"
)

// Checkup renders the per-stage, per-tier probe report.
func Checkup(report pipeline.StageReport) string {
	s := newStyles()

	stages := []struct {
		name  string
		tiers []pipeline.TierHealth
	}{
		{"transcription", report.Transcription},
		{"translation", report.Translation},
		{"synthesis", report.Synthesis},
	}

	lines := []string{s.title.Render("linguacast pipeline check")}
	for _, stage := range stages {
		lines = append(lines, s.stage.Render(stage.name))
		for _, tier := range stage.tiers {
			lines = append(lines, renderTier(tier, s))
		}
	}

	if report.Healthy() {
		lines = append(lines, s.summary.Render("every stage has a reachable tier"))
	} else {
		lines = append(lines, s.failure.Render("at least one stage has no reachable tier"))
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func renderTier(tier pipeline.TierHealth, s styles) string {
	mark := s.ok.Render("ok")
	if !tier.Healthy {
		mark = s.down.Render("down")
	}
	line := fmt.Sprintf("  %s %s", mark, s.tier.Render(tier.Name))
	if tier.Err != nil {
		line += "  " + s.detail.Render(tier.Err.Error())
	}
	return line
}
