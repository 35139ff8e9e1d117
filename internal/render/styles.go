package render

import "github.com/charmbracelet/lipgloss"

type styles struct {
	title   lipgloss.Style
	stage   lipgloss.Style
	tier    lipgloss.Style
	ok      lipgloss.Style
	down    lipgloss.Style
	detail  lipgloss.Style
	summary lipgloss.Style
	failure lipgloss.Style
}

func newStyles() styles {
	return styles{
		title:   lipgloss.NewStyle().Bold(true),
		stage:   lipgloss.NewStyle().Foreground(lipgloss.Color("241")).MarginTop(1),
		tier:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39")),
		ok:      lipgloss.NewStyle().Width(4).Foreground(lipgloss.Color("78")),
		down:    lipgloss.NewStyle().Width(4).Bold(true).Foreground(lipgloss.Color("203")),
		detail:  lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
		summary: lipgloss.NewStyle().MarginTop(1).Foreground(lipgloss.Color("252")),
		failure: lipgloss.NewStyle().MarginTop(1).Bold(true).Foreground(lipgloss.Color("203")),
	}
}
