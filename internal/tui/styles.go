package tui

import "github.com/charmbracelet/lipgloss"

type styles struct {
	pane        lipgloss.Style
	paneFocused lipgloss.Style
	title       lipgloss.Style
	subtitle    lipgloss.Style
	user        lipgloss.Style
	assistant   lipgloss.Style
	status      lipgloss.Style
	errText     lipgloss.Style
	inputBox    lipgloss.Style
}

func defaultStyles() *styles {
	return &styles{
		pane: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1),
		paneFocused: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(0, 1),
		title: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("62")).
			Align(lipgloss.Center),
		subtitle: lipgloss.NewStyle().
			Faint(true).
			Align(lipgloss.Center),
		user: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205")),
		assistant: lipgloss.NewStyle().
			Foreground(lipgloss.Color("252")),
		status: lipgloss.NewStyle().
			Faint(true),
		errText: lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")),
		inputBox: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63")).
			Padding(0, 1),
	}
}
