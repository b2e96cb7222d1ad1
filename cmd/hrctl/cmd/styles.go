package cmd

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/jrsteele09/go-workforce-client/push"
)

var (
	green = lipgloss.Color("#22C55E")
	amber = lipgloss.Color("#F59E0B")
	red   = lipgloss.Color("#F87171")
	slate = lipgloss.Color("#334155")

	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	borderStyle = lipgloss.NewStyle().Foreground(slate)
	mutedStyle  = lipgloss.NewStyle().Faint(true)
	titleStyle  = lipgloss.NewStyle().Bold(true)
)

func statusStyle(s push.Status) lipgloss.Style {
	switch s {
	case push.Connected:
		return lipgloss.NewStyle().Foreground(green)
	case push.Connecting:
		return lipgloss.NewStyle().Foreground(amber)
	default:
		return lipgloss.NewStyle().Foreground(red)
	}
}
