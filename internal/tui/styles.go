// Package tui provides the interactive terminal editor behind "impresso config".
package tui

import (
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
)

var (
	accent = lipgloss.AdaptiveColor{Light: "#1F5C99", Dark: "#6FA8DC"}
	okay   = lipgloss.AdaptiveColor{Light: "#2E7D32", Dark: "#81C784"}
	alert  = lipgloss.AdaptiveColor{Light: "#C62828", Dark: "#EF9A9A"}
	dim    = lipgloss.AdaptiveColor{Light: "#8A8A8A", Dark: "#6B6B6B"}
	notice = lipgloss.AdaptiveColor{Light: "#B26A00", Dark: "#FFB74D"}

	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(accent)
	pathStyle    = lipgloss.NewStyle().Foreground(dim).Italic(true)
	sectionStyle = lipgloss.NewStyle().Bold(true).Foreground(dim).MarginTop(1)

	cursorStyle  = lipgloss.NewStyle().Bold(true).Foreground(accent)
	entryStyle   = lipgloss.NewStyle()
	summaryStyle = lipgloss.NewStyle().Foreground(dim)

	envStyle     = lipgloss.NewStyle().Foreground(notice)
	changeStyle  = lipgloss.NewStyle().Foreground(notice)
	problemStyle = lipgloss.NewStyle().Foreground(alert)
	savedStyle   = lipgloss.NewStyle().Foreground(okay)

	keysStyle = lipgloss.NewStyle().Foreground(dim).MarginTop(1)

	confirmBox = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(notice).
			Padding(1, 2)
)

// formTheme returns the huh theme of the category forms; accessible mode
// drops colors for screen readers.
func formTheme(accessible bool) *huh.Theme {
	if accessible {
		return huh.ThemeBase()
	}
	return huh.ThemeCharm()
}
