package tui

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
)

// 256-color palette.
const (
	colorPrimary   = lipgloss.Color("39")
	colorSecondary = lipgloss.Color("245")
	colorHighlight = lipgloss.Color("212")
	colorSuccess   = lipgloss.Color("76")
	colorWarning   = lipgloss.Color("214")
	colorMuted     = lipgloss.Color("240")
	colorError     = lipgloss.Color("196")
)

func fg(c lipgloss.Color) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(c)
}

var (
	titleStyle      = fg(colorPrimary).Bold(true).MarginBottom(1)
	breadcrumbStyle = fg(colorSecondary)
	statsStyle      = fg(colorSecondary).MarginBottom(1)
	statusStyle     = fg(colorSecondary)
	filterStyle     = fg(colorWarning)
	helpStyle       = fg(colorMuted).MarginTop(1)

	headerStyle = fg(colorMuted).
			Bold(true).
			BorderStyle(lipgloss.NormalBorder()).
			BorderBottom(true).
			BorderForeground(colorMuted)

	selectedStyle = fg(lipgloss.Color("0")).Bold(true).Background(colorPrimary)
	dirStyle      = fg(colorPrimary).Bold(true)
	fileStyle     = fg(lipgloss.Color("255"))

	barFilledStyle = fg(colorHighlight)
	barEmptyStyle  = fg(colorMuted)

	markStyles = map[string]lipgloss.Style{
		markCompleted: fg(colorSuccess),
		markQueued:    fg(colorWarning),
		markFailed:    fg(colorError),
	}
)

// Upload state marks.
const (
	markCompleted = "✓"
	markQueued    = "•"
	markFailed    = "✗"
)

func markStyle(mark string) lipgloss.Style {
	if s, ok := markStyles[mark]; ok {
		return s
	}
	return fg(colorSecondary)
}

// FormatSize formats a byte count for display.
func FormatSize(bytes int64) string {
	return humanize.Bytes(uint64(bytes))
}

// FormatCount formats a count for display.
func FormatCount(n int64) string {
	return humanize.Comma(n)
}
