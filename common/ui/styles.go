// Package ui provides common UI components for terminal-based interfaces.
// It uses the charmbracelet/lipgloss library for styling terminal output.
package ui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/monobilisim/logagent/common/types"
)

var (
	PrimaryColor    = lipgloss.Color("#7D56F4") // Purple
	SecondaryColor  = lipgloss.Color("#6B97F7") // Light Blue
	InfoColor       = lipgloss.Color("#FFB946") // Orange/Yellow
	SuccessColor    = lipgloss.Color("#00FF00")
	WarningColor    = lipgloss.Color("#F5B041")
	ErrorColor      = lipgloss.Color("#FF0000")
	MutedColor      = lipgloss.Color("#888888")
	NormalTextColor = lipgloss.Color("#FFFFFF")

	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(PrimaryColor).
			BorderStyle(lipgloss.NormalBorder()).
			BorderBottom(true).
			PaddingLeft(2)

	SectionStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(SecondaryColor)

	InfoStyle = lipgloss.NewStyle().
			Foreground(InfoColor)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(ErrorColor)

	MutedStyle = lipgloss.NewStyle().
			Foreground(MutedColor)

	KeyStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(NormalTextColor)

	ValueStyle = lipgloss.NewStyle().
			Foreground(NormalTextColor)

	UserStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(SecondaryColor)

	AssistantStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(PrimaryColor)

	PaneStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(PrimaryColor).
			Padding(0, 1)

	levelStyles = map[types.Level]lipgloss.Style{
		types.LevelError:   lipgloss.NewStyle().Bold(true).Foreground(ErrorColor),
		types.LevelWarning: lipgloss.NewStyle().Bold(true).Foreground(WarningColor),
		types.LevelInfo:    lipgloss.NewStyle().Foreground(SuccessColor),
		types.LevelDebug:   lipgloss.NewStyle().Foreground(SecondaryColor),
	}
)

// LevelStyle returns the badge style for a log level.
func LevelStyle(l types.Level) lipgloss.Style {
	if s, ok := levelStyles[l]; ok {
		return s
	}
	return MutedStyle
}

// FormatKeyValue formats a key-value pair with consistent styling
func FormatKeyValue(key, value string) string {
	return fmt.Sprintf("%s: %s",
		KeyStyle.Render(key),
		ValueStyle.Render(value))
}

// RenderTitle renders a title with the TitleStyle
func RenderTitle(title string) string {
	return TitleStyle.Render(title)
}

// RenderSection renders a section header with the SectionStyle
func RenderSection(title string) string {
	return SectionStyle.Render(title)
}
