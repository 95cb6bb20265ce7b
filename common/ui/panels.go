package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/monobilisim/logagent/common/types"
)

const timeLayout = "2006-01-02 15:04:05"

// FormatEntry renders one log entry as a single line:
// timestamp, level badge, source and message.
func FormatEntry(e types.LogEntry) string {
	level := LevelStyle(e.Level).Render(fmt.Sprintf("%-7s", e.Level))
	return fmt.Sprintf("%s %s %s %s",
		MutedStyle.Render(e.Timestamp.Local().Format(timeLayout)),
		level,
		InfoStyle.Render("["+e.Source+"]"),
		e.Message)
}

// FormatMessage renders a conversation message with its author label.
func FormatMessage(m types.Message) string {
	label := AssistantStyle.Render("Agent")
	if m.Role == types.RoleUser {
		label = UserStyle.Render("You")
	}
	return fmt.Sprintf("%s %s\n%s",
		label,
		MutedStyle.Render(m.Timestamp.Local().Format("15:04")),
		m.Content)
}

// RenderPane draws a bordered pane of the given outer size. Lines beyond the
// height are cut from the top so the newest content stays visible when tail
// is true, and from the bottom otherwise.
func RenderPane(title string, lines []string, width, height int, tail bool) string {
	innerW := width - PaneStyle.GetHorizontalFrameSize()
	innerH := height - PaneStyle.GetVerticalFrameSize() - 1
	if innerW < 1 {
		innerW = 1
	}
	if innerH < 1 {
		innerH = 1
	}

	var wrapped []string
	for _, l := range lines {
		wrapped = append(wrapped, strings.Split(lipgloss.NewStyle().Width(innerW).Render(l), "\n")...)
	}
	if len(wrapped) > innerH {
		if tail {
			wrapped = wrapped[len(wrapped)-innerH:]
		} else {
			wrapped = wrapped[:innerH]
		}
	}

	body := RenderSection(title) + "\n" + strings.Join(wrapped, "\n")
	return PaneStyle.
		Width(innerW + PaneStyle.GetHorizontalPadding()).
		Height(innerH + 1).
		Render(body)
}
