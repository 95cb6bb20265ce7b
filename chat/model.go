package chat

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/monobilisim/logagent/common/feed"
	"github.com/monobilisim/logagent/common/session"
	"github.com/monobilisim/logagent/common/telemetry"
	"github.com/monobilisim/logagent/common/types"
	"github.com/monobilisim/logagent/common/ui"
	"github.com/rs/zerolog/log"
)

// queueSize bounds how many messages can wait behind the running turn.
const queueSize = 32

type (
	feedMsg    feed.State
	historyMsg []types.Message
	startedMsg struct{}
)

type model struct {
	ctx     context.Context
	sess    *session.Session
	counter *telemetry.Counter
	queue   chan string

	input   textinput.Model
	spinner spinner.Model

	feed    feed.State
	history []types.Message
	queued  int
	notice  string

	width  int
	height int
}

func newModel(ctx context.Context, sess *session.Session, counter *telemetry.Counter) model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	ti := textinput.New()
	ti.Placeholder = "Ask about your logs..."
	ti.CharLimit = 500
	ti.Focus()

	return model{
		ctx:     ctx,
		sess:    sess,
		counter: counter,
		queue:   make(chan string, queueSize),
		input:   ti,
		spinner: sp,
		feed:    sess.Feed().State(),
		history: sess.Conversation().History(),
		width:   100,
		height:  30,
	}
}

// attach forwards controller notifications into the running program.
func (m model) attach(p *tea.Program) func() {
	cancelFeed := m.sess.Feed().Subscribe(func(s feed.State) { p.Send(feedMsg(s)) })
	cancelConv := m.sess.Conversation().Subscribe(func(h []types.Message) { p.Send(historyMsg(h)) })
	return func() {
		cancelFeed()
		cancelConv()
	}
}

// worker submits queued messages one at a time in the order they were typed.
func (m model) worker() {
	for {
		select {
		case <-m.ctx.Done():
			return
		case text := <-m.queue:
			if err := m.sess.Submit(m.ctx, text); err != nil {
				log.Debug().Str("component", "chat").Err(err).Msg("Submit abandoned")
				return
			}
		}
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, textinput.Blink, func() tea.Msg {
		m.sess.Start()
		return startedMsg{}
	})
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			return m, tea.Quit
		case "enter":
			return m.submit()
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.input.Width = msg.Width - 6
		return m, nil

	case feedMsg:
		m.feed = feed.State(msg)
		return m, nil

	case historyMsg:
		m.history = msg
		if m.queued > 0 && len(msg) > 0 && msg[len(msg)-1].Role == types.RoleUser {
			m.queued--
		}
		return m, nil

	case startedMsg:
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m model) submit() (tea.Model, tea.Cmd) {
	text := strings.TrimSpace(m.input.Value())
	if text == "" {
		return m, nil
	}

	select {
	case m.queue <- text:
		m.queued++
		m.notice = ""
		m.input.Reset()
	default:
		m.notice = "Too many pending messages, wait for a reply."
	}
	return m, nil
}

func (m model) pending() bool {
	return m.queued > 0 || m.sess.Conversation().Pending()
}

func (m model) View() string {
	header := ui.RenderTitle("Log Analytics Agent")

	bodyH := m.height - lipgloss.Height(header) - 4
	if bodyH < 6 {
		bodyH = 6
	}
	logW := m.width * 3 / 5
	chatW := m.width - logW

	panes := lipgloss.JoinHorizontal(lipgloss.Top,
		ui.RenderPane(m.feedTitle(), m.feedLines(), logW, bodyH, false),
		ui.RenderPane("Conversation", m.chatLines(), chatW, bodyH, true),
	)

	status := ui.MutedStyle.Render(m.statusLine())
	prompt := m.input.View()
	if m.pending() {
		prompt = m.spinner.View() + " " + prompt
	}

	return lipgloss.JoinVertical(lipgloss.Left, header, panes, prompt, status)
}

func (m model) feedTitle() string {
	title := fmt.Sprintf("Logs: %s", m.feed.Query.String())
	if m.feed.Loading {
		title += " " + m.spinner.View()
	}
	return title
}

func (m model) feedLines() []string {
	if len(m.feed.Entries) == 0 {
		if m.feed.Loading {
			return []string{ui.MutedStyle.Render("Loading logs...")}
		}
		return []string{ui.MutedStyle.Render("No logs found.")}
	}
	lines := make([]string, 0, len(m.feed.Entries))
	for _, e := range m.feed.Entries {
		lines = append(lines, ui.FormatEntry(e))
	}
	return lines
}

func (m model) chatLines() []string {
	lines := make([]string, 0, len(m.history)*2)
	for i, msg := range m.history {
		if i > 0 {
			lines = append(lines, "")
		}
		lines = append(lines, ui.FormatMessage(msg))
	}
	return lines
}

func (m model) statusLine() string {
	parts := []string{fmt.Sprintf("%d entries", len(m.feed.Entries))}
	if m.counter != nil {
		snap := m.counter.Snapshot()
		kinds := make([]string, 0, len(snap))
		for k := range snap {
			kinds = append(kinds, k)
		}
		sort.Strings(kinds)
		for _, k := range kinds {
			parts = append(parts, fmt.Sprintf("%s=%d", k, snap[k]))
		}
	}
	if m.notice != "" {
		parts = append(parts, ui.ErrorStyle.Render(m.notice))
	}
	parts = append(parts, "enter: send, esc: quit")
	return strings.Join(parts, " | ")
}
