package ui

import (
	tea "github.com/charmbracelet/bubbletea"
)

// RunApp initializes and runs a bubbletea application with the given model.
// The program is handed to attach before it starts so background listeners
// can Send messages into it.
func RunApp(initialModel tea.Model, attach func(p *tea.Program)) error {
	p := tea.NewProgram(initialModel, tea.WithAltScreen())
	if attach != nil {
		attach(p)
	}
	_, err := p.Run()
	return err
}
