package tui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "r":
			return m, refreshCmd(m.runs, m.sessions)
		case "j", "down":
			if m.run != nil && m.taskScroll < len(m.run.Tasks)-1 {
				m.taskScroll++
			}
		case "k", "up":
			if m.taskScroll > 0 {
				m.taskScroll--
			}
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case TickMsg:
		return m, tea.Batch(refreshCmd(m.runs, m.sessions), tickCmd())

	case RefreshMsg:
		m.run = msg.Run
		m.recent = msg.Recent
		m.loadErr = msg.Err
		m.lastRefresh = time.Now()
	}

	return m, nil
}
