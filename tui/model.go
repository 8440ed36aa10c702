package tui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/hochfrequenz/claude-task-master/internal/domain"
)

// RunSource loads the current run state for display
type RunSource interface {
	Load() (*domain.Run, error)
}

// SessionSource lists recent session records for display
type SessionSource interface {
	ListRecent(limit int) ([]*domain.SessionRecord, error)
}

// Model is the watch dashboard model
type Model struct {
	runs     RunSource
	sessions SessionSource

	// Data from the last refresh
	run     *domain.Run
	recent  []*domain.SessionRecord
	loadErr error

	// UI state
	width      int
	height     int
	taskScroll int

	lastRefresh time.Time
}

// NewModel creates the dashboard model over the given sources. The
// session source may be nil.
func NewModel(runs RunSource, sessions SessionSource) Model {
	return Model{runs: runs, sessions: sessions}
}

// Init starts the refresh loop
func (m Model) Init() tea.Cmd {
	return tea.Batch(refreshCmd(m.runs, m.sessions), tickCmd())
}

// TickMsg triggers a refresh
type TickMsg time.Time

func tickCmd() tea.Cmd {
	return tea.Tick(2*time.Second, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

// RefreshMsg carries freshly loaded run data
type RefreshMsg struct {
	Run    *domain.Run
	Recent []*domain.SessionRecord
	Err    error
}

func refreshCmd(runs RunSource, sessions SessionSource) tea.Cmd {
	return func() tea.Msg {
		msg := RefreshMsg{}
		msg.Run, msg.Err = runs.Load()
		if sessions != nil {
			msg.Recent, _ = sessions.ListRecent(10)
		}
		return msg
	}
}
