package tui

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/hochfrequenz/claude-task-master/internal/domain"
	"github.com/hochfrequenz/claude-task-master/internal/state"
)

type fakeRuns struct {
	run *domain.Run
	err error
}

func (f fakeRuns) Load() (*domain.Run, error) { return f.run, f.err }

type fakeSessions struct {
	records []*domain.SessionRecord
}

func (f fakeSessions) ListRecent(limit int) ([]*domain.SessionRecord, error) {
	if limit < len(f.records) {
		return f.records[:limit], nil
	}
	return f.records, nil
}

func dashboardRun() *domain.Run {
	return &domain.Run{
		ID:     "run-2024-testrun1",
		Goal:   "Migrate the billing service to the new API",
		Status: domain.RunWorking,
		Tasks: []domain.Task{
			{Index: 0, Description: "Add the new client", Done: true},
			{Index: 1, Description: "Swap call sites", Done: false},
		},
		SessionCount: 3,
	}
}

func refreshed(t *testing.T, m Model, msg RefreshMsg) Model {
	t.Helper()
	updated, _ := m.Update(msg)
	model, ok := updated.(Model)
	if !ok {
		t.Fatalf("Update returned %T, want Model", updated)
	}
	return model
}

func TestRefreshStoresRunData(t *testing.T) {
	m := NewModel(fakeRuns{}, nil)
	run := dashboardRun()

	m = refreshed(t, m, RefreshMsg{Run: run})

	if m.run != run {
		t.Error("refresh did not store run")
	}
	if m.loadErr != nil {
		t.Errorf("loadErr = %v, want nil", m.loadErr)
	}
	if m.lastRefresh.IsZero() {
		t.Error("lastRefresh not set")
	}
}

func TestViewShowsTasksAndStatus(t *testing.T) {
	m := NewModel(fakeRuns{}, nil)
	updated, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	m = updated.(Model)
	m = refreshed(t, m, RefreshMsg{Run: dashboardRun()})

	view := m.View()

	if !strings.Contains(view, "Add the new client") {
		t.Error("view missing completed task")
	}
	if !strings.Contains(view, "Swap call sites") {
		t.Error("view missing current task")
	}
	if !strings.Contains(view, "WORKING") {
		t.Error("view missing run status")
	}
	if !strings.Contains(view, "1/2") {
		t.Error("view missing task counter")
	}
}

func TestViewShowsPRStage(t *testing.T) {
	run := dashboardRun()
	run.PR = &domain.PRContext{
		Number: 42,
		Stage:  domain.StageAwaitingChecks,
		Branch: "task/testrun1-2",
	}

	m := NewModel(fakeRuns{}, nil)
	updated, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	m = updated.(Model)
	m = refreshed(t, m, RefreshMsg{Run: run})

	view := m.View()
	if !strings.Contains(view, "PR #42") {
		t.Error("view missing PR number")
	}
	if !strings.Contains(view, "task/testrun1-2") {
		t.Error("view missing PR branch")
	}
}

func TestViewShowsRecentSessions(t *testing.T) {
	recent := []*domain.SessionRecord{
		{Session: 3, Phase: domain.PhaseWorking, Outcome: domain.SessionCompleted, Duration: 90 * time.Second},
		{Session: 2, Phase: domain.PhaseWorking, Outcome: domain.SessionRetried, Error: "connection reset by peer", Duration: 5 * time.Second},
	}

	m := NewModel(fakeRuns{}, fakeSessions{records: recent})
	updated, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	m = updated.(Model)
	m = refreshed(t, m, RefreshMsg{Run: dashboardRun(), Recent: recent})

	view := m.View()
	if !strings.Contains(view, "RECENT SESSIONS") {
		t.Error("view missing sessions section")
	}
	if !strings.Contains(view, "connection reset") {
		t.Error("view missing session error preview")
	}
}

func TestViewNoRun(t *testing.T) {
	m := NewModel(fakeRuns{err: state.ErrNotFound}, nil)
	updated, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	m = updated.(Model)
	m = refreshed(t, m, RefreshMsg{Err: state.ErrNotFound})

	view := m.View()
	if !strings.Contains(view, "No active run") {
		t.Errorf("view = %q, want no-run hint", view)
	}
}

func TestViewBeforeWindowSize(t *testing.T) {
	m := NewModel(fakeRuns{}, nil)
	if got := m.View(); got != "Loading..." {
		t.Errorf("View() = %q, want Loading...", got)
	}
}

func TestScrollKeysStayInBounds(t *testing.T) {
	m := NewModel(fakeRuns{}, nil)
	m = refreshed(t, m, RefreshMsg{Run: dashboardRun()})

	key := func(s string) tea.KeyMsg {
		return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
	}

	updated, _ := m.Update(key("k"))
	m = updated.(Model)
	if m.taskScroll != 0 {
		t.Errorf("scroll above top = %d, want 0", m.taskScroll)
	}

	for i := 0; i < 5; i++ {
		updated, _ = m.Update(key("j"))
		m = updated.(Model)
	}
	if m.taskScroll != 1 {
		t.Errorf("scroll past bottom = %d, want 1", m.taskScroll)
	}
}

func TestQuitKey(t *testing.T) {
	m := NewModel(fakeRuns{}, nil)
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if cmd == nil {
		t.Fatal("q produced no command")
	}
	if msg := cmd(); msg == nil {
		t.Error("quit command returned nil message")
	} else if _, ok := msg.(tea.QuitMsg); !ok {
		t.Errorf("quit command returned %T, want tea.QuitMsg", msg)
	}
}
