package tui

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/hochfrequenz/claude-task-master/internal/domain"
	"github.com/hochfrequenz/claude-task-master/internal/state"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205")).
			Padding(0, 1)

	headerStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("236")).
			Foreground(lipgloss.Color("255")).
			Padding(0, 1)

	sectionStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)

	doneStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42"))

	currentStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214"))

	pendingStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("244"))

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	statusBarStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("236")).
			Foreground(lipgloss.Color("255"))
)

// View renders the dashboard
func (m Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	var b strings.Builder

	b.WriteString(headerStyle.Width(m.width).Render(m.headerLine()))
	b.WriteString("\n")

	if m.loadErr != nil {
		if errors.Is(m.loadErr, state.ErrNotFound) {
			b.WriteString(pendingStyle.Render("  No active run. Start one with `claude-tm start`."))
		} else {
			b.WriteString(warnStyle.Render(fmt.Sprintf("  Error loading state: %v", m.loadErr)))
		}
		b.WriteString("\n")
		b.WriteString(statusBarStyle.Width(m.width).Render(" [r]efresh [q]uit "))
		return b.String()
	}

	if m.run == nil {
		b.WriteString(statusBarStyle.Width(m.width).Render(" [r]efresh [q]uit "))
		return b.String()
	}

	b.WriteString(sectionStyle.Width(m.width - 2).Render(m.renderTasks()))
	b.WriteString("\n")

	if m.run.PR != nil {
		b.WriteString(sectionStyle.Width(m.width - 2).Render(m.renderPR()))
		b.WriteString("\n")
	}

	if len(m.recent) > 0 {
		b.WriteString(sectionStyle.Width(m.width - 2).Render(m.renderSessions()))
		b.WriteString("\n")
	}

	b.WriteString(statusBarStyle.Width(m.width).Render(" [j/k]scroll [r]efresh [q]uit "))
	return b.String()
}

func (m Model) headerLine() string {
	run := m.run
	if run == nil {
		return " Claude Task Master "
	}

	done := 0
	for _, t := range run.Tasks {
		if t.Done {
			done++
		}
	}

	sessions := fmt.Sprintf("%d", run.SessionCount)
	if run.Options.MaxSessions > 0 {
		sessions = fmt.Sprintf("%d/%d", run.SessionCount, run.Options.MaxSessions)
	}

	return fmt.Sprintf(" Claude Task Master │ %s │ Tasks: %d/%d │ Sessions: %s │ %s ",
		statusLabel(run.Status), done, len(run.Tasks), sessions, truncate(run.Goal, 40))
}

func statusLabel(s domain.RunStatus) string {
	switch s {
	case domain.RunWorking, domain.RunPlanning:
		return currentStyle.Render(strings.ToUpper(string(s)))
	case domain.RunSuccess:
		return doneStyle.Render("SUCCESS")
	case domain.RunBlocked, domain.RunFailed:
		return warnStyle.Render(strings.ToUpper(string(s)))
	default:
		return pendingStyle.Render(strings.ToUpper(string(s)))
	}
}

func (m Model) renderTasks() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("TASKS"))
	b.WriteString("\n")

	run := m.run
	if len(run.Tasks) == 0 {
		b.WriteString(pendingStyle.Render("  Planning in progress..."))
		return b.String()
	}

	next := run.NextTask()
	maxVisible := 12
	start := m.taskScroll
	if start >= len(run.Tasks) {
		start = 0
	}
	end := start + maxVisible
	if end > len(run.Tasks) {
		end = len(run.Tasks)
	}

	for i := start; i < end; i++ {
		t := run.Tasks[i]
		switch {
		case t.Done:
			b.WriteString(doneStyle.Render(fmt.Sprintf("  ✓ %s", truncate(t.Description, m.width-8))))
		case next != nil && t.Index == next.Index:
			b.WriteString(currentStyle.Render(fmt.Sprintf("  → %s", truncate(t.Description, m.width-8))))
		default:
			b.WriteString(pendingStyle.Render(fmt.Sprintf("  ○ %s", truncate(t.Description, m.width-8))))
		}
		b.WriteString("\n")
	}

	if len(run.Tasks) > maxVisible {
		b.WriteString(pendingStyle.Render(fmt.Sprintf("  %d-%d of %d (j/k to scroll)",
			start+1, end, len(run.Tasks))))
		b.WriteString("\n")
	}

	return strings.TrimSuffix(b.String(), "\n")
}

func (m Model) renderPR() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("SUBMISSION"))
	b.WriteString("\n")

	pr := m.run.PR
	stageStyle := currentStyle
	switch pr.Stage {
	case domain.StageMerged:
		stageStyle = doneStyle
	case domain.StageChecksFailed:
		stageStyle = warnStyle
	}

	b.WriteString(fmt.Sprintf("  PR #%d on %s  %s",
		pr.Number, pr.Branch, stageStyle.Render(string(pr.Stage))))
	return b.String()
}

func (m Model) renderSessions() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("RECENT SESSIONS"))
	b.WriteString("\n")

	for _, rec := range m.recent {
		var icon string
		var style lipgloss.Style
		switch rec.Outcome {
		case domain.SessionCompleted:
			icon = "✓"
			style = doneStyle
		case domain.SessionRetried:
			icon = "↻"
			style = currentStyle
		case domain.SessionBlocked:
			icon = "■"
			style = warnStyle
		default:
			icon = "✗"
			style = warnStyle
		}

		line := fmt.Sprintf("  %s #%-3d %-12s %6s",
			icon, rec.Session, rec.Phase, rec.Duration.Round(time.Second))
		if rec.Error != "" {
			line += "  " + truncate(rec.Error, 40)
		}
		b.WriteString(style.Render(line))
		b.WriteString("\n")
	}

	return strings.TrimSuffix(b.String(), "\n")
}

func truncate(s string, max int) string {
	if max < 4 {
		max = 4
	}
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}
