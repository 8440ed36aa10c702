package state

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// SaveGoal writes the goal text artifact
func (m *Manager) SaveGoal(goal string) error {
	return os.WriteFile(filepath.Join(m.dir, goalFile), []byte(goal), 0644)
}

// LoadGoal reads the goal text artifact
func (m *Manager) LoadGoal() (string, error) {
	data, err := os.ReadFile(filepath.Join(m.dir, goalFile))
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// SaveCriteria writes the success-criteria artifact
func (m *Manager) SaveCriteria(criteria string) error {
	return os.WriteFile(filepath.Join(m.dir, criteriaFile), []byte(criteria), 0644)
}

// LoadCriteria reads the success-criteria artifact; empty if absent
func (m *Manager) LoadCriteria() (string, error) {
	data, err := os.ReadFile(filepath.Join(m.dir, criteriaFile))
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// SavePlan writes the plan checklist artifact
func (m *Manager) SavePlan(content []byte) error {
	return os.WriteFile(filepath.Join(m.dir, planFile), content, 0644)
}

// LoadPlan reads the plan checklist artifact; nil if absent
func (m *Manager) LoadPlan() ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(m.dir, planFile))
	if os.IsNotExist(err) {
		return nil, nil
	}
	return data, err
}

// SaveProgress writes the human-readable progress tracker
func (m *Manager) SaveProgress(progress string) error {
	return os.WriteFile(filepath.Join(m.dir, progressFile), []byte(progress), 0644)
}

// LoadContext reads the accumulated cross-session context; empty if absent
func (m *Manager) LoadContext() (string, error) {
	data, err := os.ReadFile(filepath.Join(m.dir, contextFile))
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// AppendContext adds a session summary to the accumulated context
func (m *Manager) AppendContext(session int, summary string) error {
	current, err := m.LoadContext()
	if err != nil {
		return err
	}

	entry := fmt.Sprintf("## Session %d\n\n%s", session, strings.TrimSpace(summary))
	var updated string
	if current == "" {
		updated = fmt.Sprintf("# Accumulated Context\n\n%s\n", entry)
	} else {
		updated = fmt.Sprintf("%s\n%s\n", strings.TrimRight(current, "\n"), entry)
	}
	return os.WriteFile(filepath.Join(m.dir, contextFile), []byte(updated), 0644)
}
