package parser

import (
	"fmt"
	"strings"

	"github.com/hochfrequenz/claude-task-master/internal/domain"
)

// Plan is the parsed form of a plan.md checklist
type Plan struct {
	Frontmatter *Frontmatter
	Tasks       []domain.Task
	lines       []string
	taskLines   []int // line number of each task, by task index
}

// ParsePlan parses markdown checklist content into a Plan.
// Task indices are assigned in document order and are stable across
// re-serialization.
func ParsePlan(content []byte) (*Plan, error) {
	fm, body, err := ParseFrontmatter(content)
	if err != nil {
		return nil, fmt.Errorf("parsing plan frontmatter: %w", err)
	}

	p := &Plan{Frontmatter: fm, lines: strings.Split(string(body), "\n")}
	for i, line := range p.lines {
		desc, done, ok := parseChecklistLine(line)
		if !ok {
			continue
		}
		p.Tasks = append(p.Tasks, domain.Task{
			Index:       len(p.Tasks),
			Description: desc,
			Done:        done,
		})
		p.taskLines = append(p.taskLines, i)
	}
	return p, nil
}

// parseChecklistLine matches "- [ ] desc" and "- [x] desc" lines
func parseChecklistLine(line string) (desc string, done bool, ok bool) {
	trimmed := strings.TrimSpace(line)
	switch {
	case strings.HasPrefix(trimmed, "- [ ]"):
		desc = strings.TrimSpace(trimmed[5:])
	case strings.HasPrefix(trimmed, "- [x]"), strings.HasPrefix(trimmed, "- [X]"):
		desc = strings.TrimSpace(trimmed[5:])
		done = true
	default:
		return "", false, false
	}
	if desc == "" {
		return "", false, false
	}
	return desc, done, true
}

// MarkDone marks the task at index complete in the underlying document.
// Completed tasks are never unmarked.
func (p *Plan) MarkDone(index int) error {
	if index < 0 || index >= len(p.Tasks) {
		return fmt.Errorf("task index %d out of bounds (plan has %d tasks)", index, len(p.Tasks))
	}
	p.Tasks[index].Done = true
	ln := p.taskLines[index]
	p.lines[ln] = strings.Replace(p.lines[ln], "- [ ]", "- [x]", 1)
	return nil
}

// Append adds a new task line at the end of the document and returns
// its index.
func (p *Plan) Append(description string) int {
	index := len(p.Tasks)
	line := fmt.Sprintf("- [ ] %s", description)
	// Keep a blank separator if the document does not end with one
	if n := len(p.lines); n > 0 && strings.TrimSpace(p.lines[n-1]) != "" {
		p.lines = append(p.lines, "")
	}
	p.lines = append(p.lines, line)
	p.Tasks = append(p.Tasks, domain.Task{Index: index, Description: description})
	p.taskLines = append(p.taskLines, len(p.lines)-1)
	return index
}

// Render serializes the plan back to markdown, including frontmatter
// when one was present.
func (p *Plan) Render() []byte {
	body := strings.Join(p.lines, "\n")
	if p.Frontmatter == nil || p.Frontmatter.Empty() {
		return []byte(body)
	}
	return append(p.Frontmatter.Render(), []byte(body)...)
}
