package agent

import "github.com/hochfrequenz/claude-task-master/internal/domain"

// Model aliases accepted in plan frontmatter and config
const (
	ModelSonnet = "sonnet"
	ModelOpus   = "opus"
	ModelHaiku  = "haiku"
)

var modelNames = map[string]string{
	ModelSonnet: "claude-sonnet-4-5-20250929",
	ModelOpus:   "claude-opus-4-5-20251101",
	ModelHaiku:  "claude-haiku-4-5-20251001",
}

// ModelName resolves a model alias to its API model name.
// Unknown aliases are passed through so explicit API names keep working.
func ModelName(alias string) string {
	if name, ok := modelNames[alias]; ok {
		return name
	}
	if alias == "" {
		return modelNames[ModelSonnet]
	}
	return alias
}

// ToolsForPhase returns the allowed tool set for a session phase.
// Planning is read-only, verification adds command execution so the
// agent can run tests, working gets the full set.
func ToolsForPhase(phase domain.Phase) []string {
	switch phase {
	case domain.PhasePlanning:
		return []string{"Read", "Glob", "Grep", "WebSearch", "WebFetch"}
	case domain.PhaseVerification:
		return []string{"Read", "Glob", "Grep", "Bash"}
	default:
		return []string{"Read", "Write", "Edit", "Glob", "Grep", "Bash", "WebSearch", "WebFetch"}
	}
}
