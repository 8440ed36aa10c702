package parser

import (
	"bytes"

	"gopkg.in/yaml.v3"
)

// Frontmatter represents the optional YAML frontmatter the planning
// phase emits at the top of plan.md
type Frontmatter struct {
	Model       string `yaml:"model,omitempty"`
	AutoMerge   *bool  `yaml:"auto_merge,omitempty"`
	MaxSessions int    `yaml:"max_sessions,omitempty"`
}

// Empty returns true when no frontmatter fields are set
func (f *Frontmatter) Empty() bool {
	return f == nil || (f.Model == "" && f.AutoMerge == nil && f.MaxSessions == 0)
}

// Render serializes the frontmatter as a YAML block with --- fences
func (f *Frontmatter) Render() []byte {
	data, err := yaml.Marshal(f)
	if err != nil {
		return nil
	}
	var buf bytes.Buffer
	buf.WriteString("---\n")
	buf.Write(data)
	buf.WriteString("---\n")
	return buf.Bytes()
}

// ParseFrontmatter extracts YAML frontmatter from markdown content
// Returns the frontmatter, remaining content, and any error
func ParseFrontmatter(content []byte) (*Frontmatter, []byte, error) {
	if !bytes.HasPrefix(content, []byte("---\n")) {
		return &Frontmatter{}, content, nil
	}

	// Find end of frontmatter
	rest := content[4:]
	endIdx := bytes.Index(rest, []byte("\n---"))
	if endIdx == -1 {
		return &Frontmatter{}, content, nil
	}

	fmData := rest[:endIdx]
	remaining := rest[endIdx+4:] // skip \n---

	var fm Frontmatter
	if err := yaml.Unmarshal(fmData, &fm); err != nil {
		return nil, nil, err
	}

	return &fm, bytes.TrimLeft(remaining, "\n"), nil
}
