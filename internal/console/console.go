package console

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/charmbracelet/lipgloss"
)

var (
	infoStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	detailStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	agentStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("13"))

	mu  sync.Mutex
	out io.Writer = os.Stdout
)

// SetOutput redirects console output, mainly for tests
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	out = w
}

func write(style lipgloss.Style, prefix, format string, args ...any) {
	mu.Lock()
	defer mu.Unlock()
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(out, style.Render(prefix+msg))
}

// Info prints an informational message
func Info(format string, args ...any) { write(infoStyle, "→ ", format, args...) }

// Success prints a success message
func Success(format string, args ...any) { write(successStyle, "✓ ", format, args...) }

// Warning prints a warning message
func Warning(format string, args ...any) { write(warningStyle, "! ", format, args...) }

// Error prints an error message
func Error(format string, args ...any) { write(errorStyle, "✗ ", format, args...) }

// Detail prints an indented secondary line
func Detail(format string, args ...any) { write(detailStyle, "  ", format, args...) }

// Agent prints a line of agent output
func Agent(format string, args ...any) { write(agentStyle, "[agent] ", format, args...) }

// Newline prints a blank line
func Newline() {
	mu.Lock()
	defer mu.Unlock()
	fmt.Fprintln(out)
}
