package events

import (
	"fmt"
	"os/exec"
	"runtime"
)

// DesktopSink shows native desktop notifications for selected events
type DesktopSink struct {
	enabled bool
}

// NewDesktopSink creates a desktop notification sink
func NewDesktopSink(enabled bool) *DesktopSink {
	return &DesktopSink{enabled: enabled}
}

func (d *DesktopSink) Emit(ev Event) error {
	if !d.enabled {
		return nil
	}

	title, message := describe(ev)
	if title == "" {
		return nil
	}

	switch runtime.GOOS {
	case "darwin":
		script := `display notification "` + message + `" with title "` + title + `"`
		return exec.Command("osascript", "-e", script).Run()
	case "linux":
		return exec.Command("notify-send", title, message).Run()
	default:
		return nil
	}
}

// describe maps events to notification text. Session events are too
// chatty for the desktop and return empty.
func describe(ev Event) (title, message string) {
	switch ev.Type {
	case TaskCompleted:
		return "Task complete", payloadString(ev, "task")
	case TaskFailed:
		return "Task failed", payloadString(ev, "error")
	case PRCreated:
		return "PR created", payloadString(ev, "pr_url")
	case PRMerged:
		return "PR merged", fmt.Sprintf("PR #%v merged", ev.Payload["pr"])
	default:
		return "", ""
	}
}

func payloadString(ev Event, key string) string {
	if s, ok := ev.Payload[key].(string); ok {
		return s
	}
	return ""
}
