package agent

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// taskmasterNamespace is a fixed UUID namespace for deterministic session IDs.
// The same session key always maps to the same session ID so interrupted
// sessions can be resumed.
var taskmasterNamespace = uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")

// LineFunc receives each raw stream line as the session runs
type LineFunc func(line string)

// ClaudeBackend runs sessions through the claude CLI in non-interactive
// stream-json mode.
type ClaudeBackend struct {
	// OnLine, when set, observes every output line (for run logs).
	OnLine LineFunc

	// commandContext is replaceable for tests
	commandContext func(ctx context.Context, name string, args ...string) *exec.Cmd
}

// NewClaudeBackend returns a backend that execs the claude CLI
func NewClaudeBackend() *ClaudeBackend {
	return &ClaudeBackend{commandContext: exec.CommandContext}
}

// SessionID derives the deterministic session ID for a session key
func SessionID(key string) string {
	return uuid.NewSHA1(taskmasterNamespace, []byte(key)).String()
}

// Invoke runs one agent session to completion and returns its result
func (b *ClaudeBackend) Invoke(ctx context.Context, req Request) (*Result, error) {
	sessionID := SessionID(req.SessionKey)

	args := []string{
		"--print",
		"--verbose",
		"--dangerously-skip-permissions",
		"--output-format", "stream-json",
		"--session-id", sessionID,
		"--model", ModelName(req.Model),
	}
	if tools := ToolsForPhase(req.Phase); len(tools) > 0 {
		args = append(args, "--allowed-tools", strings.Join(tools, ","))
	}
	args = append(args, "-p", req.Prompt)

	cmd := b.commandContext(ctx, "claude", args...)
	cmd.Dir = req.WorkingDir

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, err
	}

	started := time.Now()
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting claude: %w", err)
	}

	res := &Result{SessionID: sessionID}
	var streamErr string
	var mu sync.Mutex
	var wg sync.WaitGroup
	wg.Add(2)

	readLines := func(r io.Reader) {
		defer wg.Done()
		scanner := bufio.NewScanner(r)
		// stream-json lines can be very long
		buf := make([]byte, 0, 64*1024)
		scanner.Buffer(buf, 2*1024*1024)
		for scanner.Scan() {
			line := scanner.Text()
			if b.OnLine != nil {
				b.OnLine(line)
			}
			mu.Lock()
			parseStreamLine(line, res, &streamErr)
			mu.Unlock()
		}
	}
	go readLines(stdout)
	go readLines(stderr)
	wg.Wait()

	waitErr := cmd.Wait()
	res.Duration = time.Since(started)

	if waitErr != nil {
		if streamErr != "" {
			return nil, fmt.Errorf("%s: %s", waitErr.Error(), streamErr)
		}
		return nil, fmt.Errorf("claude session failed: %w", waitErr)
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	return res, nil
}

// streamMessage covers the stream-json frames we care about: result
// frames carry the final text and usage, error frames carry failures.
type streamMessage struct {
	Type    string `json:"type"`
	Subtype string `json:"subtype,omitempty"`
	Result  string `json:"result,omitempty"`
	Error   string `json:"error,omitempty"`
	IsError bool   `json:"is_error,omitempty"`
	Usage   struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage,omitempty"`
	CostUSD float64 `json:"cost_usd,omitempty"`
}

func parseStreamLine(line string, res *Result, streamErr *string) {
	if !strings.HasPrefix(line, "{") {
		return
	}
	var msg streamMessage
	if err := json.Unmarshal([]byte(line), &msg); err != nil {
		return
	}
	switch msg.Type {
	case "result":
		res.Text = msg.Result
		res.TokensInput = msg.Usage.InputTokens
		res.TokensOutput = msg.Usage.OutputTokens
		res.CostUSD = msg.CostUSD
		if msg.IsError && msg.Result != "" {
			*streamErr = msg.Result
		}
	case "error":
		if msg.Error != "" {
			*streamErr = msg.Error
		} else if msg.Subtype != "" {
			*streamErr = msg.Subtype
		}
	}
}
