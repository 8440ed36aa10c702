package agent

import (
	"regexp"
	"strconv"
	"strings"
)

// SessionOutcome is the decoded result of a work session's output text
type SessionOutcome struct {
	TaskComplete bool
	Blocked      bool
	BlockReason  string
	PRNumber     int    // 0 when no PR was produced
	PRURL        string // empty when no PR was produced
	Summary      string // trailing report text for context accumulation
}

var (
	prURLPattern = regexp.MustCompile(`https://github\.com/[\w.-]+/[\w.-]+/pull/(\d+)`)
	blockedLine  = regexp.MustCompile(`(?m)^\s*BLOCKED:?\s*(.*)$`)
)

// DecodeOutcome interprets a work session's final text. The markers are
// contractual with the session prompts: "TASK COMPLETE" on its own line
// signals success and "BLOCKED: <reason>" signals the agent cannot
// proceed without intervention.
func DecodeOutcome(text string) SessionOutcome {
	out := SessionOutcome{Summary: summarize(text)}

	if m := blockedLine.FindStringSubmatch(text); m != nil {
		out.Blocked = true
		out.BlockReason = strings.TrimSpace(m[1])
	}

	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == "TASK COMPLETE" {
			out.TaskComplete = true
			break
		}
	}

	if m := prURLPattern.FindStringSubmatch(text); m != nil {
		out.PRURL = m[0]
		out.PRNumber, _ = strconv.Atoi(m[1])
	}

	// A blocked signal wins over a completion marker: the agent may echo
	// instructions before reporting it is stuck.
	if out.Blocked {
		out.TaskComplete = false
	}
	return out
}

// VerificationPassed interprets a verification session's final text.
// The explicit marker is authoritative; otherwise clear negative
// indicators disqualify and positive indicators are required.
func VerificationPassed(text string) bool {
	lower := strings.ToLower(text)

	if strings.Contains(lower, "verification_result: pass") {
		return true
	}
	if strings.Contains(lower, "verification_result: fail") {
		return false
	}

	negatives := []string{
		"not met",
		"not all criteria",
		"criteria not met",
		"overall success: no",
		"criteria not satisfied",
		"verification failed",
		"cannot verify",
	}
	for _, ind := range negatives {
		if strings.Contains(lower, ind) {
			return false
		}
	}

	positives := []string{
		"all criteria met",
		"all criteria verified",
		"overall success: yes",
		"verification successful",
		"success",
	}
	for _, ind := range positives {
		if strings.Contains(lower, ind) {
			return true
		}
	}
	return false
}

// summarize keeps the tail of the session report, which carries the
// completion summary, and trims the contract markers out.
func summarize(text string) string {
	const maxSummary = 4000

	s := strings.TrimSpace(text)
	s = strings.TrimSuffix(s, "TASK COMPLETE")
	s = strings.TrimSpace(s)
	if len(s) > maxSummary {
		s = s[len(s)-maxSummary:]
		if idx := strings.IndexByte(s, '\n'); idx >= 0 {
			s = s[idx+1:]
		}
	}
	return s
}
