package retry

import (
	"errors"
	"strings"
	"time"

	"github.com/hochfrequenz/claude-task-master/internal/domain"
)

// ClassifiedError wraps an agent invocation failure with its
// classification so the policy can decide whether to retry.
type ClassifiedError struct {
	Class      domain.Classification
	RetryAfter time.Duration // rate-limit hint, zero when absent
	Err        error
}

func (e *ClassifiedError) Error() string {
	return string(e.Class) + ": " + e.Err.Error()
}

func (e *ClassifiedError) Unwrap() error {
	return e.Err
}

// Classify inspects an error and assigns a failure classification.
// Already-classified errors pass through unchanged.
func Classify(err error) *ClassifiedError {
	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce
	}

	msg := strings.ToLower(err.Error())

	// Content filter rejections never succeed on retry.
	if strings.Contains(msg, "content filtering") || strings.Contains(msg, "output blocked") {
		return &ClassifiedError{Class: domain.ClassContentFiltered, Err: err}
	}

	if strings.Contains(msg, "rate") && strings.Contains(msg, "limit") {
		return &ClassifiedError{
			Class:      domain.ClassRateLimited,
			RetryAfter: parseRetryAfter(msg),
			Err:        err,
		}
	}

	for _, kw := range []string{"auth", "unauthorized", "403", "401", "invalid api key", "credentials"} {
		if strings.Contains(msg, kw) {
			return &ClassifiedError{Class: domain.ClassAuthFatal, Err: err}
		}
	}

	for _, kw := range []string{"timeout", "timed out", "connect", "connection", "network", "500", "502", "503", "504", "overloaded"} {
		if strings.Contains(msg, kw) {
			return &ClassifiedError{Class: domain.ClassTransientNetwork, Err: err}
		}
	}

	if strings.Contains(msg, "working directory") || strings.Contains(msg, "no such file or directory") {
		return &ClassifiedError{Class: domain.ClassWorkingDirInvalid, Err: err}
	}

	for _, kw := range []string{"executable file not found", "command not found", "claude: not found"} {
		if strings.Contains(msg, kw) {
			return &ClassifiedError{Class: domain.ClassSDKUnavailable, Err: err}
		}
	}

	return &ClassifiedError{Class: domain.ClassUnknown, Err: err}
}

// parseRetryAfter extracts a "retry after N seconds" hint if present
func parseRetryAfter(msg string) time.Duration {
	idx := strings.Index(msg, "retry after ")
	if idx < 0 {
		return 0
	}
	rest := msg[idx+len("retry after "):]
	secs := 0
	for _, r := range rest {
		if r < '0' || r > '9' {
			break
		}
		secs = secs*10 + int(r-'0')
	}
	if secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}
