package ytdlp

import (
	"errors"
	"fmt"
	"strings"
)

// Output markers that indicate a failure expected to resolve itself on
// retry: rate limiting and brief network faults.
var transientMarkers = []string{
	"http error 403",
	"http error 429",
	"http error 503",
	"rate limit",
	"rate-limit",
	"timed out",
	"timeout",
	"temporary failure",
	"connection reset",
}

// ExtractionError is a failed invocation of the extraction engine.
type ExtractionError struct {
	URL       string
	Output    string // trailing engine output, for diagnostics
	Transient bool
	Err       error
}

// Error returns the failure description including the engine output
func (e *ExtractionError) Error() string {
	if e.Output != "" {
		return fmt.Sprintf("extraction failed for %s: %v: %s", e.URL, e.Err, e.Output)
	}
	return fmt.Sprintf("extraction failed for %s: %v", e.URL, e.Err)
}

// Unwrap returns the underlying error
func (e *ExtractionError) Unwrap() error {
	return e.Err
}

// IsTransient reports whether err is an extraction failure worth retrying
// in place. Anything else is escalated to the next attempt immediately.
func IsTransient(err error) bool {
	var ee *ExtractionError
	if errors.As(err, &ee) {
		return ee.Transient
	}
	return false
}

// classifyTransient scans engine output for a transient-failure signal
func classifyTransient(output string) bool {
	lower := strings.ToLower(output)
	for _, marker := range transientMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
