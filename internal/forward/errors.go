package forward

import (
	"errors"
	"fmt"
)

// ErrNotConfigured means the upstream credential is missing. This is a fatal
// deployment problem, not something a retry can fix.
var ErrNotConfigured = errors.New("upstream API key is not configured")

// TerminalError is an upstream failure that retrying cannot help: a hard
// rejection (404/401/403) or a malformed (non-JSON) success payload.
type TerminalError struct {
	Detail string
}

func (e *TerminalError) Error() string {
	return fmt.Sprintf("upstream terminal failure: %s", e.Detail)
}

// RetriesExhaustedError means every attempt failed with a retryable error.
type RetriesExhaustedError struct {
	Attempts int
	Detail   string
}

func (e *RetriesExhaustedError) Error() string {
	return fmt.Sprintf("upstream failed after %d attempts: %s", e.Attempts, e.Detail)
}
