package forward

import (
	"errors"
	"net"
	"net/http"
	"net/url"
	"strings"
	"syscall"
)

// Outcome classifies one upstream attempt.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeRetryable
	OutcomeTerminal
)

// ClassifyStatus maps an upstream HTTP status to an outcome. Hard
// rejections are terminal; everything else non-2xx is worth one retry.
func ClassifyStatus(status int) Outcome {
	switch {
	case status >= 200 && status < 300:
		return OutcomeSuccess
	case status == http.StatusNotFound,
		status == http.StatusUnauthorized,
		status == http.StatusForbidden:
		return OutcomeTerminal
	default:
		return OutcomeRetryable
	}
}

// IsJSONContentType reports whether the upstream response claims to be JSON.
func IsJSONContentType(contentType string) bool {
	return strings.Contains(contentType, "application/json")
}

// DescribeNetworkError turns a transport error into a client-safe detail
// string. The raw error is never used directly because url.Error embeds the
// full request URL, credential included.
func DescribeNetworkError(err error) string {
	var uerr *url.Error
	if errors.As(err, &uerr) {
		err = uerr.Err
	}

	var nerr net.Error
	switch {
	case errors.As(err, &nerr) && nerr.Timeout():
		return "request timeout - upstream is not responding"
	case errors.Is(err, syscall.ECONNREFUSED):
		return "connection refused - upstream might be down"
	case errors.Is(err, syscall.ECONNRESET):
		return "connection reset by upstream"
	default:
		var derr *net.DNSError
		if errors.As(err, &derr) {
			return "DNS resolution failed - cannot reach upstream"
		}
		return "network error while contacting upstream"
	}
}
