package identity

import (
	"net"
	"net/http"
	"strings"
)

// AppIDHeader is the fixed header clients use to declare who they are.
const AppIDHeader = "X-App-Id"

// Identity is the per-request caller identity: the rate-limit key (IP)
// plus the declared application identifier, which may be empty.
type Identity struct {
	IP    string
	AppID string
}

// FromRequest resolves the caller identity from request headers and the
// transport peer address. Resolution order for the IP: first entry of
// X-Forwarded-For, then the host part of RemoteAddr, then "unknown".
func FromRequest(r *http.Request) Identity {
	return Identity{
		IP:    resolveIP(r),
		AppID: strings.TrimSpace(r.Header.Get(AppIDHeader)),
	}
}

func resolveIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		if ip := strings.TrimSpace(parts[0]); ip != "" {
			return ip
		}
	}

	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err == nil && host != "" {
		return host
	}
	if r.RemoteAddr != "" {
		return r.RemoteAddr
	}

	return "unknown"
}
