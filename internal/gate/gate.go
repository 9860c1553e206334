package gate

import (
	"net/http"
	"strings"

	"github.com/meverapp/media-gateway/internal/identity"
)

// Reason classifies why a request was denied.
type Reason string

const (
	ReasonAllowed            Reason = ""
	ReasonUnrecognizedClient Reason = "unrecognized_client"
	ReasonEndpointNotExposed Reason = "endpoint_not_exposed"
)

type Decision struct {
	Allowed bool
	Reason  Reason
}

// Gate authorizes requests against a fixed allowlist of application
// identifiers and exposed endpoint prefixes.
type Gate struct {
	allowedApps      map[string]struct{}
	exposedEndpoints []string
}

func New(allowedApps, exposedEndpoints []string) *Gate {
	apps := make(map[string]struct{}, len(allowedApps))
	for _, app := range allowedApps {
		apps[app] = struct{}{}
	}

	return &Gate{
		allowedApps:      apps,
		exposedEndpoints: exposedEndpoints,
	}
}

// Decide returns whether the caller may reach the requested path.
// The feature-config read endpoint is public: clients must be able to
// check maintenance/version status before anything else.
func (g *Gate) Decide(id identity.Identity, method, path string) Decision {
	if method == http.MethodGet && path == "/api/app-config" {
		return Decision{Allowed: true}
	}

	if _, ok := g.allowedApps[id.AppID]; !ok {
		return Decision{Reason: ReasonUnrecognizedClient}
	}

	for _, prefix := range g.exposedEndpoints {
		if strings.HasPrefix(path, prefix) {
			return Decision{Allowed: true}
		}
	}

	return Decision{Reason: ReasonEndpointNotExposed}
}
