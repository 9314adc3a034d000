// Package backend resolves the conversational-agent backend endpoint.
package backend

import (
	"fmt"
	"strings"
)

// DefaultHost is used when no engine address override is configured.
const DefaultHost = "http://localhost:9233"

const securePrefix = "https://"

// ResolveHost derives the backend base URL from the optional engine address
// override. An override without an explicit secure scheme gets one
// prepended; otherwise it passes through unchanged.
func ResolveHost(override string) string {
	if override == "" {
		return DefaultHost
	}
	if !strings.HasPrefix(override, securePrefix) {
		return securePrefix + override
	}
	return override
}

// StreamEndpoint composes the per-run streaming path from the three job
// identifiers. Identifiers are interpolated as-is: missing ones leave empty
// path segments and the result is never validated; a broken URL surfaces
// later as an LLM transport error.
func StreamEndpoint(host, agentName, agentID, runID string) string {
	return fmt.Sprintf("%s/stream/agents/%s/%s/%s", host, agentName, agentID, runID)
}
