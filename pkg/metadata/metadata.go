// Package metadata normalizes the free-form metadata attached to agent jobs.
//
// Dispatch metadata arrives in whatever shape the dispatching application
// produced: a JSON object, a Python-repr-style string using single quotes,
// or an already-decoded map. Normalization never fails; anything
// irrecoverable degrades to an empty map and downstream consumers tolerate
// missing keys.
package metadata

import (
	"encoding/json"
	"strings"

	"github.com/rs/zerolog/log"
)

// Recognized keys in job metadata.
const (
	KeyAgentName = "agent_name"
	KeyAgentID   = "agent_id"
	KeyRunID     = "run_id"
)

// Normalize converts raw job metadata into a map. A map passes through
// unchanged, a string is parsed (with a single-quote repair fallback), and
// anything else yields an empty map.
func Normalize(raw any) map[string]any {
	switch m := raw.(type) {
	case nil:
		return map[string]any{}
	case map[string]any:
		return m
	case string:
		return normalizeString(m)
	default:
		log.Warn().Type("metadata", raw).Msg("unexpected metadata type, using default values")
		return map[string]any{}
	}
}

func normalizeString(s string) map[string]any {
	var obj map[string]any
	if err := json.Unmarshal([]byte(s), &obj); err == nil && obj != nil {
		return obj
	}

	// Some dispatchers serialize metadata as a Python dict repr; replacing
	// single quotes recovers the common case.
	repaired := strings.ReplaceAll(s, "'", `"`)
	obj = nil
	if err := json.Unmarshal([]byte(repaired), &obj); err != nil || obj == nil {
		log.Warn().Err(err).Msg("metadata normalization failed, using default values")
		return map[string]any{}
	}
	return obj
}

// String returns the string value stored under key, or "" when the key is
// absent or holds a non-string value.
func String(m map[string]any, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}
