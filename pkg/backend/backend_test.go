package backend

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveHost(t *testing.T) {
	tests := []struct {
		name     string
		override string
		want     string
	}{
		{"empty override uses local default", "", "http://localhost:9233"},
		{"bare host gets https prefix", "api.example.com", "https://api.example.com"},
		{"https override unchanged", "https://api.example.com", "https://api.example.com"},
		{"http override also gets https prefix", "http://api.example.com", "https://http://api.example.com"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolveHost(tt.override))
		})
	}
}

func TestStreamEndpoint(t *testing.T) {
	got := StreamEndpoint(DefaultHost, "a", "b", "c")
	assert.Equal(t, "http://localhost:9233/stream/agents/a/b/c", got)
}

func TestStreamEndpointMissingIdentifiers(t *testing.T) {
	// Missing identifiers flow through as empty segments; no validation.
	got := StreamEndpoint("https://api.example.com", "", "", "")
	assert.Equal(t, "https://api.example.com/stream/agents///", got)
}
