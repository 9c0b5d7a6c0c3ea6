package server

import (
	"encoding/json"

	"github.com/matthewbaird/pvbridge/internal/forms"
	"github.com/matthewbaird/pvbridge/internal/schema"
)

// ── Client → Server messages ────────────────────────────────────────────────

// ClientMessage is the envelope for all client-to-server WebSocket messages.
type ClientMessage struct {
	Type string          `json:"type"` // "get", "state", "set", "commit", "reset", "delete", "refresh", "advanced", "definition", "ping"
	ID   string          `json:"id"`   // Client-assigned request ID
	Data json.RawMessage `json:"data,omitempty"`
}

// ProxyData names a mirror proxy, for "get", "commit" and "reset".
type ProxyData struct {
	ProxyID forms.ID `json:"proxy_id"`
}

// SetData is the payload for "set" messages. Preview also stages the value
// on the native object without committing it.
type SetData struct {
	ProxyID forms.ID `json:"proxy_id"`
	Name    string   `json:"name"`
	Value   any      `json:"value"`
	Preview bool     `json:"preview,omitempty"`
}

// DeleteData is the payload for "delete" messages.
type DeleteData struct {
	NativeID string `json:"native_id"`
}

// AdvancedData is the payload for "advanced" messages.
type AdvancedData struct {
	Enabled bool `json:"enabled"`
}

// DefinitionRequest is the payload for "definition" messages.
type DefinitionRequest struct {
	Type string `json:"type"`
}

// ── Server → Client messages ────────────────────────────────────────────────

// ServerMessage is the envelope for all server-to-client WebSocket messages.
type ServerMessage struct {
	Type      string `json:"type"`                 // "session", "proxy", "state", "state_change", "committed", "notify", "definition", "error", "pong"
	RequestID string `json:"request_id,omitempty"` // Echoes client ID
	Data      any    `json:"data,omitempty"`
}

// SessionData carries session information.
type SessionData struct {
	SessionID string `json:"session_id"`
	Advanced  bool   `json:"advanced"`
}

// CommittedData reports the outcome of a commit.
type CommittedData struct {
	ProxyID forms.ID       `json:"proxy_id"`
	Changes int            `json:"changes"`
	Proxy   forms.Snapshot `json:"proxy"`
}

// StateChangeData carries one pushed state value.
type StateChangeData struct {
	Name  string `json:"name"`
	Value any    `json:"value"`
}

// NotifyData carries a fired notification.
type NotifyData struct {
	Name string `json:"name"`
}

// DefinitionData carries a definition and its visible layout.
type DefinitionData struct {
	Definition *schema.Definition `json:"definition"`
	Layout     *schema.Layout     `json:"layout,omitempty"`
}

// ErrorData carries an error message.
type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
