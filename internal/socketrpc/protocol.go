// Package socketrpc exposes the inspector engine over a Unix domain socket
// using JSON-RPC 2.0, for local tooling.
package socketrpc

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// JSON-RPC 2.0 Method Reference
//
//   Method        Params                                   Result
//   ───────────   ──────────────────────────────────────   ──────────────
//   GetState      {SessionID: string}                      model.State
//   GetStats      (none)                                   model.Stats
//   GetSettings   (none)                                   model.Settings
//   Dispatch      {Envelope: object, SessionID: string}    model.Response
//
// GetState with an empty SessionID returns every session. Dispatch hands
// the envelope to the engine as if it arrived on any other transport;
// SessionID is the fallback session for entries that name none.
//
// Error codes follow JSON-RPC 2.0:
//   -32700  Parse error (malformed JSON)
//   -32601  Method not found
//   -32602  Invalid params
//   -32603  Internal error (marshal failure)

// Request is a JSON-RPC 2.0 request.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int             `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
}

// Response is a JSON-RPC 2.0 response.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int             `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// RPCError represents a JSON-RPC 2.0 error object.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string { return e.Message }

// GetStateParams are the params of GetState.
type GetStateParams struct {
	SessionID string
}

// DispatchParams are the params of Dispatch.
type DispatchParams struct {
	Envelope  json.RawMessage
	SessionID string
}

// DefaultSocketPath returns the default Unix socket path.
// It prefers $XDG_RUNTIME_DIR/pageinspect/pageinspect.sock, falling back to
// ~/.local/state/pageinspect/pageinspect.sock.
func DefaultSocketPath() string {
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return filepath.Join(dir, "pageinspect", "pageinspect.sock")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "/tmp/pageinspect.sock"
	}
	return filepath.Join(home, ".local", "state", "pageinspect", "pageinspect.sock")
}
