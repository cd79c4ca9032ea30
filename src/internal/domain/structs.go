package domain

import "encoding/json"

// Constants
const (
	Version = "0.1.0"

	DefaultPort       = 8765
	DefaultHost       = "localhost"
	DefaultBinary     = "/opt/homebrew/bin/logseq"
	DefaultConverter  = "jet"
	DefaultJournalURL = "http://127.0.0.1:12315/api"
	LogFileName       = "logseq-http-server.log"

	BinaryEnv    = "LOGSEQ_BIN"
	ConverterEnv = "LOGSEQ_JET_BIN"
	TokenEnv     = "LOGSEQ_API_SERVER_TOKEN"
)

// Log categories. The privacy filter matches on these exactly.
const (
	CategoryKey       = "category"
	CategoryLifecycle = "lifecycle"
	CategoryRequest   = "request"
	CategoryError     = "error"
)

// CommandResult is the outcome of one CLI invocation. Field order is the wire order.
type CommandResult struct {
	Success    bool            `json:"success"`
	Stdout     *string         `json:"stdout,omitempty"`
	Stderr     *string         `json:"stderr,omitempty"`
	ReturnCode *int            `json:"returncode,omitempty"`
	Data       json.RawMessage `json:"data,omitempty"`
	Error      string          `json:"error,omitempty"`
}

// Invoked reports whether the process actually ran to completion.
func (r CommandResult) Invoked() bool {
	return r.ReturnCode != nil
}

// JournalResult is the outcome of one appendBlockInPage call.
type JournalResult struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// RequestBody is the union of every POST body field the bridge understands.
type RequestBody struct {
	Graph   string `json:"graph"`
	Query   string `json:"query"`
	Content string `json:"content"`
	Token   string `json:"token"`
}

type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

type MessageResponse struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

type HealthResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

type VersionResponse struct {
	Version string `json:"version"`
}

// JournalRequest is the JSON-RPC-like payload of the Logseq desktop API.
type JournalRequest struct {
	Method string   `json:"method"`
	Args   []string `json:"args"`
}

// SocketRequest is one frame on the /ws command channel.
type SocketRequest struct {
	ID     string            `json:"id"`
	Method string            `json:"method"`
	Path   string            `json:"path"`
	Params map[string]string `json:"params,omitempty"`
	Body   json.RawMessage   `json:"body,omitempty"`
}

type SocketResponse struct {
	ID     string          `json:"id"`
	Status int             `json:"status"`
	Body   json.RawMessage `json:"body"`
}
