// Package protocol defines the WebSocket messages the control server streams
// while a script plays.
package protocol

import "autokey/internal/timeline"

// MessageType defines the type of WebSocket message
type MessageType string

const (
	// TypeRunStarted is sent when a compiled script begins playing
	TypeRunStarted MessageType = "run_started"

	// TypeProgress is sent after every dispatched event
	TypeProgress MessageType = "progress"

	// TypeDispatchError is sent when the injector rejects an event
	TypeDispatchError MessageType = "dispatch_error"

	// TypeRunFinished is sent when playback ends, successfully or not
	TypeRunFinished MessageType = "run_finished"

	// TypeStop is sent by a client to cancel the active run
	TypeStop MessageType = "stop"
)

// Message is the generic container for all WebSocket messages
type Message struct {
	Type    MessageType `json:"type"`
	RunID   string      `json:"run_id,omitempty"`
	Payload interface{} `json:"payload,omitempty"`
}

// RunStartedPayload is the payload for TypeRunStarted
type RunStartedPayload struct {
	Source string `json:"source"` // "api", "schedule:<name>", "tray"
	Events int    `json:"events"`
}

// ProgressPayload is the payload for TypeProgress and TypeDispatchError
type ProgressPayload struct {
	Index    int    `json:"index"`
	Total    int    `json:"total"`
	Event    string `json:"event"`
	OffsetMs int64  `json:"offset_ms"`
	Error    string `json:"error,omitempty"`
}

// RunFinishedPayload is the payload for TypeRunFinished
type RunFinishedPayload struct {
	Dispatched int    `json:"dispatched"`
	Failed     int    `json:"failed"`
	Cancelled  bool   `json:"cancelled"`
	ElapsedMs  int64  `json:"elapsed_ms"`
	Error      string `json:"error,omitempty"`
}

// CompileRequest is the body of POST /api/compile and POST /api/play
type CompileRequest struct {
	// Script is the text script, or a JSON recording when Recording is set
	Script    string `json:"script"`
	Recording bool   `json:"recording,omitempty"`

	// Empty or nil fields fall back to the server's playback config
	OnMalformed string `json:"on_malformed,omitempty"`
	StrictOrder *bool  `json:"strict_order,omitempty"`
}

// CompileResponse describes a compiled script
type CompileResponse struct {
	Stats  timeline.Stats `json:"stats"`
	Events []string       `json:"events"`
	Errors []string       `json:"errors,omitempty"`
}

// PlayResponse is returned when a run has been started
type PlayResponse struct {
	RunID string         `json:"run_id"`
	Stats timeline.Stats `json:"stats"`
}

// StopResponse reports whether a run was cancelled
type StopResponse struct {
	Stopped bool `json:"stopped"`
}

// ErrorResponse is the body of every non-2xx API response
type ErrorResponse struct {
	Error string `json:"error"`
}
