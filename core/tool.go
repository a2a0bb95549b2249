package core

import "encoding/json"

// ToolDefinition describes a callable tool: its name, a description the
// model uses to decide when to call it, and a JSON-Schema object for its
// parameters. The catalog of definitions is fixed at startup and sent
// verbatim to the model on every round.
type ToolDefinition struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"input_schema"`
}

// ToolCall is a structured request emitted by the model asking for a named
// tool to be invoked with arguments.
type ToolCall struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Input json.RawMessage `json:"input"`
}

// VisionTarget points at a document the model should read directly on the
// follow-up round.
type VisionTarget struct {
	URL      string `json:"url"`
	FileType string `json:"file_type"`
}

// ToolResult is the outcome of one tool call. Exactly one result is
// produced per call, matched to it by ToolCallID. A failed call carries
// Error and no Data; it is surfaced to the model, never to the caller.
type ToolResult struct {
	ToolCallID string          `json:"tool_call_id"`
	Data       json.RawMessage `json:"data,omitempty"`
	Error      string          `json:"error,omitempty"`

	// Vision is set when a document search matched and the orchestrator
	// should synthesize a vision follow-up turn.
	Vision *VisionTarget `json:"-"`
}

// IsError reports whether the call failed.
func (r ToolResult) IsError() bool {
	return r.Error != ""
}

// Payload returns the JSON payload sent back to the model for this result.
func (r ToolResult) Payload() string {
	if r.IsError() {
		b, _ := json.Marshal(map[string]string{"error": r.Error})
		return string(b)
	}
	return string(r.Data)
}
