// Package llm defines the minimal client contract the orchestrator needs
// from a chat-completion backend, plus helpers for digging structured JSON
// out of model output.
package llm

import "context"

// Message roles understood by chat-completion backends.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn of a chat conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// GenerateInput is a single completion request.
type GenerateInput struct {
	Messages    []Message
	Temperature float64
	// JSONMode asks the backend to constrain output to a JSON object.
	// Backends that cannot honor it may ignore it; callers still run the
	// response through ExtractJSON.
	JSONMode bool
}

// Response is the completion result.
type Response struct {
	Content string
}

// Client is implemented by chat-completion backends. All orchestrator
// components depend on this interface, never on a vendor SDK.
type Client interface {
	Generate(ctx context.Context, in GenerateInput) (*Response, error)
}
