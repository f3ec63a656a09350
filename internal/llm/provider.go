package llm

import (
	"context"

	"github.com/mlpierce22/triplechat/internal/chat"
)

// DefaultSystemPrompt is applied when a request does not carry its own.
const DefaultSystemPrompt = "You are a helpful, friendly, assistant."

// DefaultMaxTokens bounds a single completion when the request leaves it zero.
const DefaultMaxTokens = 800

// EventType identifies the kind of streaming event a provider emits.
type EventType int

const (
	EventTextDelta EventType = iota
	EventError
	EventDone
)

// Event is one unit of a provider stream.
type Event struct {
	Type EventType
	Text string
	Err  error
}

// Stream delivers provider events until EventDone or io.EOF. Close releases
// the underlying request; it is safe to call more than once.
type Stream interface {
	Recv() (Event, error)
	Close() error
}

// Request is a provider-agnostic completion request.
type Request struct {
	Messages     []chat.Message
	Model        string
	SystemPrompt string
	MaxTokens    int
	Temperature  float64
}

// SetDefaults fills in the system prompt and token budget when unset.
func (r *Request) SetDefaults() {
	if r.SystemPrompt == "" {
		r.SystemPrompt = DefaultSystemPrompt
	}
	if r.MaxTokens <= 0 {
		r.MaxTokens = DefaultMaxTokens
	}
}

// Provider streams completions from one upstream model API.
type Provider interface {
	Name() string
	Stream(ctx context.Context, req Request) (Stream, error)
}
