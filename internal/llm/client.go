// Package llm is the request/response transport used by the grouping and
// flow pipelines, plus the helpers shared by both: JSON extraction from
// free text and the corrective retry state machine.
package llm

import "context"

type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

type Message struct {
	Role    MessageRole
	Content string
}

// Settings are per-request provider overrides. Zero values defer to the client.
type Settings struct {
	Model       string
	Temperature float32
	MaxTokens   int
}

type Request struct {
	// Purpose labels metrics and logs ("analyst", "architect", "flows").
	Purpose  string
	System   string
	Messages []Message
	Settings Settings
}

// Clone copies the message history so retries can extend it.
func (r Request) Clone() Request {
	out := r
	out.Messages = append([]Message(nil), r.Messages...)
	return out
}

// Client returns the free-text completion for a request. Implementations
// return ErrNotConfigured when no credential is set and honour ctx.
type Client interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// ClientFunc adapts a function to Client.
type ClientFunc func(ctx context.Context, req Request) (string, error)

func (f ClientFunc) Complete(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}
