package providers

import "context"

// Completer produces one chat completion. Implementations are safe for
// concurrent use.
type Completer interface {
	// Complete sends the request and returns the assistant's reply text.
	Complete(ctx context.Context, req CompletionRequest) (string, error)

	// Model returns the model currently in use.
	Model() string

	// Name returns the provider identifier.
	Name() string
}

// Message is one entry in the completion request.
type Message struct {
	Role    string `json:"role"` // "system", "user", "assistant"
	Content string `json:"content"`
}

// CompletionRequest contains the input for a Complete call. Zero MaxTokens
// selects the default cap; the sampling knobs are always sent, so a zero
// knob means literal zero.
type CompletionRequest struct {
	Model            string
	Messages         []Message
	Temperature      float64
	TopP             float64
	FrequencyPenalty float64
	PresencePenalty  float64
	MaxTokens        int
}
