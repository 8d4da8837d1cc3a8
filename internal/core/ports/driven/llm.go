package driven

import "context"

// LLMService invokes the remote generation model.
//
// The prompt is assembled exclusively by the grounding policy: retrieved or
// selected text is placed as the only source of facts and the model is
// instructed not to introduce outside knowledge. That is a textual contract
// enforced at prompt construction, not a runtime verification of output.
//
// Implementations may include:
//   - OpenAI (gpt-4o-mini and compatible chat-completion APIs)
//   - Ollama (local models)
type LLMService interface {
	// Generate produces a completion for a grounded prompt.
	Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error)

	// ModelName returns the name of the model being used.
	ModelName() string

	// Ping validates the service is reachable by making a lightweight test request.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}

// GenerateOptions configures text generation behaviour.
type GenerateOptions struct {
	// MaxTokens is the maximum number of tokens to generate.
	MaxTokens int

	// Temperature controls randomness (0.0 = deterministic, 1.0 = creative).
	Temperature float64
}
