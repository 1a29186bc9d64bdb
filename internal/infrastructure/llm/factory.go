package llm

import (
	"fmt"

	"NewsRelay/internal/ports"
)

// Kinds of provider endpoints.
const (
	KindGemini       = "gemini"
	KindOpenAI       = "openai"
	KindPollinations = "pollinations"
)

// New returns the generator for kind.
func New(kind string, opts Options) (ports.TextGenerator, error) {
	switch kind {
	case KindGemini:
		return NewGeminiClient(opts), nil
	case KindOpenAI:
		return NewChatClient(opts), nil
	case KindPollinations:
		return NewPollinationsClient(opts), nil
	default:
		return nil, fmt.Errorf("unknown llm kind %q", kind)
	}
}

// Usable reports whether a provider of kind can run with the given key.
// Only the keyless endpoint works without one.
func Usable(kind, apiKey string) bool {
	return apiKey != "" || kind == KindPollinations
}
