package judge

import (
	"context"
	"net/http"
	"time"
)

const defaultHTTPTimeout = 60 * time.Second

// Request is what every provider needs to produce one completion.
type Request struct {
	Model       string
	Prompt      Prompt
	Temperature float32
	MaxTokens   int
	APIKey      string
}

// Provider sends a completion request and returns the reply text.
type Provider interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// ProviderKind selects a Provider implementation.
type ProviderKind string

const (
	KindOpenAI ProviderKind = "openai"
	KindGemini ProviderKind = "gemini"
)

// ProviderConfig binds a persona to a provider.
type ProviderConfig struct {
	Kind        ProviderKind
	Model       string
	BaseURL     string
	Temperature float32
	MaxTokens   int
	APIKeyEnv   string
}

func newHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}
	return &http.Client{Timeout: timeout}
}
