package judge

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"post-judge/model"
)

// ProviderAdapter composes a Provider with prompt building, verdict
// parsing, key lookup and retries.
type ProviderAdapter struct {
	provider ProviderConfig
	client   Provider
	keys     APIKeyProvider
	retrier  *Retrier
}

// NewProviderAdapter wires an adapter around an existing Provider.
func NewProviderAdapter(cfg ProviderConfig, client Provider, keys APIKeyProvider, retrier *Retrier) *ProviderAdapter {
	if keys == nil {
		keys = EnvAPIKey
	}
	if retrier == nil {
		retrier = NewRetrier(DefaultMaxRetries, DefaultBaseDelay)
	}
	return &ProviderAdapter{provider: cfg, client: client, keys: keys, retrier: retrier}
}

// Judge validates input, calls the provider with retries and returns the
// biased Success or a classified Failure.
func (a *ProviderAdapter) Judge(ctx context.Context, body string, persona model.Persona) (Outcome, error) {
	if err := model.ValidateBody(body); err != nil {
		return nil, err
	}
	if err := model.ValidatePersona(persona); err != nil {
		return nil, err
	}

	prompt, err := BuildPrompt(persona, body)
	if err != nil {
		return nil, err
	}

	apiKey, err := a.keys(a.provider.APIKeyEnv)
	if err != nil {
		slog.Warn("judge skipped", "persona", persona, "error", err)
		return Failure{Code: model.ErrorUnknown, Err: err}, nil
	}

	req := Request{
		Model:       a.provider.Model,
		Prompt:      prompt,
		Temperature: a.provider.Temperature,
		MaxTokens:   a.provider.MaxTokens,
		APIKey:      apiKey,
	}

	var (
		scores  model.Scores
		comment string
	)
	err = a.retrier.Do(ctx, func(ctx context.Context) error {
		text, err := a.client.Complete(ctx, req)
		if err != nil {
			return err
		}
		scores, comment, err = ParseVerdict(text)
		return err
	})
	if err != nil {
		code := Classify(err)
		slog.Warn("judge failed", "persona", persona, "error_code", code, "error", err)
		return Failure{Code: code, Err: err}, nil
	}

	return Success{Scores: ApplyBias(scores, persona), Comment: comment}, nil
}

// FactoryOptions configures NewFactory.
type FactoryOptions struct {
	Providers   map[model.Persona]ProviderConfig
	Keys        APIKeyProvider
	MaxRetries  int
	BaseDelay   time.Duration
	HTTPTimeout time.Duration
}

// NewFactory returns a Factory that builds a new adapter, with its own
// HTTP client and retrier, on every call.
func NewFactory(opts FactoryOptions) Factory {
	return func(persona model.Persona) (Adapter, error) {
		cfg, ok := opts.Providers[persona]
		if !ok {
			return nil, fmt.Errorf("no provider configured for persona %q", persona)
		}
		httpClient := newHTTPClient(opts.HTTPTimeout)

		var client Provider
		switch cfg.Kind {
		case KindOpenAI:
			client = NewOpenAIProvider(cfg.BaseURL, httpClient)
		case KindGemini:
			client = NewGeminiProvider(cfg.BaseURL, httpClient)
		default:
			return nil, fmt.Errorf("unknown provider kind %q", cfg.Kind)
		}

		return NewProviderAdapter(cfg, client, opts.Keys, NewRetrier(opts.MaxRetries, opts.BaseDelay)), nil
	}
}
