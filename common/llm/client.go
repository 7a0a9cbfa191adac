package llm

import (
	"context"
	"errors"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/openai/openai-go"

	"empathos.app/relay/core/config"
)

// ErrMissingAPIKey is returned when neither the caller nor the server supplies a credential.
var ErrMissingAPIKey = errors.New("API key is required")

// Factory builds an AgentClient for the credential supplied with an operator action.
type Factory func(apiKey string) (AgentClient, error)

// NewFactory returns a Factory that uses base for everything but the API key.
// An empty apiKey falls back to base.APIKey.
func NewFactory(base Config) Factory {
	return func(apiKey string) (AgentClient, error) {
		cfg := base
		if key := strings.TrimSpace(apiKey); key != "" {
			cfg.APIKey = key
		}
		if cfg.APIKey == "" {
			return nil, ErrMissingAPIKey
		}
		return NewAgentClient(cfg)
	}
}

// FromConfig maps the service configuration onto a client Config.
func FromConfig(cfg config.LLMConfig) Config {
	return Config{
		Provider:    cfg.Provider,
		APIKey:      cfg.APIKey,
		BaseURL:     cfg.BaseURL,
		Model:       cfg.Model,
		MaxTokens:   cfg.MaxTokens,
		Temperature: Temp(cfg.Temperature),
	}
}

// Error classes reported by Classify.
const (
	ErrorClassCanceled    = "canceled"
	ErrorClassRateLimited = "rate_limited"
	ErrorClassServer      = "server"
	ErrorClassClient      = "client"
	ErrorClassNetwork     = "network"
)

// Classify labels a collaborator failure for logs and metrics.
// Callers never retry on the result; any failure aborts the current step.
func Classify(err error) string {
	if err == nil {
		return ""
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return ErrorClassCanceled
	}

	var status int
	var openaiErr *openai.Error
	var anthropicErr *anthropic.Error
	switch {
	case errors.As(err, &openaiErr):
		status = openaiErr.StatusCode
	case errors.As(err, &anthropicErr):
		status = anthropicErr.StatusCode
	default:
		return ErrorClassNetwork
	}

	switch {
	case status == 429:
		return ErrorClassRateLimited
	case status >= 500:
		return ErrorClassServer
	default:
		return ErrorClassClient
	}
}
