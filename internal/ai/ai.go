// Package ai holds thin clients for hosted text-generation APIs.
package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/spec-kit/helpdesk/internal/config"
)

// ErrNotConfigured is returned when no API key is available.
var ErrNotConfigured = errors.New("ai: api key not configured")

// Prompt is a single stateless generation request.
type Prompt struct {
	System string
	User   string
}

// Generator produces text for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt Prompt) (string, error)
}

// UpstreamError reports a failed call to the provider: transport errors,
// non-2xx statuses and unusable response bodies.
type UpstreamError struct {
	Provider string
	Status   int
	Err      error
}

func (e *UpstreamError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s upstream error %d: %v", e.Provider, e.Status, e.Err)
	}
	return fmt.Sprintf("%s upstream error: %v", e.Provider, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// New returns the Generator selected by cfg.Provider. A missing key still
// yields a Generator; its calls fail with ErrNotConfigured.
func New(cfg config.AIConfig) (Generator, error) {
	client := &http.Client{Timeout: cfg.Timeout()}
	switch cfg.Provider {
	case "", "gemini":
		return NewGemini(cfg.APIKey, cfg.Model, cfg.BaseURL, client), nil
	case "openai":
		return NewOpenAI(cfg.APIKey, cfg.Model, cfg.BaseURL, client), nil
	default:
		return nil, fmt.Errorf("unknown AI_PROVIDER %q", cfg.Provider)
	}
}
