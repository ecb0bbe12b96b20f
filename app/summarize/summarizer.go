package summarize

import (
	"context"
	"fmt"
	"strings"
	"time"
)

const (
	ProviderExtractive = "extractive"
	ProviderOpenAI     = "openai"
)

type Summarizer interface {
	Summarize(ctx context.Context, text string) (string, error)
}

type Config struct {
	Provider     string
	Endpoint     string
	Model        string
	APIKey       string
	SystemPrompt string
	Timeout      time.Duration
	MaxChars     int
}

// New builds the configured summarizer. A remote provider without
// credentials is a configuration error.
func New(cfg Config) (Summarizer, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", ProviderExtractive:
		return NewExtractive(cfg.MaxChars), nil
	case ProviderOpenAI:
		return NewOpenAIClient(cfg)
	default:
		return nil, fmt.Errorf("unknown summarizer provider: %s", cfg.Provider)
	}
}
