package provider

import (
	"fmt"

	"github.com/petasbytes/chatloop/internal/config"
)

// New builds the adapter selected by cfg.Provider.
func New(cfg *config.Config) (Model, error) {
	s := Settings{
		Model:       cfg.Model,
		MaxTokens:   cfg.MaxTokens,
		Temperature: cfg.Temperature,
	}
	switch cfg.Provider {
	case config.ProviderOpenAI:
		s.APIKey = cfg.OpenAIAPIKey
		s.BaseURL = cfg.OpenAIBaseURL
		return NewOpenAI(s), nil
	case config.ProviderAnthropic:
		s.APIKey = cfg.AnthropicAPIKey
		return NewAnthropic(s), nil
	}
	return nil, fmt.Errorf("provider: unknown provider %q", cfg.Provider)
}
