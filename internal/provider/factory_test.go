package provider_test

import (
	"testing"

	"github.com/petasbytes/chatloop/internal/config"
	"github.com/petasbytes/chatloop/internal/provider"
)

func TestNew_PicksAdapter(t *testing.T) {
	cases := []struct {
		provider string
		wantName string
	}{
		{config.ProviderOpenAI, "openai:m"},
		{config.ProviderAnthropic, "anthropic:m"},
	}
	for _, tc := range cases {
		t.Run(tc.provider, func(t *testing.T) {
			cfg := config.Default()
			cfg.Provider = tc.provider
			cfg.Model = "m"
			m, err := provider.New(cfg)
			if err != nil {
				t.Fatalf("unexpected err: %v", err)
			}
			if m.Name() != tc.wantName {
				t.Fatalf("name: got %q want %q", m.Name(), tc.wantName)
			}
		})
	}
}

func TestNew_UnknownProvider(t *testing.T) {
	cfg := config.Default()
	cfg.Provider = "llama"
	if _, err := provider.New(cfg); err == nil {
		t.Fatal("expected error for unknown provider")
	}
}
