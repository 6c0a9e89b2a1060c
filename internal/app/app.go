// Package app wires configuration, the model provider and the tool registry
// into runners for the command-line and web front ends.
package app

import (
	"fmt"

	"github.com/petasbytes/chatloop/internal/config"
	"github.com/petasbytes/chatloop/internal/naver"
	"github.com/petasbytes/chatloop/internal/provider"
	"github.com/petasbytes/chatloop/internal/runner"
	"github.com/petasbytes/chatloop/tools"
)

// Env is everything a front end needs to start sessions.
type Env struct {
	Config *config.Config
	Model  provider.Model
	Tools  *tools.Registry
}

// Load reads .env and the config, validates it and builds the model.
func Load() (*Env, error) {
	if err := config.LoadDotEnv(); err != nil {
		return nil, err
	}
	cfg, err := config.Load("")
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	model, err := provider.New(cfg)
	if err != nil {
		return nil, err
	}
	return &Env{Config: cfg, Model: model, Tools: Registry(cfg)}, nil
}

// Registry returns the tools enabled by cfg. search_news needs Naver credentials.
func Registry(cfg *config.Config) *tools.Registry {
	var defs []tools.ToolDefinition
	if cfg.NewsSearchEnabled() {
		defs = append(defs, tools.SearchNewsDefinition(naver.NewClient(cfg.NaverClientID, cfg.NaverClientSecret)))
	}
	return tools.MustRegistry(defs...)
}

// RunnerOptions maps cfg onto runner options; extra options are applied last.
func RunnerOptions(cfg *config.Config, extra ...runner.Option) []runner.Option {
	opts := []runner.Option{
		runner.WithSystemPrompt(cfg.SystemPrompt),
		runner.WithStreaming(cfg.Stream),
		runner.WithMaxToolRounds(cfg.MaxToolRounds),
		runner.WithToolTimeout(cfg.ToolTimeout),
		runner.WithModelTimeout(cfg.ModelTimeout),
		runner.WithTokenBudget(cfg.TokenBudget),
	}
	return append(opts, extra...)
}

// NewRunner starts a session.
func (e *Env) NewRunner(extra ...runner.Option) *runner.Runner {
	return runner.New(e.Model, e.Tools, RunnerOptions(e.Config, extra...)...)
}

// Describe is a one-line startup banner.
func (e *Env) Describe() string {
	return fmt.Sprintf("model=%s tools=%v stream=%t", e.Model.Name(), e.Tools.Names(), e.Config.Stream)
}
