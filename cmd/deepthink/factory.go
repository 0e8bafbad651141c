package main

import (
	"context"
	"fmt"
	"log"

	"github.com/ShayCichocki/deepthink/internal/config"
	"github.com/ShayCichocki/deepthink/internal/llm"
	"github.com/ShayCichocki/deepthink/internal/orchestrator"
	"github.com/ShayCichocki/deepthink/internal/retry"
)

// newClient creates the llm backend for the configured provider.
func newClient(ctx context.Context, cfg *config.Config) (llm.Client, error) {
	switch cfg.Provider {
	case config.ProviderAnthropic:
		var key string
		if cfg.NeedsAPIKey() {
			k, err := config.GetAPIKey(cfg)
			if err != nil {
				return nil, err
			}
			key = k
		}
		return llm.NewAnthropic(ctx, llm.AnthropicConfig{
			APIKey:        key,
			BaseURL:       cfg.Anthropic.BaseURL,
			UseAWSBedrock: cfg.Anthropic.UseBedrock,
			AWSRegion:     cfg.Anthropic.AWSRegion,
			AWSProfile:    cfg.Anthropic.AWSProfile,
		})
	case config.ProviderOllama:
		return llm.NewOllama(llm.OllamaConfig{Host: cfg.Ollama.Host})
	case config.ProviderGemini, "":
		key, err := config.GetAPIKey(cfg)
		if err != nil {
			return nil, err
		}
		return llm.NewGemini(ctx, llm.GeminiConfig{APIKey: key, BaseURL: cfg.Gemini.BaseURL})
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
	}
}

// budgetsFor resolves the configured thinking levels for model. Levels the
// model does not support are replaced and reported in the log.
func budgetsFor(cfg *config.Config, model string) orchestrator.Budgets {
	t := cfg.Thinking
	if t.Normalize(model) {
		log.Printf("[config] thinking levels adjusted for %s: planning=%s expert=%s synthesis=%s",
			model, t.Planning, t.Expert, t.Synthesis)
	}
	return orchestrator.Budgets{
		Planning:  config.ThinkingBudget(t.Planning, model),
		Expert:    config.ThinkingBudget(t.Expert, model),
		Synthesis: config.ThinkingBudget(t.Synthesis, model),
	}
}

func retryPolicy(cfg *config.Config) retry.Policy {
	p := retry.DefaultPolicy()
	p.MaxAttempts = cfg.Retry.MaxAttempts
	p.InitialDelay = cfg.Retry.InitialDelay
	p.MaxDelay = cfg.Retry.MaxDelay
	return p
}

// newEngine wires an engine from cfg. extra options are applied last.
func newEngine(client llm.Client, cfg *config.Config, logger *orchestrator.DebugLogger, extra ...orchestrator.Option) *orchestrator.Engine {
	opts := []orchestrator.Option{
		orchestrator.WithRetryPolicy(retryPolicy(cfg)),
		orchestrator.WithMaxExperts(cfg.Engine.MaxExperts),
		orchestrator.WithHistoryWindow(cfg.Engine.HistoryWindow),
		orchestrator.WithLogger(logger),
	}
	return orchestrator.New(client, append(opts, extra...)...)
}

// request builds an engine request for query against cfg.
func request(cfg *config.Config, query string, history []orchestrator.Message) orchestrator.Request {
	model := cfg.ResolvedModel()
	return orchestrator.Request{
		Query:   query,
		History: history,
		Model:   model,
		Budgets: budgetsFor(cfg, model),
	}
}
