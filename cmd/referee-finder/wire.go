package main

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/helixir/referee-finder/internal/config"
	"github.com/helixir/referee-finder/internal/domain"
	"github.com/helixir/referee-finder/internal/llm"
	"github.com/helixir/referee-finder/internal/observability"
	"github.com/helixir/referee-finder/internal/papersources"
	"github.com/helixir/referee-finder/internal/papersources/openalex"
	"github.com/helixir/referee-finder/internal/papersources/pubmed"
	"github.com/helixir/referee-finder/internal/papersources/semanticscholar"
	"github.com/helixir/referee-finder/internal/records"
	"github.com/helixir/referee-finder/internal/referee"
)

// sourceMetrics converts m to the interface the HTTP clients take, keeping a
// nil pointer from becoming a non-nil interface.
func sourceMetrics(m *observability.Metrics) papersources.Metrics {
	if m == nil {
		return nil
	}
	return m
}

// buildRecordSource returns the configured record store.
func buildRecordSource(cfg *config.RecordsConfig, metrics papersources.Metrics) (records.Source, error) {
	switch cfg.Source {
	case config.RecordSourceYAML:
		return records.NewFileSource(cfg.Path), nil
	case config.RecordSourceAirtable:
		return records.NewAirtableSource(records.AirtableConfig{
			BaseURL: cfg.Airtable.BaseURL,
			Token:   cfg.Airtable.Token,
			BaseID:  cfg.Airtable.BaseID,
			Table:   cfg.Airtable.Table,
			Timeout: cfg.Airtable.Timeout,
			Metrics: metrics,
		}), nil
	default:
		return nil, fmt.Errorf("unsupported record source %q", cfg.Source)
	}
}

// buildRegistry registers the three providers and applies the configured
// fallback order. Disabled providers stay registered but are skipped.
func buildRegistry(cfg *config.Config, metrics papersources.Metrics) (*papersources.Registry, error) {
	registry := papersources.NewRegistry()

	pm := cfg.PaperSources.PubMed
	registry.Register(pubmed.New(pubmed.Config{
		BaseURL:       pm.BaseURL,
		APIKey:        pm.APIKey,
		Email:         pm.Email,
		Timeout:       pm.Timeout,
		RateLimit:     pm.RateLimit,
		BurstSize:     pm.BurstSize,
		MinInterval:   pm.MinInterval,
		MaxCandidates: pm.MaxCandidates,
		MaxReferences: pm.MaxReferences,
		Enabled:       pm.Enabled,
		Metrics:       metrics,
	}))

	oa := cfg.PaperSources.OpenAlex
	registry.Register(openalex.New(openalex.Config{
		BaseURL:       oa.BaseURL,
		Email:         oa.Email,
		Timeout:       oa.Timeout,
		RateLimit:     oa.RateLimit,
		BurstSize:     oa.BurstSize,
		DailyBudget:   oa.DailyBudget,
		MaxCandidates: oa.MaxCandidates,
		MaxReferences: oa.MaxReferences,
		Enabled:       oa.Enabled,
		Metrics:       metrics,
	}))

	ss := cfg.PaperSources.SemanticScholar
	registry.Register(semanticscholar.NewClient(semanticscholar.Config{
		BaseURL:       ss.BaseURL,
		APIKey:        ss.APIKey,
		Timeout:       ss.Timeout,
		RateLimit:     ss.RateLimit,
		BurstSize:     ss.BurstSize,
		MaxReferences: ss.MaxReferences,
		Enabled:       ss.Enabled,
		Metrics:       metrics,
	}, nil))

	order := make([]domain.SourceType, len(cfg.Pipeline.ProviderOrder))
	for i, name := range cfg.Pipeline.ProviderOrder {
		order[i] = domain.SourceType(name)
	}
	if err := registry.SetOrder(order); err != nil {
		return nil, fmt.Errorf("provider order: %w", err)
	}

	return registry, nil
}

// buildExtractor returns the abstract method extractor, or nil when disabled.
func buildExtractor(cfg *config.LLMConfig) (llm.MethodExtractor, error) {
	return llm.NewMethodExtractor(llm.FactoryConfig{
		Provider:    cfg.Provider,
		Temperature: cfg.Temperature,
		Timeout:     cfg.Timeout,
		MaxRetries:  cfg.MaxRetries,
		OpenAI: llm.OpenAIConfig{
			APIKey:  cfg.OpenAI.APIKey,
			Model:   cfg.OpenAI.Model,
			BaseURL: cfg.OpenAI.BaseURL,
		},
		Anthropic: llm.AnthropicConfig{
			APIKey:  cfg.Anthropic.APIKey,
			Model:   cfg.Anthropic.Model,
			BaseURL: cfg.Anthropic.BaseURL,
		},
	})
}

// buildCoordinator wires providers, the extractor and the aggregator.
func buildCoordinator(cfg *config.Config, logger zerolog.Logger, metrics *observability.Metrics) (*referee.Coordinator, error) {
	registry, err := buildRegistry(cfg, sourceMetrics(metrics))
	if err != nil {
		return nil, err
	}

	extractor, err := buildExtractor(&cfg.LLM)
	if err != nil {
		return nil, fmt.Errorf("method extractor: %w", err)
	}
	aggregator := referee.NewAggregator(extractor, logger, metrics)
	if extractor == nil {
		var skipped []string
		for _, p := range registry.Ordered() {
			if !aggregator.TagsMethods(p) {
				skipped = append(skipped, string(p.SourceType()))
			}
		}
		logger.Info().Msg("abstract method extraction disabled")
		if len(skipped) > 0 {
			logger.Warn().
				Strs("providers", skipped).
				Msg("providers without method matching will be skipped")
		}
	}

	return referee.NewCoordinator(registry, aggregator, logger, metrics), nil
}
