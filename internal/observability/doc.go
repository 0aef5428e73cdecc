// Package observability provides logging and metrics support for the
// referee finder.
//
// # Overview
//
// The observability package provides:
//
//   - Structured logging with zerolog
//   - Prometheus metrics for runs, providers, and references
//   - Context helpers for propagating run data
//
// # Logging
//
// Create a logger from configuration:
//
//	cfg := observability.LoggingConfig{
//	    Level:  "info",
//	    Format: "json",
//	    Output: "stderr",
//	}
//
//	logger := observability.NewLogger(cfg)
//	logger.Info().Str("run_id", runID).Msg("run started")
//
// Add preprint and provider context to a logger:
//
//	logger = observability.WithPreprintContext(logger, rec.ID, rec.Title)
//	logger = observability.WithProviderContext(logger, "pubmed", "primary_index")
//
// # Metrics
//
// Initialize metrics:
//
//	metrics := observability.NewMetrics("referee_finder")
//
// Record metrics:
//
//	metrics.RecordProviderAttempt("openalex", "succeeded", 2.4)
//	metrics.RecordRefereesSuggested(12)
//
// *Metrics satisfies papersources.Metrics, so it can be handed to every
// provider's HTTP client.
//
// # Standard Fields
//
// Common fields used across the module:
//
//   - run_id: Pipeline run identifier
//   - record_id: Record-store identifier of the preprint
//   - preprint: Cleaned preprint title
//   - provider: Bibliographic provider (pubmed, openalex, semantic_scholar)
//   - state: Fallback state (primary_index, secondary_index, citation_database)
//   - reference_id: Provider-native identifier of a reference
//
// # Thread Safety
//
// All components are safe for concurrent use from multiple goroutines.
package observability
