package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the referee finder.
// Metrics are organized by subsystem: runs, records, preprints, providers,
// references, sources, LLM extraction and result events. All counters and
// histograms are registered via promauto with the default Prometheus registry.
type Metrics struct {
	// RunsStarted counts pipeline runs initiated.
	RunsStarted prometheus.Counter

	// RunsCompleted counts runs that processed every eligible preprint.
	RunsCompleted prometheus.Counter

	// RunsCancelled counts runs stopped by an interrupt before the last preprint.
	RunsCancelled prometheus.Counter

	// RunDuration observes the end-to-end duration of runs in seconds.
	RunDuration prometheus.Histogram

	// RecordsLoaded counts preprint records read from the record source, labeled by source.
	RecordsLoaded *prometheus.CounterVec

	// RecordsSkipped counts records dropped before processing, labeled by reason.
	RecordsSkipped *prometheus.CounterVec

	// PreprintsProcessed counts preprints by outcome (succeeded, exhausted, no_methods, skipped).
	PreprintsProcessed *prometheus.CounterVec

	// PreprintDuration observes the time spent on one preprint across all providers.
	PreprintDuration prometheus.Histogram

	// ProviderAttempts counts provider passes, labeled by provider and result.
	ProviderAttempts *prometheus.CounterVec

	// ProviderAttemptDuration observes a single provider pass in seconds, labeled by provider.
	ProviderAttemptDuration *prometheus.HistogramVec

	// ReferencesFetched counts reference records described, labeled by provider.
	ReferencesFetched *prometheus.CounterVec

	// ReferencesSkipped counts references dropped after a per-item failure, labeled by provider and error type.
	ReferencesSkipped *prometheus.CounterVec

	// ReferencesQualifying counts references that passed the methods filter, labeled by provider.
	ReferencesQualifying *prometheus.CounterVec

	// RefereesSuggested counts candidate referees added to result maps.
	RefereesSuggested prometheus.Counter

	// RefereesPerPreprint observes the number of candidate referees per successful preprint.
	RefereesPerPreprint prometheus.Histogram

	// SourceRequestsTotal counts HTTP requests to provider APIs, labeled by source and endpoint.
	SourceRequestsTotal *prometheus.CounterVec

	// SourceRequestsFailed counts failed HTTP requests to provider APIs, labeled by source, endpoint, and error type.
	SourceRequestsFailed *prometheus.CounterVec

	// SourceRequestDuration observes HTTP request duration to provider APIs in seconds.
	SourceRequestDuration *prometheus.HistogramVec

	// SourceRateLimited counts rate-limited responses from provider APIs, labeled by source.
	SourceRateLimited *prometheus.CounterVec

	// LLMRequestsTotal counts LLM API requests, labeled by operation and model.
	LLMRequestsTotal *prometheus.CounterVec

	// LLMRequestsFailed counts failed LLM API requests, labeled by operation, model, and error type.
	LLMRequestsFailed *prometheus.CounterVec

	// LLMRequestDuration observes LLM API request duration in seconds, labeled by operation and model.
	LLMRequestDuration *prometheus.HistogramVec

	// EventsPublished counts result events written to the broker, labeled by event type.
	EventsPublished *prometheus.CounterVec

	// EventsFailed counts result events that could not be written, labeled by event type.
	EventsFailed *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all metrics initialized.
// The namespace is used as a prefix for all metric names.
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		// Runs
		RunsStarted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_started_total",
			Help:      "Total number of referee finder runs started",
		}),
		RunsCompleted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_completed_total",
			Help:      "Total number of referee finder runs completed",
		}),
		RunsCancelled: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_cancelled_total",
			Help:      "Total number of referee finder runs cancelled",
		}),
		RunDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Duration of referee finder runs in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600, 1200, 1800, 3600},
		}),

		// Records
		RecordsLoaded: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_loaded_total",
			Help:      "Total number of preprint records loaded",
		}, []string{"source"}),
		RecordsSkipped: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_skipped_total",
			Help:      "Total number of preprint records skipped before processing",
		}, []string{"reason"}),

		// Preprints
		PreprintsProcessed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "preprints_processed_total",
			Help:      "Total number of preprints processed, by outcome",
		}, []string{"outcome"}),
		PreprintDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "preprint_duration_seconds",
			Help:      "Time spent on a single preprint in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
		}),

		// Providers
		ProviderAttempts: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_attempts_total",
			Help:      "Total number of provider attempts, by provider and result",
		}, []string{"provider", "result"}),
		ProviderAttemptDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "provider_attempt_duration_seconds",
			Help:      "Duration of a single provider attempt in seconds",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}, []string{"provider"}),

		// References
		ReferencesFetched: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "references_fetched_total",
			Help:      "Total number of reference records fetched",
		}, []string{"provider"}),
		ReferencesSkipped: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "references_skipped_total",
			Help:      "Total number of references skipped after a fetch failure",
		}, []string{"provider", "error_type"}),
		ReferencesQualifying: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "references_qualifying_total",
			Help:      "Total number of references sharing a method with their preprint",
		}, []string{"provider"}),

		// Referees
		RefereesSuggested: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "referees_suggested_total",
			Help:      "Total number of candidate referees suggested",
		}),
		RefereesPerPreprint: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "referees_per_preprint",
			Help:      "Distribution of candidate referees per successful preprint",
			Buckets:   []float64{1, 2, 5, 10, 20, 50, 100, 200},
		}),

		// Sources
		SourceRequestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_requests_total",
			Help:      "Total number of requests to provider APIs",
		}, []string{"source", "endpoint"}),
		SourceRequestsFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_requests_failed_total",
			Help:      "Total number of failed requests to provider APIs",
		}, []string{"source", "endpoint", "error_type"}),
		SourceRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "source_request_duration_seconds",
			Help:      "Duration of requests to provider APIs in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"source", "endpoint"}),
		SourceRateLimited: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_rate_limited_total",
			Help:      "Total number of rate-limited responses from provider APIs",
		}, []string{"source"}),

		// LLM
		LLMRequestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_requests_total",
			Help:      "Total number of LLM API requests",
		}, []string{"operation", "model"}),
		LLMRequestsFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_requests_failed_total",
			Help:      "Total number of failed LLM API requests",
		}, []string{"operation", "model", "error_type"}),
		LLMRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "llm_request_duration_seconds",
			Help:      "Duration of LLM API requests in seconds",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60},
		}, []string{"operation", "model"}),

		// Events
		EventsPublished: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Total number of result events published",
		}, []string{"event_type"}),
		EventsFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_failed_total",
			Help:      "Total number of result events that failed to publish",
		}, []string{"event_type"}),
	}
}

// RecordRunStarted records that a run has started.
func (m *Metrics) RecordRunStarted() {
	m.RunsStarted.Inc()
}

// RecordRunCompleted records a run that processed every record, with its duration.
func (m *Metrics) RecordRunCompleted(durationSeconds float64) {
	m.RunsCompleted.Inc()
	m.RunDuration.Observe(durationSeconds)
}

// RecordRunCancelled records a run stopped early, with its duration.
func (m *Metrics) RecordRunCancelled(durationSeconds float64) {
	m.RunsCancelled.Inc()
	m.RunDuration.Observe(durationSeconds)
}

// RecordRecordsLoaded records count records read from source.
func (m *Metrics) RecordRecordsLoaded(source string, count int) {
	m.RecordsLoaded.WithLabelValues(source).Add(float64(count))
}

// RecordRecordSkipped records a record dropped before processing.
func (m *Metrics) RecordRecordSkipped(reason string) {
	m.RecordsSkipped.WithLabelValues(reason).Inc()
}

// RecordPreprintProcessed records the outcome of one preprint and the time spent on it.
func (m *Metrics) RecordPreprintProcessed(outcome string, durationSeconds float64) {
	m.PreprintsProcessed.WithLabelValues(outcome).Inc()
	m.PreprintDuration.Observe(durationSeconds)
}

// RecordProviderAttempt records a provider pass. result is "succeeded",
// "empty", or an error kind.
func (m *Metrics) RecordProviderAttempt(provider, result string, durationSeconds float64) {
	m.ProviderAttempts.WithLabelValues(provider, result).Inc()
	m.ProviderAttemptDuration.WithLabelValues(provider).Observe(durationSeconds)
}

// RecordReferencesFetched records count references described by provider.
func (m *Metrics) RecordReferencesFetched(provider string, count int) {
	m.ReferencesFetched.WithLabelValues(provider).Add(float64(count))
}

// RecordReferenceSkipped records a reference dropped after a per-item failure.
func (m *Metrics) RecordReferenceSkipped(provider, errorType string) {
	m.ReferencesSkipped.WithLabelValues(provider, errorType).Inc()
}

// RecordReferencesQualifying records count references that passed the filter.
func (m *Metrics) RecordReferencesQualifying(provider string, count int) {
	m.ReferencesQualifying.WithLabelValues(provider).Add(float64(count))
}

// RecordRefereesSuggested records the referees found for one preprint.
func (m *Metrics) RecordRefereesSuggested(count int) {
	m.RefereesSuggested.Add(float64(count))
	m.RefereesPerPreprint.Observe(float64(count))
}

// RecordSourceRequest records a completed provider API request.
func (m *Metrics) RecordSourceRequest(source, endpoint string, durationSeconds float64) {
	m.SourceRequestsTotal.WithLabelValues(source, endpoint).Inc()
	m.SourceRequestDuration.WithLabelValues(source, endpoint).Observe(durationSeconds)
}

// RecordSourceRequestFailed records a failed provider API request.
func (m *Metrics) RecordSourceRequestFailed(source, endpoint, errorType string) {
	m.SourceRequestsFailed.WithLabelValues(source, endpoint, errorType).Inc()
}

// RecordSourceRateLimited records a rate-limited response from a provider API.
func (m *Metrics) RecordSourceRateLimited(source string) {
	m.SourceRateLimited.WithLabelValues(source).Inc()
}

// RecordLLMRequest records a successful LLM API request.
func (m *Metrics) RecordLLMRequest(operation, model string, durationSeconds float64) {
	m.LLMRequestsTotal.WithLabelValues(operation, model).Inc()
	m.LLMRequestDuration.WithLabelValues(operation, model).Observe(durationSeconds)
}

// RecordLLMRequestFailed records a failed LLM API request.
func (m *Metrics) RecordLLMRequestFailed(operation, model, errorType string) {
	m.LLMRequestsFailed.WithLabelValues(operation, model, errorType).Inc()
}

// RecordEventPublished records a result event written to the broker.
func (m *Metrics) RecordEventPublished(eventType string) {
	m.EventsPublished.WithLabelValues(eventType).Inc()
}

// RecordEventFailed records a result event that could not be written.
func (m *Metrics) RecordEventFailed(eventType string) {
	m.EventsFailed.WithLabelValues(eventType).Inc()
}
