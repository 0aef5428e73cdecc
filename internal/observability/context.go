package observability

import (
	"context"
)

// Context keys for observability data.
type contextKey string

const (
	requestIDKey contextKey = "request_id"
	runIDKey     contextKey = "run_id"
	recordIDKey  contextKey = "record_id"
	providerKey  contextKey = "provider"
)

// WithRequestID adds a request ID to the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestIDFromContext retrieves the request ID from context.
// Returns empty string if not present.
func RequestIDFromContext(ctx context.Context) string {
	return stringValue(ctx, requestIDKey)
}

// WithRunID adds the pipeline run ID to the context.
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey, runID)
}

// RunIDFromContext retrieves the pipeline run ID from context.
// Returns empty string if not present.
func RunIDFromContext(ctx context.Context) string {
	return stringValue(ctx, runIDKey)
}

// WithRecordID adds the record-store ID of the preprint being processed.
func WithRecordID(ctx context.Context, recordID string) context.Context {
	return context.WithValue(ctx, recordIDKey, recordID)
}

// RecordIDFromContext retrieves the preprint record ID from context.
// Returns empty string if not present.
func RecordIDFromContext(ctx context.Context) string {
	return stringValue(ctx, recordIDKey)
}

// WithProvider adds the provider currently being tried to the context.
func WithProvider(ctx context.Context, provider string) context.Context {
	return context.WithValue(ctx, providerKey, provider)
}

// ProviderFromContext retrieves the provider from context.
// Returns empty string if not present.
func ProviderFromContext(ctx context.Context) string {
	return stringValue(ctx, providerKey)
}

// RunContext contains the context data for one preprint within a run.
type RunContext struct {
	RequestID string
	RunID     string
	RecordID  string
	Provider  string
}

// WithRunContextFull adds every non-empty field of rc to the context.
func WithRunContextFull(ctx context.Context, rc RunContext) context.Context {
	if rc.RequestID != "" {
		ctx = WithRequestID(ctx, rc.RequestID)
	}
	if rc.RunID != "" {
		ctx = WithRunID(ctx, rc.RunID)
	}
	if rc.RecordID != "" {
		ctx = WithRecordID(ctx, rc.RecordID)
	}
	if rc.Provider != "" {
		ctx = WithProvider(ctx, rc.Provider)
	}
	return ctx
}

// RunContextFromContext extracts all run context from the context.
func RunContextFromContext(ctx context.Context) RunContext {
	return RunContext{
		RequestID: RequestIDFromContext(ctx),
		RunID:     RunIDFromContext(ctx),
		RecordID:  RecordIDFromContext(ctx),
		Provider:  ProviderFromContext(ctx),
	}
}

func stringValue(ctx context.Context, key contextKey) string {
	if v := ctx.Value(key); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
