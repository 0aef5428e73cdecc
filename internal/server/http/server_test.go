package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/referee-finder/internal/database"
	"github.com/helixir/referee-finder/internal/domain"
)

// mockRunRepo implements repository.RunRepository for handler tests.
type mockRunRepo struct {
	getFn func(ctx context.Context, id uuid.UUID) (*domain.RunResult, error)
}

func (m *mockRunRepo) SaveRun(_ context.Context, _ *domain.RunResult) error { return nil }

func (m *mockRunRepo) GetRun(ctx context.Context, id uuid.UUID) (*domain.RunResult, error) {
	if m.getFn != nil {
		return m.getFn(ctx, id)
	}
	return nil, domain.NewNotFoundError("run", id.String())
}

type stubHealth struct {
	status database.HealthStatus
}

func (s stubHealth) Health(context.Context) database.HealthStatus { return s.status }

func newTestServer(opts ...Option) *Server {
	return NewServer(Config{Address: "127.0.0.1:0"}, zerolog.Nop(), opts...)
}

func doRequest(t *testing.T, s *Server, target string) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, target, nil))
	return rr
}

func testRun() *domain.RunResult {
	started := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	run := &domain.RunResult{
		RunID:      uuid.MustParse("7d9f0c1e-3b7a-4a51-9d9e-1f1e0c7a2b44"),
		StartedAt:  started,
		FinishedAt: started.Add(90 * time.Second),
		Results: domain.ResultMap{
			"Emetine inhibits Zika replication": {
				{
					ReferenceID:    "31234567",
					ReferenceTitle: "Cryo-EM of flavivirus NS5",
					Authors: []domain.Author{
						{Name: "Ana Lopez", Affiliation: "Univ A"},
						{Name: "Ben Okafor", Affiliation: domain.DefaultAffiliation},
					},
				},
			},
			"Arbovirus surveillance in Brazil": {
				{
					ReferenceID:    "30000001",
					ReferenceTitle: "Mosquito pool sequencing",
					Authors:        []domain.Author{{Name: "Chen Wei", Affiliation: "Inst B"}},
				},
			},
		},
		Summaries: []domain.PreprintSummary{
			{Title: "Emetine inhibits Zika replication", Outcome: domain.OutcomeSucceeded, FinalState: domain.StatePrimaryIndex},
			{Title: "Arbovirus surveillance in Brazil", Outcome: domain.OutcomeSucceeded, FinalState: domain.StateSecondaryIndex},
			{Title: "Mayaro virus survey", Outcome: domain.OutcomeExhausted, FinalState: domain.StateExhausted},
		},
	}
	return run
}

func TestHealthHandler(t *testing.T) {
	t.Run("ok without database", func(t *testing.T) {
		rr := doRequest(t, newTestServer(), "/healthz")
		assert.Equal(t, http.StatusOK, rr.Code)
		assert.JSONEq(t, `{"status":"ok"}`, rr.Body.String())
	})

	t.Run("healthy database", func(t *testing.T) {
		s := newTestServer(WithHealthChecker(stubHealth{database.HealthStatus{Status: "healthy"}}))
		rr := doRequest(t, s, "/healthz")
		assert.Equal(t, http.StatusOK, rr.Code)
		assert.JSONEq(t, `{"status":"ok","database":"healthy"}`, rr.Body.String())
	})

	t.Run("unhealthy database", func(t *testing.T) {
		s := newTestServer(WithHealthChecker(stubHealth{database.HealthStatus{Status: "unhealthy", Error: "connection refused"}}))
		rr := doRequest(t, s, "/healthz")
		assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
		assert.Contains(t, rr.Body.String(), "connection refused")
	})
}

func TestReadinessHandler(t *testing.T) {
	t.Run("ready without database", func(t *testing.T) {
		rr := doRequest(t, newTestServer(), "/readyz")
		assert.Equal(t, http.StatusOK, rr.Code)
	})

	t.Run("reports pool stats", func(t *testing.T) {
		s := newTestServer(WithHealthChecker(stubHealth{database.HealthStatus{Status: "healthy", MaxConns: 5, IdleConns: 2}}))
		rr := doRequest(t, s, "/readyz")
		require.Equal(t, http.StatusOK, rr.Code)

		var body struct {
			Status   string                `json:"status"`
			Database database.HealthStatus `json:"database"`
		}
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
		assert.Equal(t, "ready", body.Status)
		assert.Equal(t, int32(5), body.Database.MaxConns)
	})

	t.Run("not ready", func(t *testing.T) {
		s := newTestServer(WithHealthChecker(stubHealth{database.HealthStatus{Status: "unhealthy"}}))
		rr := doRequest(t, s, "/readyz")
		assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	})
}

func TestMetricsRoute(t *testing.T) {
	t.Run("serves default registry", func(t *testing.T) {
		rr := doRequest(t, newTestServer(), "/metrics")
		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, rr.Body.String(), "go_goroutines")
	})

	t.Run("custom path and handler", func(t *testing.T) {
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("custom_metric 1\n"))
		})
		s := NewServer(Config{MetricsPath: "/internal/metrics"}, zerolog.Nop(), WithMetricsHandler(handler))

		rr := doRequest(t, s, "/internal/metrics")
		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "custom_metric 1\n", rr.Body.String())

		rr = doRequest(t, s, "/metrics")
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})

	t.Run("disabled", func(t *testing.T) {
		s := NewServer(Config{DisableMetrics: true}, zerolog.Nop())
		rr := doRequest(t, s, "/metrics")
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})
}

func TestGetRun(t *testing.T) {
	run := testRun()
	repo := &mockRunRepo{getFn: func(_ context.Context, id uuid.UUID) (*domain.RunResult, error) {
		if id == run.RunID {
			return run, nil
		}
		return nil, domain.NewNotFoundError("run", id.String())
	}}
	s := newTestServer(WithRunRepository(repo))

	t.Run("returns run summary", func(t *testing.T) {
		rr := doRequest(t, s, "/api/v1/runs/"+run.RunID.String())
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
		assert.NotEmpty(t, rr.Header().Get(RequestIDHeader))

		var body runResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
		assert.Equal(t, run.RunID.String(), body.RunID)
		assert.Equal(t, 3, body.PreprintCount)
		assert.Equal(t, 2, body.SucceededCount)
		assert.Equal(t, "1m30s", body.Duration)
		require.NotNil(t, body.FinishedAt)
		require.Len(t, body.Summaries, 3)
		assert.Equal(t, domain.OutcomeExhausted, body.Summaries[2].Outcome)
	})

	t.Run("unknown run", func(t *testing.T) {
		rr := doRequest(t, s, "/api/v1/runs/"+uuid.New().String())
		assert.Equal(t, http.StatusNotFound, rr.Code)
		assert.JSONEq(t, `{"error":"run not found"}`, rr.Body.String())
	})

	t.Run("invalid run id", func(t *testing.T) {
		rr := doRequest(t, s, "/api/v1/runs/not-a-uuid")
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("repository failure", func(t *testing.T) {
		failing := newTestServer(WithRunRepository(&mockRunRepo{getFn: func(context.Context, uuid.UUID) (*domain.RunResult, error) {
			return nil, errors.New("connection reset")
		}}))
		rr := doRequest(t, failing, "/api/v1/runs/"+uuid.New().String())
		assert.Equal(t, http.StatusInternalServerError, rr.Code)
		assert.NotContains(t, rr.Body.String(), "connection reset")
	})
}

func TestGetRunReferees(t *testing.T) {
	run := testRun()
	s := newTestServer(WithRunRepository(&mockRunRepo{getFn: func(context.Context, uuid.UUID) (*domain.RunResult, error) {
		return run, nil
	}}))
	base := "/api/v1/runs/" + run.RunID.String() + "/referees"

	t.Run("all preprints sorted by title", func(t *testing.T) {
		rr := doRequest(t, s, base)
		require.Equal(t, http.StatusOK, rr.Code)

		var body listRefereesResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
		assert.Equal(t, 3, body.TotalCount)
		require.Len(t, body.Preprints, 2)
		assert.Equal(t, "Arbovirus surveillance in Brazil", body.Preprints[0].Title)
		assert.Equal(t, "Emetine inhibits Zika replication", body.Preprints[1].Title)
		assert.Equal(t, "Ana Lopez", body.Preprints[1].Referees[0].Name)
		assert.Equal(t, "31234567", body.Preprints[1].Referees[0].ReferenceID)
	})

	t.Run("filter by title", func(t *testing.T) {
		rr := doRequest(t, s, base+"?title="+url.QueryEscape("Emetine inhibits Zika replication"))
		require.Equal(t, http.StatusOK, rr.Code)

		var body listRefereesResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
		require.Len(t, body.Preprints, 1)
		assert.Equal(t, 2, body.TotalCount)
	})

	t.Run("unknown title", func(t *testing.T) {
		rr := doRequest(t, s, base+"?title=Unknown")
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})
}

func TestRunRoutesRequireRepository(t *testing.T) {
	rr := doRequest(t, newTestServer(), "/api/v1/runs/"+uuid.New().String())
	assert.Equal(t, http.StatusNotFound, rr.Code)
}
