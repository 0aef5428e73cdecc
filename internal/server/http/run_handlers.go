package httpserver

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/helixir/referee-finder/internal/domain"
)

// getRun handles GET /api/v1/runs/{runID}.
func (s *Server) getRun(w http.ResponseWriter, r *http.Request) {
	run, ok := s.loadRun(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, domainRunToResponse(run))
}

// getRunReferees handles GET /api/v1/runs/{runID}/referees?title=.
func (s *Server) getRunReferees(w http.ResponseWriter, r *http.Request) {
	run, ok := s.loadRun(w, r)
	if !ok {
		return
	}
	title := r.URL.Query().Get("title")
	if title != "" {
		if _, found := run.Results[title]; !found {
			writeError(w, http.StatusNotFound, "preprint not found in run")
			return
		}
	}
	writeJSON(w, http.StatusOK, domainResultsToReferees(run, title))
}

func (s *Server) loadRun(w http.ResponseWriter, r *http.Request) (*domain.RunResult, bool) {
	runID, err := uuid.Parse(chi.URLParam(r, "runID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid run ID")
		return nil, false
	}

	run, err := s.runs.GetRun(r.Context(), runID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "run not found")
			return nil, false
		}
		s.logger.Error().Err(err).Str("run_id", runID.String()).Msg("failed to load run")
		writeError(w, http.StatusInternalServerError, "failed to load run")
		return nil, false
	}
	return run, true
}
