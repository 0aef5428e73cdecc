package httpserver

import (
	"sort"
	"time"

	"github.com/helixir/referee-finder/internal/domain"
)

// Run response types for JSON serialization.

type runResponse struct {
	RunID          string                   `json:"run_id"`
	StartedAt      time.Time                `json:"started_at"`
	FinishedAt     *time.Time               `json:"finished_at,omitempty"`
	Duration       string                   `json:"duration,omitempty"`
	Cancelled      bool                     `json:"cancelled"`
	PreprintCount  int                      `json:"preprint_count"`
	SucceededCount int                      `json:"succeeded_count"`
	Summaries      []domain.PreprintSummary `json:"summaries"`
}

type refereeResponse struct {
	Name           string `json:"name"`
	Affiliation    string `json:"affiliation"`
	ExternalID     string `json:"external_id,omitempty"`
	ReferenceID    string `json:"reference_id"`
	ReferenceTitle string `json:"reference_title"`
}

type preprintRefereesResponse struct {
	Title    string            `json:"title"`
	Referees []refereeResponse `json:"referees"`
}

type listRefereesResponse struct {
	RunID      string                     `json:"run_id"`
	Preprints  []preprintRefereesResponse `json:"preprints"`
	TotalCount int                        `json:"total_count"`
}

// Converter functions

func domainRunToResponse(r *domain.RunResult) runResponse {
	summaries := r.Summaries
	if summaries == nil {
		summaries = []domain.PreprintSummary{}
	}
	resp := runResponse{
		RunID:          r.RunID.String(),
		StartedAt:      r.StartedAt,
		Cancelled:      r.Cancelled,
		PreprintCount:  len(r.Summaries),
		SucceededCount: r.Succeeded(),
		Summaries:      summaries,
	}
	if !r.FinishedAt.IsZero() {
		finished := r.FinishedAt
		resp.FinishedAt = &finished
		if d := finished.Sub(r.StartedAt); d > 0 {
			resp.Duration = d.String()
		}
	}
	return resp
}

// domainResultsToReferees flattens the result map, optionally restricted to
// one preprint title. Preprints are sorted by title; referees keep the order
// of their reference and author lists.
func domainResultsToReferees(r *domain.RunResult, title string) listRefereesResponse {
	resp := listRefereesResponse{
		RunID:     r.RunID.String(),
		Preprints: []preprintRefereesResponse{},
	}

	titles := make([]string, 0, len(r.Results))
	for t := range r.Results {
		if title != "" && t != title {
			continue
		}
		titles = append(titles, t)
	}
	sort.Strings(titles)

	for _, t := range titles {
		entry := preprintRefereesResponse{Title: t, Referees: []refereeResponse{}}
		for _, set := range r.Results[t] {
			for _, a := range set.Authors {
				entry.Referees = append(entry.Referees, refereeResponse{
					Name:           a.Name,
					Affiliation:    a.Affiliation,
					ExternalID:     a.ExternalID,
					ReferenceID:    string(set.ReferenceID),
					ReferenceTitle: set.ReferenceTitle,
				})
			}
		}
		resp.TotalCount += len(entry.Referees)
		resp.Preprints = append(resp.Preprints, entry)
	}
	return resp
}
