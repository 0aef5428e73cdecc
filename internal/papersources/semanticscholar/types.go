// Package semanticscholar provides a papersources.Provider backed by the
// Semantic Scholar Graph API. It is the citation database at the end of the
// fallback sequence.
//
// API Documentation: https://api.semanticscholar.org/api-docs/
package semanticscholar

// MatchResponse represents the response from the /paper/search/match endpoint.
type MatchResponse struct {
	// Data holds the best title match first.
	Data []PaperResult `json:"data"`
}

// PaperResult represents a single paper in the Semantic Scholar API response.
type PaperResult struct {
	// PaperID is the Semantic Scholar unique identifier for the paper.
	PaperID string `json:"paperId"`

	// Title is the title of the paper.
	Title string `json:"title"`

	// Abstract is the paper's abstract text.
	Abstract string `json:"abstract"`

	// MatchScore is set by the title match endpoint.
	MatchScore float64 `json:"matchScore,omitempty"`

	// Authors is the list of paper authors.
	Authors []Author `json:"authors"`
}

// Author represents a paper author in the Semantic Scholar API.
type Author struct {
	// AuthorID is the Semantic Scholar unique identifier for the author.
	AuthorID string `json:"authorId,omitempty"`

	// Name is the author's name.
	Name string `json:"name"`

	// Affiliations is only populated when requested via authors.affiliations.
	Affiliations []string `json:"affiliations,omitempty"`
}

// ReferencesResponse represents a page of the /paper/{id}/references endpoint.
type ReferencesResponse struct {
	Offset int         `json:"offset"`
	Next   *int        `json:"next,omitempty"`
	Data   []Reference `json:"data"`
}

// Reference wraps the cited paper. CitedPaper.PaperID is empty for
// references Semantic Scholar could not link.
type Reference struct {
	CitedPaper PaperResult `json:"citedPaper"`
}

// ErrorResponse represents an error response from the Semantic Scholar API.
type ErrorResponse struct {
	// Error is the error message from the API.
	Error string `json:"error,omitempty"`

	// Message is an alternative error message field.
	Message string `json:"message,omitempty"`
}
