package semanticscholar

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/helixir/referee-finder/internal/domain"
	"github.com/helixir/referee-finder/internal/papersources"
)

const (
	// DefaultBaseURL is the default base URL for the Semantic Scholar Graph API.
	DefaultBaseURL = "https://api.semanticscholar.org/graph/v1"

	// DefaultRateLimit is 30 requests per minute, the allowance of a personal API key.
	DefaultRateLimit = 0.5

	// DefaultBurstSize is the default burst size for rate limiting.
	DefaultBurstSize = 1

	// DefaultTimeout is the default HTTP request timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxReferences caps the reference list returned per preprint.
	DefaultMaxReferences = 20

	// apiKeyHeader is the header name for the Semantic Scholar API key.
	apiKeyHeader = "x-api-key"

	// referenceFields is requested for FetchReference.
	referenceFields = "paperId,title,abstract,authors.authorId,authors.name,authors.affiliations"

	// sourceName is the human-readable name for this source.
	sourceName = "Semantic Scholar"
)

// Config contains configuration options for the Semantic Scholar client.
type Config struct {
	// BaseURL is the base URL for the API.
	// Defaults to DefaultBaseURL if empty.
	BaseURL string

	// APIKey is the optional API key for authenticated requests.
	APIKey string

	// Timeout is the HTTP request timeout.
	Timeout time.Duration

	// RateLimit is the maximum requests per second.
	RateLimit float64

	// BurstSize is the maximum burst of requests allowed.
	BurstSize int

	// MaxReferences caps the number of references returned.
	MaxReferences int

	// Enabled indicates whether this source is enabled.
	Enabled bool

	// Metrics is optional.
	Metrics papersources.Metrics
}

// Client implements papersources.Provider for Semantic Scholar.
type Client struct {
	httpClient *papersources.HTTPClient
	config     Config
}

// Compile-time check that Client implements papersources.Provider.
var _ papersources.Provider = (*Client)(nil)

// NewClient creates a new Semantic Scholar client with the given configuration.
// If httpClient is nil, a new one will be created with the configuration settings.
func NewClient(cfg Config, httpClient *papersources.HTTPClient) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = DefaultRateLimit
	}
	if cfg.BurstSize == 0 {
		cfg.BurstSize = DefaultBurstSize
	}
	if cfg.MaxReferences == 0 {
		cfg.MaxReferences = DefaultMaxReferences
	}

	if httpClient == nil {
		httpClient = papersources.NewHTTPClient(papersources.HTTPClientConfig{
			Source:       sourceName,
			Timeout:      cfg.Timeout,
			RateLimit:    cfg.RateLimit,
			BurstSize:    cfg.BurstSize,
			APIKey:       cfg.APIKey,
			APIKeyHeader: apiKeyHeader,
			Metrics:      cfg.Metrics,
		})
	}

	return &Client{
		httpClient: httpClient,
		config:     cfg,
	}
}

// SourceType returns the source type identifier.
func (c *Client) SourceType() domain.SourceType {
	return domain.SourceTypeSemanticScholar
}

// Name returns the human-readable name for this source.
func (c *Client) Name() string {
	return sourceName
}

// IsEnabled returns whether the source is enabled.
func (c *Client) IsEnabled() bool {
	return c.config.Enabled
}

// Resolve finds the paperId of a preprint. The title match endpoint returns a
// single best match; the DOI lookup confirms it when a DOI is known.
func (c *Client) Resolve(ctx context.Context, title, doi string) (papersources.Resolution, error) {
	if !c.config.Enabled {
		return papersources.Resolution{}, domain.ErrProviderDisabled
	}

	title = domain.CleanTitle(title)
	q := url.Values{}
	q.Set("query", title)
	q.Set("fields", "paperId,title")

	var titleIDs []domain.CanonicalID
	var match MatchResponse
	titleErr := c.getJSON(ctx, "/paper/search/match", q, &match)
	switch {
	case titleErr == nil:
		for _, p := range match.Data {
			if p.PaperID != "" {
				titleIDs = append(titleIDs, domain.CanonicalID(p.PaperID))
			}
		}
	case errors.Is(titleErr, domain.ErrNotFound):
		// "Title match not found" is reported as a 404.
		titleErr = nil
	default:
		titleErr = fmt.Errorf("title match: %w", titleErr)
		if domain.IsProviderFatal(titleErr) {
			return papersources.Resolution{}, titleErr
		}
	}

	doi = domain.NormalizeDOI(doi)
	var doiIDs []domain.CanonicalID
	var doiErr error
	if doi != "" {
		q := url.Values{}
		q.Set("fields", "paperId")
		var paper PaperResult
		err := c.getJSON(ctx, "/paper/DOI:"+papersources.EscapePath(doi), q, &paper)
		switch {
		case err == nil && paper.PaperID != "":
			doiIDs = []domain.CanonicalID{domain.CanonicalID(paper.PaperID)}
		case err == nil, errors.Is(err, domain.ErrNotFound):
		default:
			doiErr = fmt.Errorf("doi lookup: %w", err)
		}
	}

	return papersources.Disambiguate(title, titleIDs, titleErr, doi, doiIDs, doiErr)
}

// FetchReferences returns the paperIds cited by id. References that Semantic
// Scholar could not link to a paper carry no paperId and are skipped.
func (c *Client) FetchReferences(ctx context.Context, id domain.CanonicalID) ([]domain.CanonicalID, error) {
	if !c.config.Enabled {
		return nil, domain.ErrProviderDisabled
	}

	q := url.Values{}
	q.Set("fields", "paperId")
	// Ask for extra rows since unlinked references are dropped.
	q.Set("limit", strconv.Itoa(c.config.MaxReferences*2))

	var resp ReferencesResponse
	if err := c.getJSON(ctx, "/paper/"+url.PathEscape(string(id))+"/references", q, &resp); err != nil {
		return nil, err
	}

	var refs []domain.CanonicalID
	for _, r := range resp.Data {
		if r.CitedPaper.PaperID == "" {
			continue
		}
		refs = append(refs, domain.CanonicalID(r.CitedPaper.PaperID))
		if len(refs) >= c.config.MaxReferences {
			break
		}
	}
	return refs, nil
}

// FetchReference returns the title, authors and abstract of a paper.
// Authors are identified by their Semantic Scholar authorId.
func (c *Client) FetchReference(ctx context.Context, id domain.CanonicalID) (domain.ReferenceEntry, error) {
	if !c.config.Enabled {
		return domain.ReferenceEntry{}, domain.ErrProviderDisabled
	}

	q := url.Values{}
	q.Set("fields", referenceFields)

	var paper PaperResult
	if err := c.getJSON(ctx, "/paper/"+url.PathEscape(string(id)), q, &paper); err != nil {
		return domain.ReferenceEntry{}, err
	}

	title := strings.TrimSpace(paper.Title)
	if title == "" {
		title = domain.DefaultTitle
	}

	return domain.ReferenceEntry{
		ID:       id,
		Title:    title,
		Authors:  convertAuthors(paper.Authors),
		Abstract: strings.TrimSpace(paper.Abstract),
	}, nil
}

// getJSON issues a GET through the rate-limited client and decodes the body.
func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	reqURL := strings.TrimRight(c.config.BaseURL, "/") + path
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	body, err := c.httpClient.Get(ctx, reqURL, "application/json")
	if err != nil {
		return withAPIMessage(err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return domain.NewParseError(sourceName, c.config.BaseURL+path, err)
	}
	return nil
}

// withAPIMessage replaces the raw body carried by an ExternalAPIError with
// the message of the Semantic Scholar error document.
func withAPIMessage(err error) error {
	var apiErr *domain.ExternalAPIError
	if !errors.As(err, &apiErr) {
		return err
	}
	var errResp ErrorResponse
	if json.Unmarshal([]byte(apiErr.Message), &errResp) != nil {
		return err
	}
	switch {
	case errResp.Error != "":
		apiErr.Message = errResp.Error
	case errResp.Message != "":
		apiErr.Message = errResp.Message
	}
	return err
}

// convertAuthors maps API authors to domain authors, taking the first listed
// affiliation.
func convertAuthors(apiAuthors []Author) []domain.Author {
	authors := make([]domain.Author, 0, len(apiAuthors))
	for _, a := range apiAuthors {
		name := strings.TrimSpace(a.Name)
		if name == "" {
			continue
		}
		var affiliation string
		if len(a.Affiliations) > 0 {
			affiliation = a.Affiliations[0]
		}
		authors = append(authors, domain.NewAuthor(name, affiliation, a.AuthorID))
	}
	return authors
}
