package openalex

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/helixir/referee-finder/internal/domain"
	"github.com/helixir/referee-finder/internal/papersources"
)

const (
	// DefaultBaseURL is the default OpenAlex API base URL.
	DefaultBaseURL = "https://api.openalex.org"

	// DefaultRateLimit is the default rate limit for requests per second.
	// OpenAlex polite pool (with email) allows higher rates.
	DefaultRateLimit = 10.0

	// DefaultBurstSize is the default burst size for rate limiting.
	DefaultBurstSize = 10

	// DefaultDailyBudget is the OpenAlex per-day request allowance.
	DefaultDailyBudget = 100000

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxCandidates caps the title search result set.
	DefaultMaxCandidates = 10

	// DefaultMaxReferences caps the reference list returned per preprint.
	DefaultMaxReferences = 20

	// DefaultCrossReferencePageSize is the per_page used for concept searches.
	// 200 is the OpenAlex maximum.
	DefaultCrossReferencePageSize = 200

	// doiPrefix is the URL prefix that OpenAlex uses for DOIs.
	doiPrefix = "https://doi.org/"

	// openAlexIDPrefix is the URL prefix for OpenAlex IDs.
	openAlexIDPrefix = "https://openalex.org/"

	sourceName = "OpenAlex"
)

// Config holds configuration for the OpenAlex client.
type Config struct {
	// BaseURL is the OpenAlex API base URL.
	// Defaults to https://api.openalex.org
	BaseURL string

	// Email is the contact email for the polite pool.
	// See: https://docs.openalex.org/how-to-use-the-api/rate-limits-and-authentication
	Email string

	// Timeout is the request timeout.
	Timeout time.Duration

	// RateLimit is the maximum requests per second.
	RateLimit float64

	// BurstSize is the maximum burst of requests allowed.
	BurstSize int

	// DailyBudget caps requests per UTC day. Negative disables the cap.
	DailyBudget int

	// MaxCandidates caps the number of title search hits considered.
	MaxCandidates int

	// MaxReferences caps the number of references returned.
	MaxReferences int

	// CrossReferencePageSize is the page size of concept searches.
	CrossReferencePageSize int

	// Enabled indicates whether this source is enabled.
	Enabled bool

	// Metrics is optional.
	Metrics papersources.Metrics
}

// applyDefaults sets default values for unset configuration fields.
func (c *Config) applyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	if c.RateLimit == 0 {
		c.RateLimit = DefaultRateLimit
	}
	if c.BurstSize == 0 {
		c.BurstSize = DefaultBurstSize
	}
	if c.DailyBudget == 0 {
		c.DailyBudget = DefaultDailyBudget
	}
	if c.MaxCandidates == 0 {
		c.MaxCandidates = DefaultMaxCandidates
	}
	if c.MaxReferences == 0 {
		c.MaxReferences = DefaultMaxReferences
	}
	if c.CrossReferencePageSize <= 0 || c.CrossReferencePageSize > DefaultCrossReferencePageSize {
		c.CrossReferencePageSize = DefaultCrossReferencePageSize
	}
}

// Client implements papersources.Provider and papersources.MethodMatcher
// for OpenAlex.
type Client struct {
	config     Config
	httpClient *papersources.HTTPClient
}

var (
	_ papersources.Provider      = (*Client)(nil)
	_ papersources.MethodMatcher = (*Client)(nil)
)

// New creates a new OpenAlex client with the given configuration.
func New(cfg Config) *Client {
	cfg.applyDefaults()

	budget := cfg.DailyBudget
	if budget < 0 {
		budget = 0
	}

	userAgent := papersources.DefaultUserAgent
	if cfg.Email != "" {
		userAgent += " (mailto:" + cfg.Email + ")"
	}

	return &Client{
		config: cfg,
		httpClient: papersources.NewHTTPClient(papersources.HTTPClientConfig{
			Source:      sourceName,
			Timeout:     cfg.Timeout,
			RateLimit:   cfg.RateLimit,
			BurstSize:   cfg.BurstSize,
			DailyBudget: budget,
			UserAgent:   userAgent,
			Metrics:     cfg.Metrics,
		}),
	}
}

// NewWithHTTPClient creates a new OpenAlex client with a custom HTTP client.
// This is useful for testing with mock servers.
func NewWithHTTPClient(cfg Config, httpClient *papersources.HTTPClient) *Client {
	cfg.applyDefaults()

	return &Client{
		config:     cfg,
		httpClient: httpClient,
	}
}

// SourceType returns the source type identifier.
func (c *Client) SourceType() domain.SourceType {
	return domain.SourceTypeOpenAlex
}

// Name returns the human-readable name for this source.
func (c *Client) Name() string {
	return sourceName
}

// IsEnabled returns whether this source is enabled.
func (c *Client) IsEnabled() bool {
	return c.config.Enabled
}

// Resolve finds the OpenAlex work id of a preprint by intersecting a
// title.search filter with a DOI lookup.
func (c *Client) Resolve(ctx context.Context, title, doi string) (papersources.Resolution, error) {
	if !c.config.Enabled {
		return papersources.Resolution{}, domain.ErrProviderDisabled
	}

	title = domain.CleanTitle(title)
	titleIDs, titleErr := c.searchIDs(ctx, "title.search:"+filterValue(title), c.config.MaxCandidates)
	if titleErr != nil {
		titleErr = fmt.Errorf("title search: %w", titleErr)
		if domain.IsProviderFatal(titleErr) {
			return papersources.Resolution{}, titleErr
		}
	}

	doi = domain.NormalizeDOI(doi)
	var doiIDs []domain.CanonicalID
	var doiErr error
	if doi != "" {
		work, err := c.getWork(ctx, "doi:"+doi, "id")
		switch {
		case err == nil:
			doiIDs = []domain.CanonicalID{domain.CanonicalID(normalizeOpenAlexID(work.ID))}
		case errors.Is(err, domain.ErrNotFound):
		default:
			doiErr = fmt.Errorf("doi lookup: %w", err)
		}
	}

	return papersources.Disambiguate(title, titleIDs, titleErr, doi, doiIDs, doiErr)
}

// FetchReferences returns the referenced_works of id as short OpenAlex ids.
func (c *Client) FetchReferences(ctx context.Context, id domain.CanonicalID) ([]domain.CanonicalID, error) {
	if !c.config.Enabled {
		return nil, domain.ErrProviderDisabled
	}

	work, err := c.getWork(ctx, string(id), "id,referenced_works")
	if err != nil {
		return nil, err
	}

	var refs []domain.CanonicalID
	for _, ref := range work.ReferencedWorks {
		if ref = normalizeOpenAlexID(ref); ref == "" {
			continue
		}
		refs = append(refs, domain.CanonicalID(ref))
		if len(refs) >= c.config.MaxReferences {
			break
		}
	}
	return refs, nil
}

// FetchReference returns the title, authorships and abstract of id.
func (c *Client) FetchReference(ctx context.Context, id domain.CanonicalID) (domain.ReferenceEntry, error) {
	if !c.config.Enabled {
		return domain.ReferenceEntry{}, domain.ErrProviderDisabled
	}

	work, err := c.getWork(ctx, string(id), "id,title,display_name,authorships,abstract_inverted_index")
	if err != nil {
		return domain.ReferenceEntry{}, err
	}

	// Prefer display_name as it is usually cleaner.
	title := strings.TrimSpace(work.DisplayName)
	if title == "" {
		title = strings.TrimSpace(work.Title)
	}
	if title == "" {
		title = domain.DefaultTitle
	}

	authors := make([]domain.Author, 0, len(work.Authorships))
	for _, a := range work.Authorships {
		name := strings.TrimSpace(a.Author.DisplayName)
		if name == "" {
			continue
		}
		var affiliation string
		if len(a.Institutions) > 0 {
			affiliation = a.Institutions[0].DisplayName
		} else if len(a.RawAffiliation) > 0 {
			affiliation = a.RawAffiliation[0]
		}
		authors = append(authors, domain.NewAuthor(name, affiliation, normalizeORCID(a.Author.Orcid)))
	}

	return domain.ReferenceEntry{
		ID:       id,
		Title:    title,
		Authors:  authors,
		Abstract: reconstructAbstract(work.AbstractInvertedIndex),
	}, nil
}

// MatchMethods runs one abstract.search:<concept>,fulltext.search:<m1>|<m2>
// query per preprint concept and tags every hit that is also one of refs with
// the preprint's methods. Preprints without concepts or methods match nothing.
// A failed concept query is skipped unless it is provider-fatal.
func (c *Client) MatchMethods(ctx context.Context, preprint domain.PreprintRecord, refs []domain.CanonicalID) (map[domain.CanonicalID]domain.MethodSet, error) {
	if !c.config.Enabled {
		return nil, domain.ErrProviderDisabled
	}
	if preprint.Concepts.IsEmpty() || preprint.Methods.IsEmpty() || len(refs) == 0 {
		return nil, nil
	}

	wanted := make(map[domain.CanonicalID]struct{}, len(refs))
	for _, id := range refs {
		wanted[domain.CanonicalID(normalizeOpenAlexID(string(id)))] = struct{}{}
	}

	methods := preprint.Methods.Items()
	terms := make([]string, 0, len(methods))
	for _, m := range methods {
		terms = append(terms, filterValue(m))
	}
	fulltext := "fulltext.search:" + strings.Join(terms, "|")

	matched := make(map[domain.CanonicalID]domain.MethodSet)
	var errs []error
	for _, concept := range preprint.Concepts.Items() {
		filter := "abstract.search:" + filterValue(concept) + "," + fulltext
		ids, err := c.searchIDs(ctx, filter, c.config.CrossReferencePageSize)
		if err != nil {
			err = fmt.Errorf("cross reference %q: %w", concept, err)
			if domain.IsProviderFatal(err) || ctx.Err() != nil {
				return matched, err
			}
			errs = append(errs, err)
			continue
		}
		for _, id := range ids {
			if _, ok := wanted[id]; ok {
				matched[id] = domain.NewMethodSet(methods...)
			}
		}
	}

	if len(matched) == 0 && len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return matched, nil
}

// searchIDs runs a /works filter query and returns the short ids of the hits.
func (c *Client) searchIDs(ctx context.Context, filter string, perPage int) ([]domain.CanonicalID, error) {
	query := c.baseQuery()
	query.Set("filter", filter)
	query.Set("per_page", strconv.Itoa(perPage))
	query.Set("select", "id")

	var resp SearchResponse
	if err := c.getJSON(ctx, "/works", query, &resp); err != nil {
		return nil, err
	}

	ids := make([]domain.CanonicalID, 0, len(resp.Results))
	for _, w := range resp.Results {
		if id := normalizeOpenAlexID(w.ID); id != "" {
			ids = append(ids, domain.CanonicalID(id))
		}
	}
	return ids, nil
}

// getWork fetches a single work by short id, full id or doi:<doi>.
func (c *Client) getWork(ctx context.Context, id, fields string) (*Work, error) {
	workID := normalizeOpenAlexID(id)
	if workID == "" {
		return nil, domain.NewValidationError("id", "openalex work id is empty")
	}

	query := c.baseQuery()
	if fields != "" {
		query.Set("select", fields)
	}

	var work Work
	if err := c.getJSON(ctx, "/works/"+papersources.EscapePath(workID), query, &work); err != nil {
		return nil, err
	}
	if work.ID == "" {
		return nil, domain.NewNotFoundError("openalex work", id)
	}
	return &work, nil
}

func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	reqURL := strings.TrimRight(c.config.BaseURL, "/") + path
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	body, err := c.httpClient.Get(ctx, reqURL, "application/json")
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return domain.NewParseError(sourceName, c.config.BaseURL+path, err)
	}
	return nil
}

func (c *Client) baseQuery() url.Values {
	query := url.Values{}
	// mailto puts us in the polite pool.
	if c.config.Email != "" {
		query.Set("mailto", c.config.Email)
	}
	return query
}

// filterValue strips the characters OpenAlex uses as filter separators.
func filterValue(s string) string {
	s = strings.NewReplacer(",", " ", "|", " ", ":", " ").Replace(s)
	return strings.Join(strings.Fields(s), " ")
}

// normalizeOpenAlexID extracts the short ID from full OpenAlex URLs.
func normalizeOpenAlexID(id string) string {
	id = strings.TrimSpace(id)
	id = strings.TrimPrefix(id, openAlexIDPrefix)
	id = strings.TrimPrefix(id, "https://api.openalex.org/works/")
	if rest, ok := strings.CutPrefix(id, doiPrefix); ok {
		return "doi:" + rest
	}
	return id
}

// normalizeORCID strips any URL prefixes from ORCID identifiers.
func normalizeORCID(orcid string) string {
	if orcid == "" {
		return ""
	}
	orcid = strings.TrimPrefix(orcid, "https://orcid.org/")
	return strings.TrimSpace(orcid)
}

// reconstructAbstract reconstructs the abstract text from OpenAlex's inverted index format.
// OpenAlex stores abstracts as inverted indices mapping words to their positions.
func reconstructAbstract(invertedIndex map[string][]int) string {
	if len(invertedIndex) == 0 {
		return ""
	}

	type posWord struct {
		pos  int
		word string
	}
	const maxAbstractWords = 100_000
	totalPairs := 0
	for _, positions := range invertedIndex {
		totalPairs += len(positions)
	}
	// Guard against payloads with excessive position entries.
	if totalPairs > maxAbstractWords {
		return ""
	}
	pairs := make([]posWord, 0, totalPairs)

	for word, positions := range invertedIndex {
		for _, pos := range positions {
			pairs = append(pairs, posWord{pos: pos, word: word})
		}
	}

	sort.Slice(pairs, func(i, j int) bool {
		return pairs[i].pos < pairs[j].pos
	})

	words := make([]string, len(pairs))
	for i, pair := range pairs {
		words[i] = pair.word
	}
	return strings.Join(words, " ")
}
