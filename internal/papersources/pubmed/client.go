package pubmed

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/helixir/referee-finder/internal/domain"
	"github.com/helixir/referee-finder/internal/papersources"
)

const (
	// DefaultBaseURL is the base URL for NCBI E-utilities API.
	DefaultBaseURL = "https://eutils.ncbi.nlm.nih.gov/entrez/eutils"

	// DefaultRateLimit is the rate limit without an API key (3 requests/second).
	DefaultRateLimit = 3.0

	// DefaultBurstSize is the default burst size for rate limiting.
	DefaultBurstSize = 1

	// DefaultMinInterval spaces consecutive E-utilities calls.
	DefaultMinInterval = 2 * time.Second

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxCandidates caps the title search result set.
	DefaultMaxCandidates = 10

	// DefaultMaxReferences caps the reference list returned per preprint.
	DefaultMaxReferences = 20

	// toolName identifies us to NCBI alongside the contact email.
	toolName = "referee-finder"

	// sourceName is the human-readable name for this source.
	sourceName = "PubMed"
)

// Config holds the configuration for the PubMed client.
type Config struct {
	// BaseURL is the base URL for the E-utilities API.
	BaseURL string

	// APIKey is the NCBI API key for higher rate limits.
	APIKey string

	// Email is the contact address NCBI asks callers to send.
	Email string

	// Timeout is the request timeout.
	Timeout time.Duration

	// RateLimit is the maximum requests per second.
	RateLimit float64

	// BurstSize is the maximum burst of requests allowed.
	BurstSize int

	// MinInterval is the minimum spacing between requests.
	MinInterval time.Duration

	// MaxCandidates caps the number of title search hits considered.
	MaxCandidates int

	// MaxReferences caps the number of references returned.
	MaxReferences int

	// Enabled indicates whether this source is enabled.
	Enabled bool

	// Metrics is optional.
	Metrics papersources.Metrics
}

// applyDefaults applies default values to the config.
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
	if c.MinInterval == 0 {
		c.MinInterval = DefaultMinInterval
	}
	if c.MaxCandidates == 0 {
		c.MaxCandidates = DefaultMaxCandidates
	}
	if c.MaxReferences == 0 {
		c.MaxReferences = DefaultMaxReferences
	}
}

// Client implements papersources.Provider for PubMed.
type Client struct {
	config     Config
	httpClient *papersources.HTTPClient
}

// Compile-time check that Client implements Provider.
var _ papersources.Provider = (*Client)(nil)

// New creates a new PubMed client with the given configuration.
func New(cfg Config) *Client {
	cfg.applyDefaults()

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
			MinInterval: cfg.MinInterval,
			UserAgent:   userAgent,
			Metrics:     cfg.Metrics,
		}),
	}
}

// NewWithHTTPClient creates a new PubMed client with a custom HTTP client.
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
	return domain.SourceTypePubMed
}

// Name returns the human-readable name for this source.
func (c *Client) Name() string {
	return sourceName
}

// IsEnabled returns whether the source is enabled.
func (c *Client) IsEnabled() bool {
	return c.config.Enabled
}

// Resolve finds the PMID of a preprint. The title search and the
// "<doi>"[AID] search both run even if one of them fails.
func (c *Client) Resolve(ctx context.Context, title, doi string) (papersources.Resolution, error) {
	if !c.config.Enabled {
		return papersources.Resolution{}, domain.ErrProviderDisabled
	}

	titleIDs, titleErr := c.esearch(ctx, title)
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
		doiIDs, doiErr = c.esearch(ctx, fmt.Sprintf("%q[AID]", doi))
		if doiErr != nil {
			doiErr = fmt.Errorf("doi search: %w", doiErr)
		}
	}

	return papersources.Disambiguate(title, titleIDs, titleErr, doi, doiIDs, doiErr)
}

// FetchReferences returns the PMIDs cited by pmid. Only references carrying
// an ArticleId of type "pubmed" are returned.
func (c *Client) FetchReferences(ctx context.Context, pmid domain.CanonicalID) ([]domain.CanonicalID, error) {
	if !c.config.Enabled {
		return nil, domain.ErrProviderDisabled
	}

	article, err := c.fetchArticle(ctx, pmid)
	if err != nil {
		return nil, err
	}

	var refs []domain.CanonicalID
	for _, ref := range article.PubmedData.ReferenceList.All() {
		if ref.ArticleIdList == nil {
			continue
		}
		for _, aid := range ref.ArticleIdList.ArticleIds {
			if aid.IdType == "pubmed" && strings.TrimSpace(aid.Value) != "" {
				refs = append(refs, domain.CanonicalID(strings.TrimSpace(aid.Value)))
				break
			}
		}
		if len(refs) >= c.config.MaxReferences {
			break
		}
	}
	return refs, nil
}

// FetchReference returns the title, authors and abstract of pmid.
func (c *Client) FetchReference(ctx context.Context, pmid domain.CanonicalID) (domain.ReferenceEntry, error) {
	if !c.config.Enabled {
		return domain.ReferenceEntry{}, domain.ErrProviderDisabled
	}

	article, err := c.fetchArticle(ctx, pmid)
	if err != nil {
		return domain.ReferenceEntry{}, err
	}

	title := strings.TrimSpace(article.MedlineCitation.Article.ArticleTitle)
	if title == "" {
		title = domain.DefaultTitle
	}

	return domain.ReferenceEntry{
		ID:       pmid,
		Title:    title,
		Authors:  extractAuthors(article.MedlineCitation.Article.AuthorList),
		Abstract: extractAbstract(article.MedlineCitation.Article.Abstract),
	}, nil
}

// esearch runs an esearch query and returns the matching PMIDs.
func (c *Client) esearch(ctx context.Context, term string) ([]domain.CanonicalID, error) {
	q := c.baseQuery()
	q.Set("term", term)
	q.Set("retmax", strconv.Itoa(c.config.MaxCandidates))
	q.Set("usehistory", "n")

	reqURL := c.config.BaseURL + "/esearch.fcgi?" + q.Encode()
	body, err := c.httpClient.Get(ctx, reqURL, "application/xml")
	if err != nil {
		return nil, err
	}

	var result ESearchResult
	if err := xml.Unmarshal(body, &result); err != nil {
		return nil, domain.NewParseError(sourceName, c.config.BaseURL+"/esearch.fcgi", err)
	}

	// PhraseNotFound is an empty result, not a failure.
	ids := make([]domain.CanonicalID, 0, len(result.IDList.IDs))
	for _, id := range result.IDList.IDs {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, domain.CanonicalID(id))
		}
	}
	return ids, nil
}

// fetchArticle retrieves a single article record.
func (c *Client) fetchArticle(ctx context.Context, pmid domain.CanonicalID) (*PubmedArticle, error) {
	q := c.baseQuery()
	q.Set("id", string(pmid))
	q.Set("rettype", "abstract")

	reqURL := c.config.BaseURL + "/efetch.fcgi?" + q.Encode()
	body, err := c.httpClient.Get(ctx, reqURL, "application/xml")
	if err != nil {
		return nil, err
	}

	var set PubmedArticleSet
	if err := xml.Unmarshal(body, &set); err != nil {
		return nil, domain.NewParseError(sourceName, c.config.BaseURL+"/efetch.fcgi", err)
	}
	if len(set.Articles) == 0 {
		return nil, domain.NewNotFoundError("pubmed article", string(pmid))
	}
	return &set.Articles[0], nil
}

func (c *Client) baseQuery() url.Values {
	q := url.Values{}
	q.Set("db", "pubmed")
	q.Set("retmode", "xml")
	q.Set("tool", toolName)
	if c.config.Email != "" {
		q.Set("email", c.config.Email)
	}
	if c.config.APIKey != "" {
		q.Set("api_key", c.config.APIKey)
	}
	return q
}

// extractAbstract concatenates multiple abstract sections into a single string.
func extractAbstract(abstract *Abstract) string {
	if abstract == nil || len(abstract.AbstractTexts) == 0 {
		return ""
	}

	if len(abstract.AbstractTexts) == 1 && abstract.AbstractTexts[0].Label == "" {
		return strings.TrimSpace(abstract.AbstractTexts[0].Value)
	}

	var parts []string
	for _, at := range abstract.AbstractTexts {
		text := strings.TrimSpace(at.Value)
		if text == "" {
			continue
		}
		if at.Label != "" {
			parts = append(parts, at.Label+": "+text)
		} else {
			parts = append(parts, text)
		}
	}

	return strings.Join(parts, " ")
}

// extractAuthors converts PubMed authors to domain authors. Collective names
// are kept as the author name; entries with no name at all are dropped.
func extractAuthors(authorList *AuthorList) []domain.Author {
	if authorList == nil || len(authorList.Authors) == 0 {
		return nil
	}

	authors := make([]domain.Author, 0, len(authorList.Authors))
	for _, a := range authorList.Authors {
		if a.ValidYN == "N" {
			continue
		}

		name := domain.AuthorName(a.ForeName, a.LastName)
		if name == "" {
			name = strings.TrimSpace(a.CollectiveName)
		}
		if name == "" {
			continue
		}

		var orcid string
		for _, id := range a.Identifiers {
			if strings.EqualFold(id.Source, "ORCID") {
				orcid = strings.TrimPrefix(strings.TrimSpace(id.Value), "https://orcid.org/")
				break
			}
		}

		var affiliation string
		if len(a.AffiliationInfo) > 0 {
			affiliation = a.AffiliationInfo[0].Affiliation
		}

		authors = append(authors, domain.NewAuthor(name, affiliation, orcid))
	}

	return authors
}
