package records

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/helixir/referee-finder/internal/domain"
	"github.com/helixir/referee-finder/internal/papersources"
)

const (
	// DefaultAirtableBaseURL is the Airtable REST API root.
	DefaultAirtableBaseURL = "https://api.airtable.com"

	// DefaultAirtableRateLimit is Airtable's per-base request allowance.
	DefaultAirtableRateLimit = 5.0

	// DefaultAirtablePageSize is the largest page Airtable returns.
	DefaultAirtablePageSize = 100

	// maxPages guards against a store that never stops returning offsets.
	maxPages = 1000

	airtableSource = "Airtable"
)

// Airtable field names used by the editorial table.
const (
	FieldTitle    = "Title"
	FieldDOI      = "Link/DOI"
	FieldConcepts = "Updated Concepts"
	FieldStatus   = "Status"
)

// AirtableConfig configures the Airtable record source.
type AirtableConfig struct {
	BaseURL  string
	Token    string
	BaseID   string
	Table    string
	PageSize int
	Timeout  time.Duration
	Metrics  papersources.Metrics
}

// AirtableSource lists records from an Airtable table.
type AirtableSource struct {
	http   *papersources.HTTPClient
	config AirtableConfig
}

// NewAirtableSource creates an Airtable source. Requests share one limiter
// at Airtable's per-base rate.
func NewAirtableSource(cfg AirtableConfig) *AirtableSource {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultAirtableBaseURL
	}
	if cfg.PageSize <= 0 || cfg.PageSize > DefaultAirtablePageSize {
		cfg.PageSize = DefaultAirtablePageSize
	}

	hc := papersources.NewHTTPClient(papersources.HTTPClientConfig{
		Source:       airtableSource,
		Timeout:      cfg.Timeout,
		RateLimit:    DefaultAirtableRateLimit,
		BurstSize:    1,
		APIKey:       "Bearer " + cfg.Token,
		APIKeyHeader: "Authorization",
		Metrics:      cfg.Metrics,
	})

	return &AirtableSource{http: hc, config: cfg}
}

// Name implements Source.
func (s *AirtableSource) Name() string {
	return "airtable"
}

type airtablePage struct {
	Records []airtableRecord `json:"records"`
	Offset  string           `json:"offset"`
}

type airtableRecord struct {
	ID     string         `json:"id"`
	Fields map[string]any `json:"fields"`
}

// List implements Source, following offset pagination to the last page.
func (s *AirtableSource) List(ctx context.Context, view string) ([]domain.PreprintRecord, error) {
	var (
		out    []domain.PreprintRecord
		offset string
	)

	for page := 0; page < maxPages; page++ {
		reqURL := s.pageURL(view, offset)
		body, err := s.http.Get(ctx, reqURL, "application/json")
		if err != nil {
			return out, fmt.Errorf("list page %d: %w", page+1, err)
		}

		var resp airtablePage
		if err := json.Unmarshal(body, &resp); err != nil {
			return out, domain.NewParseError(airtableSource, reqURL, err)
		}

		for _, r := range resp.Records {
			out = append(out, domain.NewPreprintRecord(r.ID,
				stringField(r.Fields, FieldTitle),
				stringField(r.Fields, FieldDOI),
				stringField(r.Fields, FieldConcepts),
				stringField(r.Fields, FieldStatus),
			))
		}

		if resp.Offset == "" {
			return out, nil
		}
		offset = resp.Offset
	}

	return out, fmt.Errorf("list %s: more than %d pages", view, maxPages)
}

func (s *AirtableSource) pageURL(view, offset string) string {
	params := url.Values{}
	if view != "" {
		params.Set("view", view)
	}
	params.Set("pageSize", strconv.Itoa(s.config.PageSize))
	if offset != "" {
		params.Set("offset", offset)
	}
	return fmt.Sprintf("%s/v0/%s/%s?%s",
		s.config.BaseURL,
		url.PathEscape(s.config.BaseID),
		url.PathEscape(s.config.Table),
		params.Encode(),
	)
}

// stringField reads a text field. Single-select fields arrive as strings;
// anything else is treated as absent.
func stringField(fields map[string]any, name string) string {
	v, ok := fields[name].(string)
	if !ok {
		return ""
	}
	return v
}
