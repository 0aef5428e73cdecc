// Package domain provides domain models and business logic for the referee finder.
package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	// DefaultTitle is used for references whose record carries no title.
	DefaultTitle = "N/A"

	// DefaultAffiliation is used for authors without a primary affiliation.
	DefaultAffiliation = "No Affiliation"
)

// SourceType identifies the bibliographic provider that supplied data.
type SourceType string

const (
	SourceTypePubMed          SourceType = "pubmed"
	SourceTypeOpenAlex        SourceType = "openalex"
	SourceTypeSemanticScholar SourceType = "semantic_scholar"
)

// IsValid returns true if the source type is one of the known providers.
func (s SourceType) IsValid() bool {
	switch s {
	case SourceTypePubMed, SourceTypeOpenAlex, SourceTypeSemanticScholar:
		return true
	default:
		return false
	}
}

// FallbackState is a position in the provider fallback sequence.
type FallbackState string

const (
	StatePrimaryIndex     FallbackState = "primary_index"
	StateSecondaryIndex   FallbackState = "secondary_index"
	StateCitationDatabase FallbackState = "citation_database"
	StateExhausted        FallbackState = "exhausted"
)

// FallbackStates lists the non-terminal states in the order they are visited.
var FallbackStates = []FallbackState{StatePrimaryIndex, StateSecondaryIndex, StateCitationDatabase}

// Stage is the furthest step a provider attempt reached.
type Stage string

const (
	StageResolve    Stage = "resolve"
	StageReferences Stage = "references"
	StageAggregate  Stage = "aggregate"
	StageFilter     Stage = "filter"
	StageDone       Stage = "done"
)

// Outcome is the reportable end state of one preprint.
type Outcome string

const (
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeExhausted Outcome = "exhausted"
	OutcomeNoMethods Outcome = "no_methods"
	OutcomeSkipped   Outcome = "skipped"
)

// Confidence describes how an identifier was resolved.
type Confidence string

const (
	// ConfidenceExact means the id appeared in both the title and DOI searches.
	ConfidenceExact Confidence = "exact"

	// ConfidenceTitleOnly means no DOI was available and the best title match was used.
	ConfidenceTitleOnly Confidence = "title_only"
)

// CanonicalID is an identifier in a single provider's namespace
// (PMID, short OpenAlex work id, Semantic Scholar paperId).
type CanonicalID string

// PreprintRecord is a preprint read from the record store.
type PreprintRecord struct {
	ID         string    `json:"id,omitempty"`
	Title      string    `json:"title" validate:"required"`
	DOI        string    `json:"doi,omitempty"`
	MethodsTag string    `json:"methods_tag" validate:"required"`
	Status     string    `json:"status,omitempty"`
	Methods    MethodSet `json:"methods"`
	Concepts   MethodSet `json:"concepts"`
}

// NewPreprintRecord builds a record, cleaning the title and DOI and parsing
// the methods and concepts out of the tag.
func NewPreprintRecord(id, title, doi, tag, status string) PreprintRecord {
	return PreprintRecord{
		ID:         id,
		Title:      CleanTitle(title),
		DOI:        NormalizeDOI(doi),
		MethodsTag: tag,
		Status:     strings.TrimSpace(status),
		Methods:    ParseMethodsTag(tag),
		Concepts:   ParseConceptsTag(tag),
	}
}

// Author is a contributor to a reference.
type Author struct {
	Name        string `json:"name"`
	Affiliation string `json:"affiliation"`
	ExternalID  string `json:"external_id,omitempty"`
}

// AuthorName joins given and family names with a single space,
// using whichever part is present when the other is missing.
func AuthorName(given, family string) string {
	given = strings.TrimSpace(given)
	family = strings.TrimSpace(family)
	switch {
	case given == "":
		return family
	case family == "":
		return given
	default:
		return given + " " + family
	}
}

// NewAuthor builds an author with the default affiliation applied.
func NewAuthor(name, affiliation, externalID string) Author {
	affiliation = strings.TrimSpace(affiliation)
	if affiliation == "" {
		affiliation = DefaultAffiliation
	}
	return Author{
		Name:        strings.TrimSpace(name),
		Affiliation: affiliation,
		ExternalID:  strings.TrimSpace(externalID),
	}
}

// ReferenceEntry is one cited work with its authors and inferred methods.
type ReferenceEntry struct {
	ID       CanonicalID `json:"id"`
	Title    string      `json:"title"`
	Authors  []Author    `json:"authors"`
	Abstract string      `json:"-"`
	Methods  MethodSet   `json:"methods"`
}

// AuthorSet is the author list of one qualifying reference.
type AuthorSet struct {
	ReferenceID    CanonicalID `json:"reference_id"`
	ReferenceTitle string      `json:"reference_title"`
	Authors        []Author    `json:"authors"`
}

// NewAuthorSet collects the authors of ref, dropping nameless entries and
// repeats of the same name and affiliation.
func NewAuthorSet(ref ReferenceEntry) AuthorSet {
	type key struct{ name, affiliation string }
	seen := make(map[key]struct{}, len(ref.Authors))
	authors := make([]Author, 0, len(ref.Authors))
	for _, a := range ref.Authors {
		if a.Name == "" {
			continue
		}
		k := key{strings.ToLower(a.Name), strings.ToLower(a.Affiliation)}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		authors = append(authors, a)
	}
	return AuthorSet{
		ReferenceID:    ref.ID,
		ReferenceTitle: ref.Title,
		Authors:        authors,
	}
}

// ResultMap maps a preprint title to the author sets of its qualifying references.
type ResultMap map[string][]AuthorSet

// AuthorCount returns the number of authors recorded for title.
func (m ResultMap) AuthorCount(title string) int {
	n := 0
	for _, set := range m[title] {
		n += len(set.Authors)
	}
	return n
}

// ProviderAttempt records one provider's pass over a preprint.
type ProviderAttempt struct {
	Provider   SourceType    `json:"provider"`
	State      FallbackState `json:"state"`
	Stage      Stage         `json:"stage"`
	ResolvedID CanonicalID   `json:"resolved_id,omitempty"`
	Confidence Confidence    `json:"confidence,omitempty"`
	References int           `json:"references"`
	Qualifying int           `json:"qualifying"`
	Authors    int           `json:"authors"`
	Error      string        `json:"error,omitempty"`
	ErrorKind  string        `json:"error_kind,omitempty"`
	Duration   time.Duration `json:"duration"`
}

// Succeeded returns true if the attempt produced at least one author.
func (a ProviderAttempt) Succeeded() bool {
	return a.Authors > 0
}

// PreprintSummary is the reportable outcome of processing one preprint.
type PreprintSummary struct {
	RecordID        string            `json:"record_id,omitempty"`
	Title           string            `json:"title"`
	Outcome         Outcome           `json:"outcome"`
	FinalState      FallbackState     `json:"final_state"`
	Provider        SourceType        `json:"provider,omitempty"`
	Attempts        []ProviderAttempt `json:"attempts"`
	ReferenceCount  int               `json:"reference_count"`
	QualifyingCount int               `json:"qualifying_count"`
	AuthorCount     int               `json:"author_count"`
	Error           string            `json:"error,omitempty"`
}

// ProvidersTried returns the providers attempted, in order.
func (s PreprintSummary) ProvidersTried() []SourceType {
	out := make([]SourceType, 0, len(s.Attempts))
	for _, a := range s.Attempts {
		out = append(out, a.Provider)
	}
	return out
}

// RunResult is everything one pipeline run produced. Each run owns a fresh
// ResultMap; nothing is shared between runs.
type RunResult struct {
	RunID      uuid.UUID         `json:"run_id"`
	StartedAt  time.Time         `json:"started_at"`
	FinishedAt time.Time         `json:"finished_at"`
	Cancelled  bool              `json:"cancelled"`
	Results    ResultMap         `json:"results"`
	Summaries  []PreprintSummary `json:"summaries"`
}

// NewRunResult starts an empty run.
func NewRunResult(now time.Time) *RunResult {
	return &RunResult{
		RunID:     uuid.New(),
		StartedAt: now,
		Results:   make(ResultMap),
	}
}

// Succeeded returns the number of preprints that produced referees.
func (r *RunResult) Succeeded() int {
	n := 0
	for _, s := range r.Summaries {
		if s.Outcome == OutcomeSucceeded {
			n++
		}
	}
	return n
}
