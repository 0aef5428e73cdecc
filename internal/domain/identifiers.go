package domain

import (
	"regexp"
	"strings"
)

// doiPrefixes are the forms a DOI may be wrapped in. Matching is case-insensitive.
var doiPrefixes = []string{
	"https://doi.org/",
	"http://doi.org/",
	"https://dx.doi.org/",
	"http://dx.doi.org/",
	"doi:",
}

var bracketedSegment = regexp.MustCompile(`\[[^\]]*\]`)

// NormalizeDOI strips resolver URL and "doi:" prefixes and surrounding
// whitespace. NormalizeDOI(NormalizeDOI(x)) == NormalizeDOI(x).
func NormalizeDOI(doi string) string {
	doi = strings.TrimSpace(doi)
	for {
		stripped := false
		for _, prefix := range doiPrefixes {
			if len(doi) >= len(prefix) && strings.EqualFold(doi[:len(prefix)], prefix) {
				doi = strings.TrimSpace(doi[len(prefix):])
				stripped = true
				break
			}
		}
		if !stripped {
			return doi
		}
	}
}

// CleanTitle prepares a record-store title for provider search: commas become
// spaces, bracketed segments such as "[Preprint]" are removed and runs of
// whitespace collapse to one space.
func CleanTitle(title string) string {
	title = strings.ReplaceAll(title, ",", " ")
	title = bracketedSegment.ReplaceAllString(title, "")
	return strings.Join(strings.Fields(title), " ")
}
