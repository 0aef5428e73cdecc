// Package llm provides language-model based method extraction for the
// referee finder.
//
// Given the abstract of a reference and the methods tagged on the preprint,
// an extractor asks the model which of those methods the reference used. The
// answer is a comma-separated list drawn from the preprint's vocabulary, which
// ParseMethodList turns into individual method names.
//
// Example usage:
//
//	extractor, err := llm.NewMethodExtractor(cfg)
//	raw, err := extractor.ExtractMethods(ctx, ref.Abstract, preprint.Methods.Items())
//	methods := llm.ParseMethodList(raw)
package llm

import (
	"context"
	"strings"
)

// maxAbstractRunes bounds the abstract text sent to the model.
const maxAbstractRunes = 12000

// MethodExtractor defines the interface for LLM-based method extraction.
type MethodExtractor interface {
	// ExtractMethods returns a comma-separated list of the vocabulary entries
	// the abstract describes using. An empty string means none matched.
	ExtractMethods(ctx context.Context, abstract string, vocabulary []string) (string, error)

	// Provider returns the name of the LLM provider (e.g., "openai", "anthropic").
	Provider() string

	// Model returns the model identifier being used.
	Model() string
}

// BuildMethodPrompt builds the system and user prompts for method extraction.
func BuildMethodPrompt(abstract string, vocabulary []string) (systemPrompt, userPrompt string) {
	var sb strings.Builder

	sb.WriteString("You extract scientific methods from paper abstracts. ")
	sb.WriteString("You are given an abstract and a list of allowed methods. ")
	sb.WriteString("Answer with the allowed methods the abstract describes using, ")
	sb.WriteString("written exactly as they appear in the list and separated by commas. ")
	sb.WriteString("If none of them are used, answer with an empty line. ")
	sb.WriteString("Do not add explanations or methods that are not in the list.")
	systemPrompt = sb.String()

	sb.Reset()
	sb.WriteString("Allowed methods: ")
	sb.WriteString(strings.Join(vocabulary, ", "))
	sb.WriteString("\n\nAbstract:\n---\n")
	sb.WriteString(truncateRunes(strings.TrimSpace(abstract), maxAbstractRunes))
	sb.WriteString("\n---")
	userPrompt = sb.String()

	return systemPrompt, userPrompt
}

// ParseMethodList splits a comma-separated model answer into trimmed method
// names. List punctuation some models add ("[", "]", quotes, a trailing
// period) is stripped, and "none" answers yield an empty list.
func ParseMethodList(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}

	var methods []string
	for _, part := range strings.Split(raw, ",") {
		m := strings.Trim(strings.TrimSpace(part), "\"'.`[] ")
		if m == "" || strings.EqualFold(m, "none") {
			continue
		}
		methods = append(methods, m)
	}
	return methods
}

// FilterToVocabulary keeps the methods that appear in vocabulary, compared
// case-insensitively, returning them in vocabulary spelling.
func FilterToVocabulary(methods, vocabulary []string) []string {
	allowed := make(map[string]string, len(vocabulary))
	for _, v := range vocabulary {
		allowed[strings.ToLower(strings.TrimSpace(v))] = v
	}

	var out []string
	seen := make(map[string]struct{}, len(methods))
	for _, m := range methods {
		key := strings.ToLower(strings.TrimSpace(m))
		v, ok := allowed[key]
		if !ok {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, v)
	}
	return out
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
