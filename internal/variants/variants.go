// Package variants generates alternate renderings of a trademark name for
// query broadening. Two expanders exist: a deterministic rule-based one
// (whitespace and punctuation foldings) and an LLM-backed one that adds
// phonetic, semantic, and multilingual variants on top of the rule seeds.
package variants

import (
	"context"
	"regexp"
	"strings"
)

// Expander broadens a base trademark name into distinct variant strings.
// The returned sequence is order-preserving and case-insensitively
// de-duplicated against the base and against itself. Expansion never
// fails: a degraded expander returns fewer (possibly zero) variants.
type Expander interface {
	Expand(ctx context.Context, base string) []string
}

var (
	// Variants are restricted to letters, digits, Hangul, and a few
	// connector characters. Anything else is LLM noise.
	allowedPattern = regexp.MustCompile(`^[0-9A-Za-z가-힣\-\s'·]+$`)
	spaceRun       = regexp.MustCompile(`\s+`)
	nonAlnum       = regexp.MustCompile(`[^0-9A-Za-z가-힣]+`)
)

// RuleExpander derives deterministic variants: collapsed whitespace,
// punctuation stripped, and spaces removed. It needs no external service,
// so expansion still works when no LLM is configured.
type RuleExpander struct{}

func (RuleExpander) Expand(_ context.Context, base string) []string {
	base = strings.TrimSpace(base)
	if base == "" {
		return nil
	}

	collapsed := strings.TrimSpace(spaceRun.ReplaceAllString(base, " "))
	alnum := strings.TrimSpace(nonAlnum.ReplaceAllString(base, " "))
	noSpace := strings.ReplaceAll(collapsed, " ", "")

	return Dedupe(base, []string{collapsed, alnum, noSpace})
}

// Dedupe filters candidates down to acceptable, distinct variants of base:
// case-insensitive de-duplication against base and prior candidates,
// first occurrence wins, unusable candidates dropped.
func Dedupe(base string, candidates []string) []string {
	baseNorm := normalize(base)
	seen := make(map[string]bool, len(candidates))
	var out []string
	for _, cand := range candidates {
		cand = strings.TrimSpace(cand)
		if cand == "" || !acceptCandidate(baseNorm, cand) {
			continue
		}
		key := strings.ToLower(cand)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, cand)
	}
	return out
}

func acceptCandidate(baseNorm, candidate string) bool {
	if strings.ContainsAny(candidate, "()") {
		return false
	}
	if !allowedPattern.MatchString(candidate) {
		return false
	}
	candNorm := normalize(candidate)
	return candNorm != "" && candNorm != baseNorm
}

func normalize(text string) string {
	return strings.ToLower(strings.TrimSpace(text))
}
