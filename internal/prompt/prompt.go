// Package prompt interprets free-form re-search prompts ("exclude marks
// containing X", "must start with T-") into structured search hints. The
// LLM-backed interpreter degrades to treating the raw prompt as a single
// additional search term, so a failed interpretation never fails a search.
package prompt

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/tradarlab/tradar/internal/llm"
)

// interpretTimeout is the maximum time to wait for LLM interpretation.
const interpretTimeout = 5 * time.Second

// maxTerms caps each term list from the LLM.
const maxTerms = 5

// Interpretation holds structured instructions derived from a user prompt.
type Interpretation struct {
	AdditionalTerms []string // extra query terms, weighted as variants
	MustPrefix      string   // required title prefix, empty = none
	MustInclude     []string // required title substrings
	MustExclude     []string // forbidden title substrings
	Notes           string
	FallbackReason  string // non-empty when the LLM path was skipped or failed
	RawResponse     string
}

// HasConstraints reports whether any hard textual constraint is present.
func (i *Interpretation) HasConstraints() bool {
	return strings.TrimSpace(i.MustPrefix) != "" || len(i.MustInclude) > 0 || len(i.MustExclude) > 0
}

// Interpreter turns a base query and a clarification prompt into hints.
type Interpreter interface {
	Interpret(ctx context.Context, baseText, userPrompt string) Interpretation
}

const interpretSystemPrompt = "You are an expert trademark search assistant. " +
	"Summarize the user's clarification into structured constraints."

// LLMInterpreter implements Interpreter over an LLM provider.
// A nil provider always takes the fallback path.
type LLMInterpreter struct {
	provider llm.Provider
}

func NewLLMInterpreter(provider llm.Provider) *LLMInterpreter {
	return &LLMInterpreter{provider: provider}
}

func (it *LLMInterpreter) Interpret(ctx context.Context, baseText, userPrompt string) Interpretation {
	userPrompt = strings.TrimSpace(userPrompt)
	if userPrompt == "" {
		return Interpretation{}
	}
	if it.provider == nil {
		return fallback(userPrompt, "llm_disabled", "")
	}

	base := baseText
	if base == "" {
		base = "(none)"
	}
	request := fmt.Sprintf(
		"Return strict JSON with keys: additional_terms (array of up to 5 short phrases), "+
			"must_prefix (string or null), must_include (array of short lowercase tokens), "+
			"must_exclude (array of tokens), notes (string or null). "+
			"Do not add commentary.\nBase trademark query: %s\nUser clarification: %s",
		base, userPrompt)

	interpretCtx, cancel := context.WithTimeout(ctx, interpretTimeout)
	defer cancel()

	raw, err := it.provider.Complete(interpretCtx, request, llm.CompletionOpts{
		System:      interpretSystemPrompt,
		MaxTokens:   400,
		Temperature: 0.1,
	})
	if err != nil {
		return fallback(userPrompt, "llm_error", "")
	}

	var wire struct {
		AdditionalTerms []string `json:"additional_terms"`
		MustPrefix      *string  `json:"must_prefix"`
		MustInclude     []string `json:"must_include"`
		MustExclude     []string `json:"must_exclude"`
		Notes           *string  `json:"notes"`
	}
	if err := json.Unmarshal([]byte(stripFences(raw)), &wire); err != nil {
		return fallback(userPrompt, "llm_parse_error", raw)
	}

	result := Interpretation{
		AdditionalTerms: sanitizeTerms(wire.AdditionalTerms),
		MustPrefix:      cleanStr(wire.MustPrefix),
		MustInclude:     sanitizeTerms(wire.MustInclude),
		MustExclude:     sanitizeTerms(wire.MustExclude),
		Notes:           cleanStr(wire.Notes),
		RawResponse:     raw,
	}
	augmentFromPrompt(userPrompt, &result)
	return result
}

func fallback(userPrompt, reason, raw string) Interpretation {
	result := Interpretation{
		AdditionalTerms: sanitizeTerms([]string{userPrompt}),
		FallbackReason:  reason,
		RawResponse:     raw,
	}
	augmentFromPrompt(userPrompt, &result)
	return result
}

var prefixPattern = regexp.MustCompile(`'([^']+)'\s*로\s*시작`)

// augmentFromPrompt extracts a title prefix directly from the raw prompt
// when the LLM missed it. Korean prompts phrase this as "'X'로 시작".
func augmentFromPrompt(userPrompt string, result *Interpretation) {
	if result.MustPrefix != "" {
		return
	}
	lower := strings.ToLower(userPrompt)
	if m := prefixPattern.FindStringSubmatch(lower); m != nil {
		result.MustPrefix = m[1]
		return
	}
	if strings.Contains(lower, "로 시작") && strings.Contains(lower, "t-") {
		result.MustPrefix = "t-"
	}
}

func sanitizeTerms(values []string) []string {
	var terms []string
	for _, v := range values {
		if cleaned := strings.TrimSpace(v); cleaned != "" {
			terms = append(terms, cleaned)
		}
		if len(terms) == maxTerms {
			break
		}
	}
	return terms
}

func cleanStr(value *string) string {
	if value == nil {
		return ""
	}
	return strings.TrimSpace(*value)
}

// stripFences removes a markdown code fence wrapper from an LLM response.
func stripFences(raw string) string {
	raw = strings.TrimSpace(raw)
	if !strings.Contains(raw, "```") {
		return raw
	}
	for _, chunk := range strings.Split(raw, "```") {
		chunk = strings.TrimSpace(chunk)
		if strings.HasPrefix(strings.ToLower(chunk), "json") {
			return strings.TrimSpace(chunk[4:])
		}
		if strings.HasPrefix(chunk, "{") {
			return chunk
		}
	}
	return raw
}
