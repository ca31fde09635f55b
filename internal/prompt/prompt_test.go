package prompt

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/tradarlab/tradar/internal/llm"
)

type fakeProvider struct {
	response string
	err      error
}

func (f *fakeProvider) Complete(context.Context, string, llm.CompletionOpts) (string, error) {
	return f.response, f.err
}

func (f *fakeProvider) Name() string { return "fake/model" }

func TestInterpretEmptyPrompt(t *testing.T) {
	it := NewLLMInterpreter(&fakeProvider{})
	got := it.Interpret(context.Background(), "sonata", "   ")
	if got.HasConstraints() || len(got.AdditionalTerms) != 0 {
		t.Errorf("empty prompt should yield zero interpretation, got %+v", got)
	}
}

func TestInterpretStructuredResponse(t *testing.T) {
	it := NewLLMInterpreter(&fakeProvider{response: `{
		"additional_terms": ["쏘나타", " sonate "],
		"must_prefix": "so",
		"must_include": ["na"],
		"must_exclude": ["x"],
		"notes": "phonetic variants"
	}`})

	got := it.Interpret(context.Background(), "sonata", "include phonetic forms")
	if !got.HasConstraints() {
		t.Fatal("expected constraints")
	}
	if got.MustPrefix != "so" {
		t.Errorf("MustPrefix = %q", got.MustPrefix)
	}
	if want := []string{"쏘나타", "sonate"}; !reflect.DeepEqual(got.AdditionalTerms, want) {
		t.Errorf("AdditionalTerms = %v, want %v", got.AdditionalTerms, want)
	}
	if got.FallbackReason != "" {
		t.Errorf("FallbackReason = %q, want empty", got.FallbackReason)
	}
}

func TestInterpretFencedResponse(t *testing.T) {
	it := NewLLMInterpreter(&fakeProvider{response: "```json\n{\"must_include\": [\"tea\"]}\n```"})

	got := it.Interpret(context.Background(), "", "tea brands only")
	if want := []string{"tea"}; !reflect.DeepEqual(got.MustInclude, want) {
		t.Errorf("MustInclude = %v, want %v", got.MustInclude, want)
	}
}

func TestInterpretFallbackOnError(t *testing.T) {
	it := NewLLMInterpreter(&fakeProvider{err: errors.New("provider down")})

	got := it.Interpret(context.Background(), "sonata", "exclude hybrids")
	if got.FallbackReason != "llm_error" {
		t.Errorf("FallbackReason = %q, want llm_error", got.FallbackReason)
	}
	if want := []string{"exclude hybrids"}; !reflect.DeepEqual(got.AdditionalTerms, want) {
		t.Errorf("AdditionalTerms = %v, want the raw prompt %v", got.AdditionalTerms, want)
	}
	if got.HasConstraints() {
		t.Error("fallback should carry no hard constraints")
	}
}

func TestInterpretFallbackOnProse(t *testing.T) {
	it := NewLLMInterpreter(&fakeProvider{response: "sure, here is what I think"})

	got := it.Interpret(context.Background(), "sonata", "some clarification")
	if got.FallbackReason != "llm_parse_error" {
		t.Errorf("FallbackReason = %q, want llm_parse_error", got.FallbackReason)
	}
}

func TestInterpretNilProvider(t *testing.T) {
	it := NewLLMInterpreter(nil)

	got := it.Interpret(context.Background(), "sonata", "prompt text")
	if got.FallbackReason != "llm_disabled" {
		t.Errorf("FallbackReason = %q, want llm_disabled", got.FallbackReason)
	}
}

func TestAugmentFromPrompt(t *testing.T) {
	tests := []struct {
		name       string
		prompt     string
		existing   string
		wantPrefix string
	}{
		{"korean prefix phrase", "'스타'로 시작하는 상표만", "", "스타"},
		{"t-dash shorthand", "T-로 시작", "", "t-"},
		{"existing prefix wins", "'스타'로 시작", "pre", "pre"},
		{"no prefix phrase", "exclude tea brands", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Interpretation{MustPrefix: tt.existing}
			augmentFromPrompt(tt.prompt, &result)
			if result.MustPrefix != tt.wantPrefix {
				t.Errorf("MustPrefix = %q, want %q", result.MustPrefix, tt.wantPrefix)
			}
		})
	}
}

func TestHasConstraints(t *testing.T) {
	var i Interpretation
	if i.HasConstraints() {
		t.Error("zero value should have no constraints")
	}
	i.MustExclude = []string{"x"}
	if !i.HasConstraints() {
		t.Error("exclude list should count as constraint")
	}
}
