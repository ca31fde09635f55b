package variants

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/tradarlab/tradar/internal/llm"
)

func TestRuleExpander(t *testing.T) {
	tests := []struct {
		name string
		base string
		want []string
	}{
		{"empty", "", nil},
		{"whitespace only", "   ", nil},
		{"spaced name", "star  bucks", []string{"star bucks", "starbucks"}},
		{"punctuated name", "coca-cola", []string{"coca cola"}},
		{"korean with space", "스타 벅스", []string{"스타벅스"}},
		{"single word no variants", "sonata", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RuleExpander{}.Expand(context.Background(), tt.base)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Expand(%q) = %v, want %v", tt.base, got, tt.want)
			}
		})
	}
}

func TestDedupe(t *testing.T) {
	got := Dedupe("Sonata", []string{
		"소나타",
		"SONATA",   // case-folds to the base, dropped
		"sonate",
		"소나타",    // duplicate, dropped
		"Sonate",   // case-duplicate, dropped
		"so(nata)", // parentheses, dropped
		"sona_ta",  // disallowed character, dropped
		"  ",       // blank, dropped
	})
	want := []string{"소나타", "sonate"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Dedupe = %v, want %v", got, want)
	}
}

func TestDedupeOrderPreserving(t *testing.T) {
	got := Dedupe("base", []string{"cc", "aa", "bb", "aa"})
	want := []string{"cc", "aa", "bb"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Dedupe = %v, want first-occurrence order %v", got, want)
	}
}

// fakeProvider returns a canned completion or error.
type fakeProvider struct {
	response string
	err      error
	calls    int
}

func (f *fakeProvider) Complete(context.Context, string, llm.CompletionOpts) (string, error) {
	f.calls++
	return f.response, f.err
}

func (f *fakeProvider) Name() string { return "fake/model" }

func TestLLMExpander(t *testing.T) {
	p := &fakeProvider{response: `["소나타", "sonate", "SONATA"]`}
	e := NewLLMExpander(p)

	got := e.Expand(context.Background(), "sonata")
	want := []string{"소나타", "sonate"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Expand = %v, want %v", got, want)
	}
}

func TestLLMExpanderCaches(t *testing.T) {
	p := &fakeProvider{response: `["소나타"]`}
	e := NewLLMExpander(p)

	e.Expand(context.Background(), "sonata")
	e.Expand(context.Background(), "  SONATA ") // same normalized key
	if p.calls != 1 {
		t.Errorf("provider calls = %d, want 1 (second hit served from cache)", p.calls)
	}
}

func TestLLMExpanderFallsBackToRuleSeeds(t *testing.T) {
	p := &fakeProvider{err: errors.New("provider down")}
	e := NewLLMExpander(p)

	got := e.Expand(context.Background(), "star bucks")
	want := []string{"starbucks"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Expand = %v, want rule seeds %v", got, want)
	}
}

func TestLLMExpanderBadJSONFallsBack(t *testing.T) {
	p := &fakeProvider{response: "I think good variants would be..."}
	e := NewLLMExpander(p)

	got := e.Expand(context.Background(), "coca-cola")
	want := []string{"coca cola"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Expand = %v, want rule seeds %v", got, want)
	}
}

func TestParseVariantResponse(t *testing.T) {
	tests := []struct {
		name    string
		resp    string
		want    []string
		wantErr bool
	}{
		{"clean array", `["a", "b"]`, []string{"a", "b"}, false},
		{"fenced array", "```json\n[\"a\", \"b\"]\n```", []string{"a", "b"}, false},
		{"object wrapper", `{"variants": ["a"]}`, []string{"a"}, false},
		{"prose", "here are some variants", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseVariantResponse(tt.resp)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && !reflect.DeepEqual(got, tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}
