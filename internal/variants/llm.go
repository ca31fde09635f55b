package variants

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/tradarlab/tradar/internal/llm"
)

const (
	// expandTimeout is the maximum time to wait for LLM variant generation.
	expandTimeout = 5 * time.Second

	// expandCacheSize is the max number of cached expansions.
	expandCacheSize = 100

	// expandMaxVariants is the max number of variants returned per base.
	expandMaxVariants = 10
)

const expandSystemPrompt = `You are a trademark name variant generator for a prior-mark conflict search engine over Korean trademark registrations.

Given a trademark name, generate up to 10 variants a confusingly-similar prior mark might be filed under.

Rules:
- Include phonetic transliterations both ways (Korean to Latin, Latin to Korean)
- Include common misspellings and spacing variants
- Include close semantic equivalents in the other language
- Each variant is a plain name, no commentary
- Return ONLY a JSON array of strings, nothing else

Examples:
Input: "소나타"
Output: ["sonata", "소나따", "쏘나타", "sonate"]

Input: "STARBUCKS"
Output: ["스타벅스", "star bucks", "starbuks", "스타박스"]`

// expandCache is a simple LRU cache for variant expansions.
type expandCache struct {
	mu      sync.Mutex
	entries map[string]*expandCacheEntry
	order   []string // oldest first
	maxSize int
}

type expandCacheEntry struct {
	variants []string
	created  time.Time
}

func newExpandCache(maxSize int) *expandCache {
	return &expandCache{
		entries: make(map[string]*expandCacheEntry),
		maxSize: maxSize,
	}
}

func (c *expandCache) get(base string) ([]string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := normalize(base)
	entry, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	// Expire after 1 hour
	if time.Since(entry.created) > time.Hour {
		delete(c.entries, key)
		return nil, false
	}
	return entry.variants, true
}

func (c *expandCache) put(base string, variants []string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := normalize(base)

	// Evict oldest if at capacity
	if len(c.entries) >= c.maxSize {
		if len(c.order) > 0 {
			oldest := c.order[0]
			delete(c.entries, oldest)
			c.order = c.order[1:]
		}
	}

	c.entries[key] = &expandCacheEntry{
		variants: variants,
		created:  time.Now(),
	}
	c.order = append(c.order, key)
}

// LLMExpander layers LLM-generated variants on top of the rule seeds.
// On any LLM failure it degrades to the rule seeds alone.
type LLMExpander struct {
	provider llm.Provider
	rules    RuleExpander
	cache    *expandCache
}

func NewLLMExpander(provider llm.Provider) *LLMExpander {
	return &LLMExpander{
		provider: provider,
		cache:    newExpandCache(expandCacheSize),
	}
}

func (e *LLMExpander) Expand(ctx context.Context, base string) []string {
	base = strings.TrimSpace(base)
	if base == "" {
		return nil
	}

	if cached, ok := e.cache.get(base); ok {
		return cached
	}

	seeds := e.rules.Expand(ctx, base)

	expandCtx, cancel := context.WithTimeout(ctx, expandTimeout)
	defer cancel()

	resp, err := e.provider.Complete(expandCtx, base, llm.CompletionOpts{
		System:      expandSystemPrompt,
		MaxTokens:   200,
		Temperature: 0.3,
		// Format:"json" is deliberately not set: thinking models consume
		// the JSON in their reasoning phase and return placeholder text.
		// The prompt instructs JSON-only output and parseVariantResponse
		// handles markdown-wrapped responses.
	})
	if err != nil {
		// Graceful fallback: rule seeds only, not cached so a recovered
		// provider gets another chance.
		return seeds
	}

	generated, parseErr := parseVariantResponse(resp)
	if parseErr != nil {
		return seeds
	}

	all := Dedupe(base, append(seeds, generated...))
	if len(all) > expandMaxVariants {
		all = all[:expandMaxVariants]
	}

	e.cache.put(base, all)
	return all
}

// parseVariantResponse parses the LLM response into a string slice.
// Handles both clean JSON arrays and markdown-wrapped responses.
func parseVariantResponse(resp string) ([]string, error) {
	resp = strings.TrimSpace(resp)

	// Strip markdown code fences if present
	if strings.HasPrefix(resp, "```") {
		lines := strings.Split(resp, "\n")
		var cleaned []string
		inBlock := false
		for _, line := range lines {
			if strings.HasPrefix(strings.TrimSpace(line), "```") {
				inBlock = !inBlock
				continue
			}
			if inBlock {
				cleaned = append(cleaned, line)
			}
		}
		resp = strings.Join(cleaned, "\n")
	}

	var variants []string
	if err := json.Unmarshal([]byte(resp), &variants); err != nil {
		// Try extracting from a JSON object wrapper
		var obj map[string]json.RawMessage
		if err2 := json.Unmarshal([]byte(resp), &obj); err2 == nil {
			for _, key := range []string{"variants", "names", "results"} {
				if raw, ok := obj[key]; ok {
					if err3 := json.Unmarshal(raw, &variants); err3 == nil {
						return variants, nil
					}
				}
			}
		}
		return nil, fmt.Errorf("failed to parse variant response as JSON array: %w", err)
	}

	return variants, nil
}
