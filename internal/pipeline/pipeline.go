// Package pipeline implements the multimodal trademark search core: query
// vector construction, retrieval fan-out across two image spaces, one text
// space and the lexical index, exact cosine rescoring, blended ranking,
// prompt-constraint reordering, and top/misc partitioning.
package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/tradarlab/tradar/internal/backend"
	"github.com/tradarlab/tradar/internal/cache"
	"github.com/tradarlab/tradar/internal/prompt"
	"github.com/tradarlab/tradar/internal/store"
	"github.com/tradarlab/tradar/internal/variants"
	"github.com/tradarlab/tradar/internal/vector"
)

const (
	// ImageTopN and TextTopN bound per-backend retrieval, sized well above
	// typical k so the rescoring pass has enough candidates.
	ImageTopN = 100
	TextTopN  = 100

	// DefaultTopK is used when a request does not specify k.
	DefaultTopK = 20

	// MiscLimit is the size of the rank window immediately after top-k
	// from which non-primary-status results are surfaced.
	MiscLimit = 10

	// Weight applied to variant terms when building a query vector.
	// The primary term always carries 1.0.
	variantWeight = 0.8
)

// DefaultPrimaryStatuses are the lifecycle states treated as live or
// registered for the misc partition, matched case-insensitively.
var DefaultPrimaryStatuses = []string{
	"등록", "공고", "registered", "publication", "public", "notified",
}

// ImageEncoder embeds image bytes into every configured image space.
type ImageEncoder interface {
	EncodeImage(ctx context.Context, imageBytes []byte) (map[string][]float32, error)
}

// TextEncoder embeds a single text into the text vector space.
type TextEncoder interface {
	EmbedText(ctx context.Context, text string) ([]float32, error)
}

// VectorSearcher serves ANN search plus bulk exact-vector fetches.
type VectorSearcher interface {
	Search(ctx context.Context, space string, vector []float32, topn int) ([]store.Hit, error)
	FetchVectors(ctx context.Context, space string, ids []string) (map[string][]float32, error)
}

// LexicalSearcher serves BM25 keyword search.
type LexicalSearcher interface {
	Search(ctx context.Context, text string, topn int) ([]store.Hit, error)
}

// MetadataStore bulk-fetches trademark records; unknown IDs are absent.
type MetadataStore interface {
	BulkByIDs(ctx context.Context, ids []string) (map[string]*store.Trademark, error)
}

// Config carries the tunable ranking parameters.
type Config struct {
	// Image sub-space blend weights. A weight <= 0 excludes that
	// sub-space from the blended score. Both zero means unset and
	// falls back to 0.5 / 0.5.
	DinoWeight     float64
	MetaclipWeight float64

	// PrimaryStatuses overrides DefaultPrimaryStatuses when non-nil.
	PrimaryStatuses []string
}

func (c Config) withDefaults() Config {
	if c.DinoWeight == 0 && c.MetaclipWeight == 0 {
		c.DinoWeight = 0.5
		c.MetaclipWeight = 0.5
	}
	if c.PrimaryStatuses == nil {
		c.PrimaryStatuses = DefaultPrimaryStatuses
	}
	return c
}

// Deps are the collaborators the pipeline fans out to.
type Deps struct {
	Images      ImageEncoder
	Texts       TextEncoder
	Vectors     VectorSearcher
	Lexical     LexicalSearcher
	Metadata    MetadataStore
	Expander    variants.Expander  // nil = rule-based expansion
	Interpreter prompt.Interpreter // nil = fallback interpretation
	Cache       *cache.Cache       // nil = fresh default-capacity cache
}

// Pipeline coordinates retrieval, scoring and ranking for one store.
// Safe for concurrent use; per-request state never escapes Search.
type Pipeline struct {
	images      ImageEncoder
	texts       TextEncoder
	vectors     VectorSearcher
	lexical     LexicalSearcher
	meta        MetadataStore
	expander    variants.Expander
	interpreter prompt.Interpreter
	cache       *cache.Cache
	cfg         Config
	primary     map[string]bool
}

// New validates the wiring once at construction. A missing collaborator
// is a startup error, never a per-request one.
func New(deps Deps, cfg Config) (*Pipeline, error) {
	switch {
	case deps.Images == nil:
		return nil, fmt.Errorf("pipeline: image encoder is required")
	case deps.Texts == nil:
		return nil, fmt.Errorf("pipeline: text encoder is required")
	case deps.Vectors == nil:
		return nil, fmt.Errorf("pipeline: vector backend is required")
	case deps.Lexical == nil:
		return nil, fmt.Errorf("pipeline: lexical backend is required")
	case deps.Metadata == nil:
		return nil, fmt.Errorf("pipeline: metadata store is required")
	}
	if deps.Expander == nil {
		deps.Expander = variants.RuleExpander{}
	}
	if deps.Interpreter == nil {
		deps.Interpreter = prompt.NewLLMInterpreter(nil)
	}
	if deps.Cache == nil {
		deps.Cache = cache.New(cache.DefaultCapacity)
	}

	cfg = cfg.withDefaults()
	primary := make(map[string]bool, len(cfg.PrimaryStatuses))
	for _, s := range cfg.PrimaryStatuses {
		primary[strings.ToLower(strings.TrimSpace(s))] = true
	}

	return &Pipeline{
		images:      deps.Images,
		texts:       deps.Texts,
		vectors:     deps.Vectors,
		lexical:     deps.Lexical,
		meta:        deps.Metadata,
		expander:    deps.Expander,
		interpreter: deps.Interpreter,
		cache:       deps.Cache,
		cfg:         cfg,
		primary:     primary,
	}, nil
}

// Search runs the full pipeline for one request.
func (p *Pipeline) Search(ctx context.Context, req Request) (*Response, error) {
	manual := strings.TrimSpace(req.Text)
	if len(req.ImageBytes) == 0 && manual == "" {
		return nil, fmt.Errorf("search requires an image or query text")
	}

	k := req.K
	if k <= 0 {
		k = DefaultTopK
	}
	tr := newTrace(req.Debug)

	// Image side: encode, optionally steer the metaclip query by the
	// image prompt, fan out, rescore.
	var (
		imageCandidates map[string]*imageCandidate
		imageOrder      []string
		imageInterp     prompt.Interpretation
	)
	if len(req.ImageBytes) > 0 {
		dinoQuery, metaclipQuery, err := p.encodeImage(ctx, req.ImageBytes)
		if err != nil {
			return nil, fmt.Errorf("image encode failed: %w", err)
		}

		if strings.TrimSpace(req.ImagePrompt) != "" {
			imageInterp = p.interpreter.Interpret(ctx, manual, req.ImagePrompt)
			metaclipQuery, err = p.blendPrompt(ctx, metaclipQuery, req.ImagePrompt, req.ImagePromptMode, imageInterp, tr)
			if err != nil {
				return nil, fmt.Errorf("image prompt blend failed: %w", err)
			}
		}

		dinoHits := p.vectorSearch(ctx, backend.SpaceDino, dinoQuery, ImageTopN, tr)
		metaclipHits := p.vectorSearch(ctx, backend.SpaceMetaclipImg, metaclipQuery, ImageTopN, tr)
		imageCandidates, imageOrder, err = p.scoreImageCandidates(ctx, dinoHits, metaclipHits, dinoQuery, metaclipQuery, tr)
		if err != nil {
			return nil, fmt.Errorf("image rescoring failed: %w", err)
		}
	} else {
		imageCandidates = make(map[string]*imageCandidate)
		tr.logf("no image supplied, image modality skipped")
	}

	// Text side: variants, weighted query vector, optional prompt blend,
	// fan out over the text space and the lexical index, rescore.
	varList := p.collectVariants(ctx, manual, req.PrecomputedVariants, tr)

	textQuery, err := p.buildTextQuery(ctx, manual, varList)
	if err != nil {
		return nil, fmt.Errorf("text encode failed: %w", err)
	}

	var textInterp prompt.Interpretation
	if strings.TrimSpace(req.TextPrompt) != "" {
		textInterp = p.interpreter.Interpret(ctx, manual, req.TextPrompt)
		textQuery, err = p.blendTextPrompt(ctx, textQuery, req.TextPrompt, req.TextPromptMode, textInterp, tr)
		if err != nil {
			return nil, fmt.Errorf("text prompt blend failed: %w", err)
		}
	}

	var textHits []store.Hit
	if tq, ok := textQuery.Vector(); ok {
		textHits = p.vectorSearch(ctx, backend.SpaceMetaclipText, tq, TextTopN, tr)
	}
	bm25Hits := p.lexicalSearch(ctx, manual, varList, tr)
	textCandidates, textOrder, err := p.scoreTextCandidates(ctx, textHits, bm25Hits, textQuery, tr)
	if err != nil {
		return nil, fmt.Errorf("text rescoring failed: %w", err)
	}

	// Rank, apply prompt constraints, partition.
	imageSorted := sortedIDs(imageOrder, func(id string) float64 {
		return p.blendImage(imageCandidates[id])
	})
	textSorted := sortedIDs(textOrder, func(id string) float64 {
		return textCandidates[id].metaclip
	})

	constrained := imageInterp.HasConstraints() || textInterp.HasConstraints()
	var meta map[string]*store.Trademark
	if constrained {
		meta, err = p.meta.BulkByIDs(ctx, unionIDs(imageSorted, textSorted))
		if err != nil {
			return nil, fmt.Errorf("metadata fetch failed: %w", err)
		}
		if imageInterp.HasConstraints() {
			imageSorted = reorderByConstraints(imageSorted, meta, imageInterp)
			tr.logf("image ranking reordered by prompt constraints")
		}
		if textInterp.HasConstraints() {
			textSorted = reorderByConstraints(textSorted, meta, textInterp)
			tr.logf("text ranking reordered by prompt constraints")
		}
	}

	imageTopIDs := headIDs(imageSorted, k)
	imageMiscIDs := windowIDs(imageSorted, k, MiscLimit)
	textTopIDs := headIDs(textSorted, k)
	textMiscIDs := windowIDs(textSorted, k, MiscLimit)

	if !constrained {
		meta, err = p.meta.BulkByIDs(ctx, unionIDs(imageTopIDs, imageMiscIDs, textTopIDs, textMiscIDs))
		if err != nil {
			return nil, fmt.Errorf("metadata fetch failed: %w", err)
		}
	}

	resp := &Response{
		Query: QueryInfo{
			K:               k,
			Text:            manual,
			Variants:        varList,
			ImagePrompt:     strings.TrimSpace(req.ImagePrompt),
			ImagePromptMode: req.ImagePromptMode,
			TextPrompt:      strings.TrimSpace(req.TextPrompt),
			TextPromptMode:  req.TextPromptMode,
		},
		ImageTop:  p.buildResults(imageTopIDs, meta, imageCandidates, textCandidates),
		ImageMisc: p.buildMiscResults(imageMiscIDs, meta, imageCandidates, textCandidates),
		TextTop:   p.buildResults(textTopIDs, meta, imageCandidates, textCandidates),
		TextMisc:  p.buildMiscResults(textMiscIDs, meta, imageCandidates, textCandidates),
	}
	if req.Debug {
		resp.Debug = p.buildDebug(imageCandidates, textCandidates, bm25Hits, imageSorted, textSorted, tr)
	}
	return resp, nil
}

// encodeImage runs the image encoder through the cache, one entry per
// space keyed by content hash. A cold cache encodes once per request.
func (p *Pipeline) encodeImage(ctx context.Context, imageBytes []byte) (dino, metaclip vector.Vector, err error) {
	baseKey := cache.ImageKey(imageBytes)
	var encoded map[string][]float32

	fetch := func(space string) (vector.Vector, error) {
		return p.cache.GetOrCompute(baseKey+":"+space, func() (vector.Vector, error) {
			if encoded == nil {
				m, err := p.images.EncodeImage(ctx, imageBytes)
				if err != nil {
					return nil, err
				}
				encoded = m
			}
			v, ok := encoded[space]
			if !ok {
				return nil, fmt.Errorf("encoder returned no %s embedding", space)
			}
			return vector.Vector(v), nil
		})
	}

	if dino, err = fetch(backend.SpaceDino); err != nil {
		return nil, nil, err
	}
	if metaclip, err = fetch(backend.SpaceMetaclipImg); err != nil {
		return nil, nil, err
	}
	return dino, metaclip, nil
}

// collectVariants prefers caller-precomputed variants over the expander.
// Either way the result is de-duplicated against the base text.
func (p *Pipeline) collectVariants(ctx context.Context, manual string, precomputed []string, tr *trace) []string {
	if manual == "" && len(precomputed) == 0 {
		return nil
	}
	if len(precomputed) > 0 {
		accepted := variants.Dedupe(manual, precomputed)
		tr.logf("%d precomputed variants accepted", len(accepted))
		return accepted
	}
	return p.expander.Expand(ctx, manual)
}

// buildTextQuery encodes the primary term at weight 1.0 and every variant
// at variantWeight, accumulates, and normalizes. No terms at all yields
// an absent query, not a zero vector.
func (p *Pipeline) buildTextQuery(ctx context.Context, primary string, varList []string) (vector.Query, error) {
	var terms []string
	if strings.TrimSpace(primary) != "" {
		terms = append(terms, primary)
	}
	for _, v := range varList {
		if strings.TrimSpace(v) != "" {
			terms = append(terms, v)
		}
	}
	if len(terms) == 0 {
		return vector.Absent(), nil
	}

	var acc vector.Accumulator
	for i, term := range terms {
		vec, err := p.embedText(ctx, term)
		if err != nil {
			return vector.Absent(), fmt.Errorf("embedding %q: %w", term, err)
		}
		weight := variantWeight
		if i == 0 {
			weight = 1.0
		}
		if err := acc.Add(vec, weight); err != nil {
			return vector.Absent(), err
		}
	}
	return vector.Present(acc.Normalized()), nil
}

func (p *Pipeline) embedText(ctx context.Context, term string) (vector.Vector, error) {
	return p.cache.GetOrCompute(cache.TextKey(term), func() (vector.Vector, error) {
		v, err := p.texts.EmbedText(ctx, term)
		if err != nil {
			return nil, err
		}
		return vector.Vector(v), nil
	})
}

// blendPrompt steers a base vector toward a prompt-derived vector using
// the requested blend mode. The prompt vector is built from the raw
// prompt plus the interpretation's additional terms.
func (p *Pipeline) blendPrompt(ctx context.Context, base vector.Vector, userPrompt, mode string, interp prompt.Interpretation, tr *trace) (vector.Vector, error) {
	promptQuery, err := p.buildTextQuery(ctx, userPrompt, interp.AdditionalTerms)
	if err != nil {
		return nil, err
	}
	pv, ok := promptQuery.Vector()
	if !ok {
		return base, nil
	}
	weight := vector.ResolveBlendWeight(mode)
	blended, err := vector.Blend(base, pv, weight)
	if err != nil {
		return nil, err
	}
	tr.logf("prompt blend ratio %.1f/%.1f applied", weight, 1-weight)
	if n := len(interp.AdditionalTerms); n > 0 {
		tr.logf("%d prompt-derived terms added", n)
	}
	return blended, nil
}

// blendTextPrompt is blendPrompt for the text query, which may be absent.
// With no base vector the prompt vector becomes the sole query.
func (p *Pipeline) blendTextPrompt(ctx context.Context, base vector.Query, userPrompt, mode string, interp prompt.Interpretation, tr *trace) (vector.Query, error) {
	baseVec, ok := base.Vector()
	if !ok {
		promptQuery, err := p.buildTextQuery(ctx, userPrompt, interp.AdditionalTerms)
		if err != nil {
			return vector.Absent(), err
		}
		if _, present := promptQuery.Vector(); present {
			tr.logf("prompt vector used as sole text query")
		}
		return promptQuery, nil
	}
	blended, err := p.blendPrompt(ctx, baseVec, userPrompt, mode, interp, tr)
	if err != nil {
		return vector.Absent(), err
	}
	return vector.Present(blended), nil
}

// vectorSearch degrades a failed space to zero hits; the request
// continues on the remaining signals.
func (p *Pipeline) vectorSearch(ctx context.Context, space string, query vector.Vector, topn int, tr *trace) []store.Hit {
	hits, err := p.vectors.Search(ctx, space, query, topn)
	if err != nil {
		tr.logf("vector search degraded for %s: %v", space, err)
		return nil
	}
	return hits
}

// lexicalSearch joins the base text and variants into one query and
// degrades failures to zero hits.
func (p *Pipeline) lexicalSearch(ctx context.Context, manual string, varList []string, tr *trace) []store.Hit {
	terms := make([]string, 0, len(varList)+1)
	if manual != "" {
		terms = append(terms, manual)
	}
	for _, v := range varList {
		if v = strings.TrimSpace(v); v != "" {
			terms = append(terms, v)
		}
	}
	if len(terms) == 0 {
		return nil
	}
	hits, err := p.lexical.Search(ctx, strings.Join(terms, " "), TextTopN)
	if err != nil {
		tr.logf("lexical search degraded: %v", err)
		return nil
	}
	return hits
}

func unionIDs(lists ...[]string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, list := range lists {
		for _, id := range list {
			if !seen[id] {
				seen[id] = true
				out = append(out, id)
			}
		}
	}
	return out
}

func headIDs(ids []string, k int) []string {
	if len(ids) > k {
		ids = ids[:k]
	}
	return ids
}

func windowIDs(ids []string, offset, size int) []string {
	if offset >= len(ids) {
		return nil
	}
	end := offset + size
	if end > len(ids) {
		end = len(ids)
	}
	return ids[offset:end]
}
