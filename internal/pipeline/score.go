package pipeline

import (
	"context"
	"fmt"
	"sort"

	"github.com/tradarlab/tradar/internal/backend"
	"github.com/tradarlab/tradar/internal/store"
	"github.com/tradarlab/tradar/internal/vector"
)

// sentinelScore marks an entity with no valid similarity. Sentinel-scored
// entities are excluded from ranking, never sorted to the bottom.
const sentinelScore = -1.0

// imageCandidate accumulates per-entity exact scores across the two image
// sub-spaces. Lifetime is one request.
type imageCandidate struct {
	dino     float64
	metaclip float64
}

// textCandidate accumulates the exact text-space score and the maximum
// BM25 score seen across duplicate lexical hits.
type textCandidate struct {
	metaclip float64
	bm25     float64
}

// scoreImageCandidates unions both image spaces' hit lists and replaces
// the backends' approximate scores with exact cosine similarity against
// each sub-space's query vector. Candidates missing an embedding in a
// sub-space score sentinelScore there. The returned order slice records
// first appearance for stable tie-breaking.
func (p *Pipeline) scoreImageCandidates(ctx context.Context, dinoHits, metaclipHits []store.Hit, dinoQuery, metaclipQuery vector.Vector, tr *trace) (map[string]*imageCandidate, []string, error) {
	candidates := make(map[string]*imageCandidate)
	var order []string
	add := func(id string) {
		if id == "" {
			return
		}
		if _, ok := candidates[id]; !ok {
			candidates[id] = &imageCandidate{}
			order = append(order, id)
		}
	}
	for _, h := range dinoHits {
		add(h.ID)
	}
	for _, h := range metaclipHits {
		add(h.ID)
	}
	if len(order) == 0 {
		return candidates, order, nil
	}

	err := p.rescoreSpace(ctx, backend.SpaceDino, order, dinoQuery, tr, func(id string, score float64) {
		candidates[id].dino = score
	})
	if err != nil {
		return nil, nil, err
	}
	err = p.rescoreSpace(ctx, backend.SpaceMetaclipImg, order, metaclipQuery, tr, func(id string, score float64) {
		candidates[id].metaclip = score
	})
	if err != nil {
		return nil, nil, err
	}
	return candidates, order, nil
}

// scoreTextCandidates unions the text-space and lexical hit lists.
// BM25 keeps the maximum score per entity; the text space is rescored
// exactly when a query vector exists.
func (p *Pipeline) scoreTextCandidates(ctx context.Context, vectorHits, bm25Hits []store.Hit, query vector.Query, tr *trace) (map[string]*textCandidate, []string, error) {
	candidates := make(map[string]*textCandidate)
	var order []string
	add := func(id string) *textCandidate {
		if id == "" {
			return nil
		}
		c, ok := candidates[id]
		if !ok {
			c = &textCandidate{}
			candidates[id] = c
			order = append(order, id)
		}
		return c
	}
	for _, h := range vectorHits {
		add(h.ID)
	}
	for _, h := range bm25Hits {
		c := add(h.ID)
		if c != nil && h.Score > c.bm25 {
			c.bm25 = h.Score
		}
	}
	if len(order) == 0 {
		return candidates, order, nil
	}

	if qv, ok := query.Vector(); ok {
		err := p.rescoreSpace(ctx, backend.SpaceMetaclipText, order, qv, tr, func(id string, score float64) {
			candidates[id].metaclip = score
		})
		if err != nil {
			return nil, nil, err
		}
	}
	return candidates, order, nil
}

// rescoreSpace bulk-fetches the exact stored vectors for every candidate
// and computes cosine similarity against the query. A failed bulk fetch
// degrades the whole space to sentinel scores; a dimension mismatch
// between query and stored vectors is an error.
func (p *Pipeline) rescoreSpace(ctx context.Context, space string, ids []string, query vector.Vector, tr *trace, set func(id string, score float64)) error {
	stored, err := p.vectors.FetchVectors(ctx, space, ids)
	if err != nil {
		tr.logf("bulk vector fetch degraded for %s: %v", space, err)
		stored = nil
	}
	for _, id := range ids {
		score := sentinelScore
		if vec, ok := stored[id]; ok {
			score, err = vector.Cosine(query, vector.Vector(vec))
			if err != nil {
				return fmt.Errorf("rescoring %s in %s: %w", id, space, err)
			}
		}
		set(id, score)
	}
	return nil
}

// blendImage computes the weighted average of the sub-space scores,
// excluding sub-spaces with weight <= 0. No valid weights yields 0.0.
func (p *Pipeline) blendImage(c *imageCandidate) float64 {
	return blendScores([]scoreWeight{
		{c.dino, p.cfg.DinoWeight},
		{c.metaclip, p.cfg.MetaclipWeight},
	})
}

type scoreWeight struct {
	score  float64
	weight float64
}

func blendScores(pairs []scoreWeight) float64 {
	var sum, weightSum float64
	for _, pair := range pairs {
		if pair.weight <= 0 {
			continue
		}
		sum += pair.score * pair.weight
		weightSum += pair.weight
	}
	if weightSum == 0 {
		return 0.0
	}
	return sum / weightSum
}

// sortedIDs orders ids by score descending, stable over the given
// insertion order, excluding negative-score entities.
func sortedIDs(order []string, score func(id string) float64) []string {
	ranked := make([]string, 0, len(order))
	for _, id := range order {
		if score(id) >= 0 {
			ranked = append(ranked, id)
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return score(ranked[i]) > score(ranked[j])
	})
	return ranked
}
