package pipeline

import (
	"strings"

	"github.com/tradarlab/tradar/internal/prompt"
	"github.com/tradarlab/tradar/internal/store"
)

// Constraint buckets, in final-order priority. Hard textual constraints
// override score ranking once any constraint is given; score order
// survives only within a bucket.
const (
	bucketPrefixAndInclude = iota // matches prefix and all must-include terms
	bucketInclude                 // matches all must-include terms only
	bucketRemainder               // not excluded, fails inclusion or prefix
	bucketExcluded                // violates an exclusion term
)

// reorderByConstraints partitions ranked ids into the four constraint
// buckets and concatenates them, preserving the incoming order inside
// each bucket. Entities without metadata rank as remainder.
func reorderByConstraints(ranked []string, meta map[string]*store.Trademark, interp prompt.Interpretation) []string {
	buckets := make([][]string, 4)
	for _, id := range ranked {
		b := classifyConstraint(meta[id], interp)
		buckets[b] = append(buckets[b], id)
	}
	out := make([]string, 0, len(ranked))
	for _, bucket := range buckets {
		out = append(out, bucket...)
	}
	return out
}

func classifyConstraint(record *store.Trademark, interp prompt.Interpretation) int {
	titleKo, titleEn := normalizedTitles(record)
	combined := titleKo + " " + titleEn

	for _, term := range interp.MustExclude {
		if term = normalizeConstraintTerm(term); term != "" && strings.Contains(combined, term) {
			return bucketExcluded
		}
	}

	allIncluded := true
	for _, term := range interp.MustInclude {
		if term = normalizeConstraintTerm(term); term != "" && !strings.Contains(combined, term) {
			allIncluded = false
			break
		}
	}

	prefix := normalizeConstraintTerm(interp.MustPrefix)
	if prefix != "" && allIncluded &&
		(strings.HasPrefix(titleKo, prefix) || strings.HasPrefix(titleEn, prefix)) {
		return bucketPrefixAndInclude
	}
	if len(interp.MustInclude) > 0 && allIncluded {
		return bucketInclude
	}
	return bucketRemainder
}

func normalizedTitles(record *store.Trademark) (ko, en string) {
	if record == nil {
		return "", ""
	}
	return strings.ToLower(strings.TrimSpace(record.TitleKorean)),
		strings.ToLower(strings.TrimSpace(record.TitleEnglish))
}

func normalizeConstraintTerm(term string) string {
	return strings.ToLower(strings.TrimSpace(term))
}

// isPrimaryStatus reports whether a display status names a live or
// registered lifecycle state.
func (p *Pipeline) isPrimaryStatus(status string) bool {
	return p.primary[strings.ToLower(strings.TrimSpace(status))]
}
