package pipeline

import (
	"fmt"
	"sort"

	"github.com/tradarlab/tradar/internal/store"
)

// trace accumulates human-readable stage annotations in causal order.
// Disabled traces drop everything.
type trace struct {
	enabled bool
	lines   []string
}

func newTrace(enabled bool) *trace {
	return &trace{enabled: enabled}
}

func (t *trace) logf(format string, args ...any) {
	if !t.enabled {
		return
	}
	t.lines = append(t.lines, fmt.Sprintf(format, args...))
}

// buildDebug mirrors every scoring stage as rank-ordered tables. Purely
// observational; nothing here feeds back into ranking.
func (p *Pipeline) buildDebug(imageCandidates map[string]*imageCandidate, textCandidates map[string]*textCandidate, bm25Hits []store.Hit, imageSorted, textSorted []string, tr *trace) *Debug {
	return &Debug{
		ImageDino: metricRows(imageCandidates, func(c *imageCandidate) float64 {
			return c.dino
		}),
		ImageMetaclip: metricRows(imageCandidates, func(c *imageCandidate) float64 {
			return c.metaclip
		}),
		TextMetaclip: metricRows(textCandidates, func(c *textCandidate) float64 {
			return c.metaclip
		}),
		TextBM25:     hitRows(bm25Hits),
		ImageBlended: p.blendRows(imageSorted, imageCandidates),
		TextRanked:   rankedRows(textSorted, textCandidates),
		Log:          tr.lines,
	}
}

// metricRows tabulates one candidate metric over the full candidate set,
// best first.
func metricRows[C any](candidates map[string]*C, metric func(*C) float64) []Row {
	type item struct {
		id    string
		score float64
	}
	items := make([]item, 0, len(candidates))
	for id, c := range candidates {
		items = append(items, item{id: id, score: metric(c)})
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].score != items[j].score {
			return items[i].score > items[j].score
		}
		return items[i].id < items[j].id
	})
	rows := make([]Row, len(items))
	for i, it := range items {
		rows[i] = Row{Rank: i + 1, ID: it.id, Score: round4(it.score)}
	}
	return rows
}

// hitRows tabulates raw backend hits in their reported order.
func hitRows(hits []store.Hit) []Row {
	rows := make([]Row, 0, len(hits))
	for _, h := range hits {
		if h.ID == "" {
			continue
		}
		rows = append(rows, Row{Rank: len(rows) + 1, ID: h.ID, Score: round4(h.Score)})
	}
	return rows
}

// rankedRows tabulates the final text ranking in rank order.
func rankedRows(ids []string, candidates map[string]*textCandidate) []Row {
	rows := make([]Row, 0, len(ids))
	for _, id := range ids {
		c, ok := candidates[id]
		if !ok {
			continue
		}
		rows = append(rows, Row{Rank: len(rows) + 1, ID: id, Score: round4(c.metaclip)})
	}
	return rows
}

// blendRows tabulates the final image ranking with sub-space scores
// alongside the blend.
func (p *Pipeline) blendRows(ids []string, candidates map[string]*imageCandidate) []BlendRow {
	rows := make([]BlendRow, 0, len(ids))
	for _, id := range ids {
		c, ok := candidates[id]
		if !ok {
			continue
		}
		rows = append(rows, BlendRow{
			Rank:     len(rows) + 1,
			ID:       id,
			Dino:     round4(c.dino),
			Metaclip: round4(c.metaclip),
			Blended:  round4(p.blendImage(c)),
		})
	}
	return rows
}
