package pipeline

import (
	"math"
	"strings"

	"github.com/tradarlab/tradar/internal/store"
)

// Display sentinels for records with unusable title or status fields.
const (
	noTitleSentinel       = "(상표명 없음)"
	unknownStatusSentinel = "상태 미상"
)

// buildResults hydrates ranked ids against fetched metadata. IDs without
// metadata are silently dropped, an omission rather than an error.
func (p *Pipeline) buildResults(ids []string, meta map[string]*store.Trademark, imageCandidates map[string]*imageCandidate, textCandidates map[string]*textCandidate) []Result {
	results := make([]Result, 0, len(ids))
	for _, id := range ids {
		record, ok := meta[id]
		if !ok {
			continue
		}

		var imageSim, textSim float64
		if c, ok := imageCandidates[id]; ok {
			imageSim = p.blendImage(c)
		}
		if c, ok := textCandidates[id]; ok {
			textSim = c.metaclip
		}

		results = append(results, Result{
			ID:              record.ApplicationNumber,
			Title:           displayTitle(record),
			Status:          displayStatus(record.Status),
			ClassCodes:      record.ClassCodes,
			ImageSimilarity: round4(imageSim),
			TextSimilarity:  round4(textSim),
			ThumbURL:        record.ThumbURL,
		})
	}
	return results
}

// buildMiscResults hydrates a misc window and keeps only entities whose
// status is not a primary status.
func (p *Pipeline) buildMiscResults(ids []string, meta map[string]*store.Trademark, imageCandidates map[string]*imageCandidate, textCandidates map[string]*textCandidate) []Result {
	misc := make([]Result, 0, len(ids))
	for _, result := range p.buildResults(ids, meta, imageCandidates, textCandidates) {
		if p.isPrimaryStatus(result.Status) {
			continue
		}
		misc = append(misc, result)
	}
	return misc
}

// displayTitle prefers the Korean title, then English, then the no-title
// sentinel. A title equal to the application number is a data-quality
// artifact and treated as empty.
func displayTitle(record *store.Trademark) string {
	if record == nil {
		return noTitleSentinel
	}
	titleKo := strings.TrimSpace(record.TitleKorean)
	if titleKo == record.ApplicationNumber {
		titleKo = ""
	}
	titleEn := strings.TrimSpace(record.TitleEnglish)
	if titleEn == record.ApplicationNumber {
		titleEn = ""
	}
	if titleKo != "" {
		return titleKo
	}
	if titleEn != "" {
		return titleEn
	}
	return noTitleSentinel
}

func displayStatus(status string) string {
	if status = strings.TrimSpace(status); status != "" {
		return status
	}
	return unknownStatusSentinel
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
