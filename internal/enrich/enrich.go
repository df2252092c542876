package enrich

import (
	"time"

	"github.com/hurttlocker/recall/internal/rank"
)

// Enriched is a query augmented with extracted entities and an optional
// temporal window, with the original text passed through untouched.
type Enriched struct {
	Entities       []string
	TemporalFilter *rank.TemporalWindow
	OriginalPrompt string
}

// EnrichQuery composes entity extraction and temporal parsing over a raw
// query string. Pure; now is injected for determinism.
func EnrichQuery(text string, now time.Time) Enriched {
	return Enriched{
		Entities:       ExtractEntities(text),
		TemporalFilter: ParseTemporalExpression(text, now),
		OriginalPrompt: text,
	}
}
