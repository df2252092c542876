package engine

import (
	"fmt"
	"strings"

	"github.com/hurttlocker/recall/internal/rank"
)

// formatContext renders the final chunk list into the text block handed
// to the prompt-injection transport. An empty render means "nothing to
// inject", never an error. Output is truncated at maxChars, dropping the
// chunk that would overflow rather than cutting it mid-sentence.
func formatContext(results []rank.Chunk, maxChars int) string {
	if len(results) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("<relevant-memories>\n")

	wrote := 0
	const footer = "</relevant-memories>"
	for _, c := range results {
		var meta strings.Builder
		if c.Path != "" {
			fmt.Fprintf(&meta, ` path=%q`, c.Path)
		}
		if c.Source != "" {
			fmt.Fprintf(&meta, ` source=%q`, c.Source)
		}
		if c.Lines != "" {
			fmt.Fprintf(&meta, ` lines=%q`, c.Lines)
		}
		block := fmt.Sprintf("<memory%s>\n%s\n</memory>\n", meta.String(), strings.TrimSpace(c.Text))

		if maxChars > 0 && b.Len()+len(block)+len(footer) > maxChars {
			break
		}
		b.WriteString(block)
		wrote++
	}

	if wrote == 0 {
		return ""
	}
	b.WriteString(footer)
	return b.String()
}
