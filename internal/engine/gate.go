package engine

import (
	"regexp"
	"strings"

	"go.uber.org/zap"
)

// Default skip patterns: phrasings that never benefit from memory
// injection. Greetings, bare acknowledgments, slash commands, and
// one-token queries bypass the pipeline entirely.
var defaultSkipPatterns = []string{
	`(?i)^(hi|hello|hey|yo|thanks|thank you|ok|okay|yes|no|sure|got it)[.!?]*$`,
	`^/\S*$`,
	`(?i)^(continue|go on|proceed)[.!?]*$`,
}

// gate decides whether a query should skip retrieval entirely.
type gate struct {
	patterns []*regexp.Regexp
}

// newGate compiles the given patterns, or the defaults when none are
// supplied. Each pattern is validated independently: an invalid one is
// logged and dropped without disabling the rest.
func newGate(patterns []string, log *zap.Logger) *gate {
	if log == nil {
		log = zap.NewNop()
	}
	if len(patterns) == 0 {
		patterns = defaultSkipPatterns
	}
	g := &gate{}
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			log.Warn("invalid skip pattern ignored", zap.String("pattern", p), zap.Error(err))
			continue
		}
		g.patterns = append(g.patterns, re)
	}
	return g
}

// shouldSkip reports whether the query matches any skip pattern or is too
// short to rank meaningfully.
func (g *gate) shouldSkip(query string) bool {
	query = strings.TrimSpace(query)
	if len(query) < 3 {
		return true
	}
	for _, re := range g.patterns {
		if re.MatchString(query) {
			return true
		}
	}
	return false
}
