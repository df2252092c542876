// Package enrich extracts structured signal from raw query text: entity
// strings (paths, error codes, identifiers, quoted phrases) and natural
// language temporal expressions ("yesterday", "last 3 days").
package enrich

import (
	"regexp"
	"strings"
	"unicode"
)

// Entity extraction patterns, applied independently; the result is the
// deduplicated union of all matches.
var (
	// Path-like tokens with a 1-6 character dot extension, e.g.
	// "internal/engine/engine.go" or "config.yaml".
	pathPattern = regexp.MustCompile(`[\w][\w/.-]*\.[A-Za-z][A-Za-z0-9]{0,5}\b`)

	// Uppercase-led alphanumeric tokens; filtered below to those carrying
	// at least one digit (error-code shape, e.g. NETSDK1005).
	errorCodePattern = regexp.MustCompile(`\b[A-Z][A-Za-z0-9]+\b`)

	// CamelCase identifiers: two or more capitalized segments.
	camelCasePattern = regexp.MustCompile(`\b[A-Z][a-z0-9]+(?:[A-Z][a-z0-9]+)+\b`)

	// Scoped package names, e.g. @types/node.
	scopedPackagePattern = regexp.MustCompile(`@[\w-]+/[\w.-]+`)

	// Quoted substrings, single or double quotes, 2-50 characters.
	doubleQuotedPattern = regexp.MustCompile(`"([^"]{2,50})"`)
	singleQuotedPattern = regexp.MustCompile(`'([^']{2,50})'`)
)

// ExtractEntities returns the deduplicated union of entity-shaped tokens
// found in text: path-like tokens, error codes, CamelCase identifiers,
// scoped package names, and quoted phrases (quotes stripped).
func ExtractEntities(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	var out []string
	seen := make(map[string]struct{})
	add := func(s string) {
		if _, dup := seen[s]; dup {
			return
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}

	for _, m := range pathPattern.FindAllString(text, -1) {
		// Tokens starting with a digit are version-number noise; very
		// short matches are sentence punctuation artifacts.
		if len(m) < 4 || unicode.IsDigit(rune(m[0])) {
			continue
		}
		add(m)
	}

	for _, m := range errorCodePattern.FindAllString(text, -1) {
		if containsDigit(m) {
			add(m)
		}
	}

	for _, m := range camelCasePattern.FindAllString(text, -1) {
		add(m)
	}

	for _, m := range scopedPackagePattern.FindAllString(text, -1) {
		add(m)
	}

	for _, m := range doubleQuotedPattern.FindAllStringSubmatch(text, -1) {
		add(m[1])
	}
	for _, m := range singleQuotedPattern.FindAllStringSubmatch(text, -1) {
		add(m[1])
	}

	return out
}

func containsDigit(s string) bool {
	for _, r := range s {
		if unicode.IsDigit(r) {
			return true
		}
	}
	return false
}
