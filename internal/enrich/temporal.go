package enrich

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/hurttlocker/recall/internal/rank"
)

var (
	yesterdayPattern = regexp.MustCompile(`\byesterday\b`)
	todayPattern     = regexp.MustCompile(`\btoday\b`)
	weekPattern      = regexp.MustCompile(`\b(?:last|this|past)\s+week\b`)
	nDaysPattern     = regexp.MustCompile(`\b(?:last|past)\s+(\d+)\s+days?\b`)
	nHoursPattern    = regexp.MustCompile(`\b(?:last|past)\s+(\d+)\s+hours?\b`)
	daysAgoPattern   = regexp.MustCompile(`\b(\d+)\s+days?\s+ago\b`)
)

// ParseTemporalExpression recognizes natural language date expressions in
// query text and converts them to an inclusive window. All day boundaries
// are computed in UTC. Returns nil when no expression matches.
//
// Recognized shapes: "yesterday", "today", "last/this/past week",
// "last/past N days", "last/past N hours", "N days ago".
func ParseTemporalExpression(text string, now time.Time) *rank.TemporalWindow {
	lower := strings.ToLower(text)
	if strings.TrimSpace(lower) == "" {
		return nil
	}
	now = now.UTC()

	if yesterdayPattern.MatchString(lower) {
		return dayWindow(now.AddDate(0, 0, -1))
	}
	if todayPattern.MatchString(lower) {
		return dayWindow(now)
	}
	if weekPattern.MatchString(lower) {
		return &rank.TemporalWindow{Start: now.AddDate(0, 0, -7), End: now}
	}
	if m := nDaysPattern.FindStringSubmatch(lower); m != nil {
		n, err := strconv.Atoi(m[1])
		if err == nil && n > 0 {
			start := dayStart(now.AddDate(0, 0, -n))
			return &rank.TemporalWindow{Start: start, End: now}
		}
	}
	if m := nHoursPattern.FindStringSubmatch(lower); m != nil {
		n, err := strconv.Atoi(m[1])
		if err == nil && n > 0 {
			return &rank.TemporalWindow{Start: now.Add(-time.Duration(n) * time.Hour), End: now}
		}
	}
	if m := daysAgoPattern.FindStringSubmatch(lower); m != nil {
		n, err := strconv.Atoi(m[1])
		if err == nil && n > 0 {
			return dayWindow(now.AddDate(0, 0, -n))
		}
	}

	return nil
}

// dayWindow returns the full-day bounds of t's calendar day in UTC.
func dayWindow(t time.Time) *rank.TemporalWindow {
	start := dayStart(t)
	return &rank.TemporalWindow{Start: start, End: start.Add(24*time.Hour - time.Second)}
}

func dayStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
