package scraper

import (
	"strconv"
	"strings"
	"time"

	"hemnetscraper/logger"
)

const soldPrefix = "Såld "

// swedishMonths maps Swedish month names, full and abbreviated, to month
// numbers. This table is the primary parsing path; there is no portable
// locale-aware alternative.
var swedishMonths = map[string]time.Month{
	"januari": time.January, "jan": time.January,
	"februari": time.February, "feb": time.February,
	"mars": time.March, "mar": time.March,
	"april": time.April, "apr": time.April,
	"maj":  time.May,
	"juni": time.June, "jun": time.June,
	"juli": time.July, "jul": time.July,
	"augusti": time.August, "aug": time.August,
	"september": time.September, "sep": time.September,
	"oktober": time.October, "okt": time.October,
	"november": time.November, "nov": time.November,
	"december": time.December, "dec": time.December,
}

// ParseSwedishDate parses a formatted sale date like "Såld 3 maj 2024"
// into a calendar date. Returns ok=false for anything unparseable; it
// never fails hard because the raw string is kept alongside the parsed
// date as the audit trail.
func ParseSwedishDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(strings.TrimPrefix(s, soldPrefix))
	if s == "" {
		return time.Time{}, false
	}

	parts := strings.Fields(s)
	if len(parts) != 3 {
		logger.Warn("Unparseable sale date %q: expected day, month and year", s)
		return time.Time{}, false
	}

	day, err := strconv.Atoi(parts[0])
	if err != nil {
		logger.Warn("Unparseable sale date %q: bad day", s)
		return time.Time{}, false
	}
	month, ok := swedishMonths[strings.ToLower(parts[1])]
	if !ok {
		logger.Warn("Unparseable sale date %q: unknown month name", s)
		return time.Time{}, false
	}
	year, err := strconv.Atoi(parts[2])
	if err != nil {
		logger.Warn("Unparseable sale date %q: bad year", s)
		return time.Time{}, false
	}

	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC), true
}
