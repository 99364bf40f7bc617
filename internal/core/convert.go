package core

// convert.go infers SQL-friendly values from raw CSV cells.
//
// Inference is deliberately conservative:
//   - Empty cells and the literal NULL become nil
//   - true/false (any case) become bool
//   - Integers inside the IEEE-754 safe range become int64
//   - Decimals become float64
//   - Date-shaped text, or any text in a column whose name looks temporal,
//     is parsed as a time.Time when one of the known layouts matches
//
// Anything else passes through as the original string.

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// MaxSafeInteger is the largest integer a float64 represents exactly.
const MaxSafeInteger = 1<<53 - 1

var (
	integerRegex = regexp.MustCompile(`^[+-]?\d+$`)
	decimalRegex = regexp.MustCompile(`^[+-]?\d*\.\d+$`)
	epochMsRegex = regexp.MustCompile(`^\d{13}$`)

	// temporalColumnRegex matches column names such as order_date or updatedAt.
	temporalColumnRegex = regexp.MustCompile(`(?i)(^|_)(date|time|datetime|timestamp|createdat|updatedat|created_at|updated_at)$`)

	dateShapes = []*regexp.Regexp{
		regexp.MustCompile(`^\d{4}-\d{2}-\d{2}([ T]\d{2}:\d{2}(:\d{2})?)?`),
		regexp.MustCompile(`(?i)^(Mon|Tue|Wed|Thu|Fri|Sat|Sun)[a-z]*,? `),
		regexp.MustCompile(`(?i)GMT[+-]\d{4}`),
		regexp.MustCompile(`^\d{13}$`),
		regexp.MustCompile(`^\d{4}[/-]\d{2}[/-]\d{2}([ T]\d{2}:\d{2}(:\d{2})?)?$`),
	}

	trailingZoneRegex = regexp.MustCompile(`\s*\([^)]*\)\s*$`)
)

// DateLocation is the zone used for timestamps that carry no offset.
var DateLocation = time.Local

// dateLayouts are tried in order; zone-bearing layouts come first so an
// explicit offset is never discarded.
var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05Z0700",
	"Mon Jan 02 2006 15:04:05 GMT-0700",
	"Mon Jan 2 2006 15:04:05 GMT-0700",
	time.RFC1123Z,
	time.RFC1123,
	time.RFC850,
	time.UnixDate,
	time.ANSIC,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02",
	"2006/01/02 15:04:05",
	"2006/01/02 15:04",
	"2006/01/02",
	"1/2/2006 15:04:05",
	"1/2/2006",
	"01/02/2006",
	"Jan 2, 2006",
	"2 Jan 2006",
}

// CoerceValue converts a raw cell into the most specific value it encodes.
// column is the destination column name and only influences date detection.
func CoerceValue(raw, column string) any {
	s := strings.TrimSpace(raw)
	if s == "" || strings.EqualFold(s, "NULL") {
		return nil
	}

	if strings.EqualFold(s, "true") {
		return true
	}
	if strings.EqualFold(s, "false") {
		return false
	}

	// Integers win over dates, even for 13 digit values in a temporal
	// column. Such a column must carry formatted dates to get a timestamp.
	if integerRegex.MatchString(s) {
		if n, err := strconv.ParseInt(s, 10, 64); err == nil && n <= MaxSafeInteger && n >= -MaxSafeInteger {
			return n
		}
	}

	if decimalRegex.MatchString(s) {
		if f, err := strconv.ParseFloat(s, 64); err == nil && !math.IsNaN(f) {
			return f
		}
	}

	if temporalColumnRegex.MatchString(column) || looksLikeDate(s) {
		if t, ok := ParseDate(s); ok {
			return t
		}
	}

	return raw
}

func looksLikeDate(s string) bool {
	for _, re := range dateShapes {
		if re.MatchString(s) {
			return true
		}
	}
	return false
}

// ParseDate parses s with the known layouts. A trailing parenthesised zone
// name such as "(Korean Standard Time)" is ignored, and a second attempt is
// made with '-' replaced by '/'.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if epochMsRegex.MatchString(s) {
		if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
			return time.UnixMilli(ms), true
		}
	}

	normalized := strings.TrimSpace(trailingZoneRegex.ReplaceAllString(s, ""))
	if t, ok := parseLayouts(normalized); ok {
		return t, true
	}
	return parseLayouts(strings.ReplaceAll(normalized, "-", "/"))
}

func parseLayouts(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, s, DateLocation); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
