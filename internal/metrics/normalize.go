package metrics

import (
	"regexp"
	"strconv"
	"strings"
)

// Epsilon is the "no data yet" placeholder used instead of zero so gauges
// never divide by zero or collapse to nothing.
const Epsilon = 0.001

// recordSeparator is printed by the network and disk commands after every row.
const recordSeparator = "split"

// Normalize trims, lowercases and removes every space and tab. Newlines are
// kept so line-oriented inputs stay split.
func Normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.Map(func(r rune) rune {
		if r == ' ' || r == '\t' {
			return -1
		}
		return r
	}, s)
}

// number matches an unsigned integer or decimal.
const number = `(\d+(?:\.\d+)?)`

// suffixPattern builds the value-plus-tag pattern, e.g. "12.5us".
func suffixPattern(tag string) *regexp.Regexp {
	return regexp.MustCompile(number + regexp.QuoteMeta(tag))
}

// extract returns the first number matched by re in s, or def.
func extract(re *regexp.Regexp, s string, def float64) float64 {
	m := re.FindStringSubmatch(s)
	if m == nil {
		return def
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return def
	}
	return v
}

// splitRecords splits on the "split" marker and drops blank records.
func splitRecords(s string) []string {
	var out []string
	for _, r := range strings.Split(s, recordSeparator) {
		if r = strings.TrimSpace(r); r != "" {
			out = append(out, r)
		}
	}
	return out
}
