package quoting

import (
	"regexp"
	"strconv"
	"strings"
)

var multiLoadPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bmultiple\s+(trailer\s+)?(loads|trailers|trips)\b`),
	regexp.MustCompile(`(?i)\bmulti[-\s]?(load|trailer|trip)s?\b`),
	regexp.MustCompile(`(?i)\bmore\s+than\s+(one|a\s+single|1)\s+(full\s+)?(trailer\s+)?(load|trailer|trip)s?\b`),
	regexp.MustCompile(`(?i)\b(two|three|four|five|several)\s+(full\s+)?(trailer\s+)?(loads|trailers|trips)\b`),
	regexp.MustCompile(`(?i)\b(second|another|additional|extra)\s+(trailer|load|trip)\b`),
}

var countedLoads = regexp.MustCompile(`(?i)\b(\d+)\s+(full\s+)?(trailer\s+)?(loads|trailers|trips)\b`)

// ClaimsMultiLoad reports whether free text asserts the job needs more than
// one trailer load.
func ClaimsMultiLoad(text string) bool {
	if strings.TrimSpace(text) == "" {
		return false
	}
	for _, p := range multiLoadPatterns {
		if p.MatchString(text) {
			return true
		}
	}
	for _, m := range countedLoads.FindAllStringSubmatch(text, -1) {
		if n, err := strconv.Atoi(m[1]); err == nil && n >= 2 {
			return true
		}
	}
	return false
}
