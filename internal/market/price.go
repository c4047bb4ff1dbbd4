package market

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/samber/lo"
)

// suffixRe matches the first numeric literal carrying a K/M multiplier,
// optionally with a fractional part ("2.1K" -> 2100).
var suffixRe = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*([KM])`)

var digitRe = regexp.MustCompile(`\d+`)

// ParsePrice normalizes a raw OCR fragment into an integer price.
// Thousands separators and arbitrary noise characters are tolerated.
// Returns false when the fragment contains no digits at all.
func ParsePrice(raw string) (int, bool) {
	s := strings.ToUpper(strings.TrimSpace(raw))
	s = strings.ReplaceAll(s, ",", "")
	s = strings.ReplaceAll(s, " ", "")

	if m := suffixRe.FindStringSubmatch(s); m != nil {
		f, err := strconv.ParseFloat(m[1], 64)
		if err == nil {
			mult := 1000.0
			if m[2] == "M" {
				mult = 1_000_000
			}
			return int(f * mult), true
		}
	}

	// No usable suffix form: fall back to every digit present, in order.
	var b strings.Builder
	for _, ch := range s {
		if ch >= '0' && ch <= '9' {
			b.WriteRune(ch)
		}
	}
	if b.Len() == 0 {
		return 0, false
	}
	v, err := strconv.Atoi(b.String())
	if err != nil {
		return 0, false
	}
	return v, true
}

// ParseLowest parses every fragment and returns the minimum value among the
// ones that parsed. The buy button always acts on the lowest listed price,
// so the minimum is the only safe pick when a region captured more than one
// numeric token.
func ParseLowest(fragments []string) (int, bool) {
	values := make([]int, 0, len(fragments))
	for _, f := range fragments {
		if v, ok := ParsePrice(f); ok {
			values = append(values, v)
		}
	}
	if len(values) == 0 {
		return 0, false
	}
	return lo.Min(values), true
}

// ExtractDigitTokens returns every standalone digit run in the fragment,
// used when a single OCR line holds both a price and a quantity.
func ExtractDigitTokens(raw string) []string {
	return digitRe.FindAllString(raw, -1)
}
