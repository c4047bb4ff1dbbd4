package ocr

import (
	"strings"

	"github.com/Tioit-Wang/ArenaBreakoutInfinite-Buy-sub001/internal/market"
)

// NumberBox is a recognized fragment reduced to its numeric content.
type NumberBox struct {
	Box
	Clean string
	Value int
}

// CleanNumberText strips a raw fragment down to digits, at most one decimal
// point and at most one K/M suffix, preserving order. Returns "" when the
// fragment holds no digits.
func CleanNumberText(s string) string {
	var digits strings.Builder
	var suffix byte
	dotSeen := false
	for i := 0; i < len(s); i++ {
		ch := s[i]
		switch {
		case ch >= '0' && ch <= '9':
			if suffix == 0 {
				digits.WriteByte(ch)
			}
		case ch == '.' && !dotSeen && suffix == 0 && digits.Len() > 0:
			digits.WriteByte(ch)
			dotSeen = true
		case (ch == 'K' || ch == 'k' || ch == 'M' || ch == 'm') && suffix == 0 && digits.Len() > 0:
			suffix = ch &^ 0x20 // uppercase
		}
	}
	out := strings.TrimSuffix(digits.String(), ".")
	if out == "" {
		return ""
	}
	if suffix != 0 {
		out += string(suffix)
	}
	return out
}

// Numbers filters recognized fragments down to the ones carrying a parseable
// numeric value.
func Numbers(boxes []Box) []NumberBox {
	out := make([]NumberBox, 0, len(boxes))
	for _, b := range boxes {
		clean := CleanNumberText(b.Text)
		if clean == "" {
			continue
		}
		v, ok := market.ParsePrice(clean)
		if !ok {
			continue
		}
		out = append(out, NumberBox{Box: b, Clean: clean, Value: v})
	}
	return out
}
