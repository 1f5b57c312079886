package normalize

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Text canonicalizes free text into a matching key: trimmed, NFKC-normalized,
// upper-cased, every non letter/digit/underscore replaced by a space, runs of
// whitespace collapsed. Danish letters survive. Pure and total; empty or
// whitespace-only input yields "".
func Text(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	s = norm.NFKC.String(s)
	s = strings.ToUpper(s)

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' {
			b.WriteRune(r)
		} else {
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// AddressKey builds a key like "HOVEDGADEN 12 A 4000" from address parts.
// Every directory uses this, so keys are comparable across sources.
func AddressKey(street, houseNo, houseLetter, postcode string) string {
	parts := make([]string, 0, 4)
	for _, p := range []string{street, houseNo, houseLetter, postcode} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return Text(strings.Join(parts, " "))
}
