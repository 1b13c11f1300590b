package units

import (
	"strings"
	"unicode/utf8"
)

// RepairUnitSyntax inserts the exponent carets that upstream files tend to
// omit: "m-2" becomes "m^-2", "nm-1" becomes "nm^-1" and "m2" becomes "m^2".
// A caret goes in front of a signed digit run, and in front of a bare digit
// run that directly follows a letter or a space. Existing carets are left
// alone, so the repair is idempotent.
func RepairUnitSyntax(raw string) string {
	type token struct {
		r   rune
		raw string
	}
	toks := make([]token, 0, len(raw))
	for i := 0; i < len(raw); {
		r, size := utf8.DecodeRuneInString(raw[i:])
		toks = append(toks, token{r: r, raw: raw[i : i+size]})
		i += size
	}

	var b strings.Builder
	b.Grow(len(raw) + 4)
	for i, t := range toks {
		c := t.r
		var prev rune
		if i > 0 {
			prev = toks[i-1].r
		}
		nextDigit := i+1 < len(toks) && isDigit(toks[i+1].r)

		switch {
		case (c == '-' || c == '+') && nextDigit && i > 0 && prev != '^' && prev != '*' && !isDigit(prev):
			b.WriteByte('^')
		case isDigit(c) && i > 0 && (isLetter(prev) || prev == ' '):
			b.WriteByte('^')
		}
		// Invalid bytes decode to utf8.RuneError; t.raw keeps them as they were.
		b.WriteString(t.raw)
	}
	return b.String()
}

func isDigit(r rune) bool { return r >= '0' && r <= '9' }

func isLetter(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || r == 'µ' || r == 'Å'
}
