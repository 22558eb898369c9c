// Package normalize canonicalizes raw feedback text before analysis.
package normalize

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	tatweel = '\u0640'
	alef    = '\u0627'
	maxRun  = 2
)

// Text returns the canonical form of s. It never fails and is idempotent:
// Text(Text(s)) == Text(s). Diacritics are kept.
func Text(s string) string {
	out := s
	// Later passes never grow the text; the bound
	// guards against a transform that never settles.
	limit := utf8.RuneCountInString(s) + 2
	for i := 0; i < limit; i++ {
		next := pass(out)
		if next == out {
			return next
		}
		out = next
	}
	return out
}

func pass(s string) string {
	t := transform.Chain(
		norm.NFKC,
		runes.Remove(runes.Predicate(dropRune)),
		runes.Map(unifyRune),
	)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	out = stripAlefMarks(out)
	out = collapseRuns(out)
	return strings.Join(strings.Fields(out), " ")
}

// dropRune reports invisible formatting runes and the Arabic elongation mark.
// Zero width joiners and non-joiners are kept; they bind emoji and Persian word parts.
func dropRune(r rune) bool {
	switch r {
	case tatweel, '\u200B', '\u200E', '\u200F', '\u061C', '\uFEFF', '\u2060', '\u00AD':
		return true
	}
	return false
}

func unifyRune(r rune) rune {
	switch r {
	case 'أ', 'إ', 'آ', 'ٱ':
		return 'ا'
	case 'ک':
		return 'ك'
	case 'ی', 'ې':
		return 'ي'
	}
	return r
}

// stripAlefMarks drops combining madda and hamza marks attached to a bare
// alef. NFKC would compose them back into an alef variant that unifyRune
// then flattens again.
func stripAlefMarks(s string) string {
	if !strings.ContainsAny(s, "\u0653\u0654\u0655") {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	onAlef := false
	for _, r := range s {
		if unicode.Is(unicode.Mn, r) {
			if onAlef && r >= '\u0653' && r <= '\u0655' {
				continue
			}
		} else {
			onAlef = r == alef
		}
		b.WriteRune(r)
	}
	return b.String()
}

// collapseRuns shortens runs of the same letter, punctuation or symbol to maxRun.
func collapseRuns(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	var prev rune
	run := 0
	for _, r := range s {
		if r == prev && collapsible(r) {
			run++
			if run > maxRun {
				continue
			}
		} else {
			prev = r
			run = 1
		}
		b.WriteRune(r)
	}
	return b.String()
}

func collapsible(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsPunct(r) || unicode.IsSymbol(r)
}
