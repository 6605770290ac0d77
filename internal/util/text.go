package util

import (
	"strings"
	"unicode"
)

// stopwords are dropped before any lexical comparison
var stopwords = map[string]bool{
	"a": true, "an": true, "the": true, "is": true, "are": true, "was": true, "be": true,
	"for": true, "in": true, "on": true, "at": true, "to": true, "of": true, "and": true, "or": true,
	"how": true, "what": true, "whats": true, "when": true, "where": true, "which": true, "who": true, "why": true,
	"do": true, "does": true, "did": true, "i": true, "we": true, "you": true, "it": true, "my": true, "our": true,
	"can": true, "this": true, "that": true, "with": true, "about": true, "from": true, "by": true,
	"need": true, "get": true, "there": true, "any": true, "me": true, "us": true,
}

// Normalize lowercases text, joins hyphenated tokens (alt-2 -> alt2),
// drops other punctuation and collapses whitespace
func Normalize(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	lastSpace := true
	for _, r := range strings.ToLower(text) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastSpace = false
		case r == '-' || r == '\'' || r == '’':
			// joined
		default:
			if !lastSpace {
				b.WriteByte(' ')
				lastSpace = true
			}
		}
	}
	return strings.TrimSpace(b.String())
}

// Terms returns the normalized non-stopword tokens of text, in order, with repeats removed
func Terms(text string) []string {
	seen := make(map[string]bool)
	var terms []string
	for _, w := range strings.Fields(Normalize(text)) {
		if stopwords[w] || seen[w] {
			continue
		}
		seen[w] = true
		terms = append(terms, w)
	}
	return terms
}

// acronyms are short permit-domain codes that carry as much meaning as a long word
var acronyms = map[string]bool{
	"dob": true, "lpc": true, "ecb": true, "far": true, "tco": true, "mdl": true, "mci": true,
	"iai": true, "paa": true, "loa": true, "bbl": true, "bsa": true, "hpd": true,
	"ahv": true, "zr": true, "co": true, "nb": true,
}

// MeaningfulTerms keeps terms longer than three characters, terms containing a digit (alt2, r6)
// and known domain acronyms (dob, lpc, far)
func MeaningfulTerms(text string) []string {
	var out []string
	for _, t := range Terms(text) {
		if len(t) > 3 || acronyms[t] || strings.IndexFunc(t, unicode.IsDigit) >= 0 {
			out = append(out, t)
		}
	}
	return out
}

// TermSet builds a set from a term list
func TermSet(terms []string) map[string]bool {
	set := make(map[string]bool, len(terms))
	for _, t := range terms {
		set[t] = true
	}
	return set
}

// Shared counts the terms present in both sets
func Shared(a, b map[string]bool) int {
	if len(b) < len(a) {
		a, b = b, a
	}
	n := 0
	for t := range a {
		if b[t] {
			n++
		}
	}
	return n
}

// Jaccard returns |a∩b| / |a∪b|
func Jaccard(a, b map[string]bool) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	inter := Shared(a, b)
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}

// Overlap returns the overlap coefficient |a∩b| / min(|a|,|b|)
func Overlap(a, b map[string]bool) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	smaller := len(a)
	if len(b) < smaller {
		smaller = len(b)
	}
	return float64(Shared(a, b)) / float64(smaller)
}

// ContainsPhrase reports whether the normalized phrase occurs in the normalized text
// on token boundaries
func ContainsPhrase(text, phrase string) bool {
	p := Normalize(phrase)
	if p == "" {
		return false
	}
	return strings.Contains(" "+Normalize(text)+" ", " "+p+" ")
}

// Truncate shortens s to at most n runes
func Truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
