// Package normalize turns raw user utterances into canonical text: trimmed,
// lower-cased, synonym-resolved and whitespace-collapsed. Canonical text is
// only ever used for matching; it is never shown to the user.
package normalize

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

var whitespace = regexp.MustCompile(`\s+`)

// SynonymGroup maps a set of synonyms onto one canonical token.
type SynonymGroup struct {
	Canonical string   `yaml:"canonical" json:"canonical"`
	Synonyms  []string `yaml:"synonyms" json:"synonyms"`
}

// Normalizer applies a fixed set of synonym groups. It is immutable after
// construction and safe for concurrent use.
type Normalizer struct {
	groups []SynonymGroup
}

// New builds a Normalizer. Groups and synonyms are applied in declaration
// order; synonyms are lower-cased once up front.
func New(groups ...SynonymGroup) *Normalizer {
	cp := make([]SynonymGroup, 0, len(groups))
	for _, g := range groups {
		ng := SynonymGroup{Canonical: strings.ToLower(strings.TrimSpace(g.Canonical))}
		for _, s := range g.Synonyms {
			s = strings.ToLower(strings.TrimSpace(s))
			if s == "" {
				continue
			}
			ng.Synonyms = append(ng.Synonyms, s)
		}
		cp = append(cp, ng)
	}
	return &Normalizer{groups: cp}
}

// Groups returns a copy of the configured synonym groups.
func (n *Normalizer) Groups() []SynonymGroup {
	out := make([]SynonymGroup, len(n.groups))
	for i, g := range n.groups {
		out[i] = SynonymGroup{Canonical: g.Canonical, Synonyms: append([]string(nil), g.Synonyms...)}
	}
	return out
}

// Normalize returns the canonical form of raw.
func (n *Normalizer) Normalize(raw string) string {
	text := strings.ToLower(strings.TrimSpace(raw))
	for _, g := range n.groups {
		for _, syn := range g.Synonyms {
			text = ReplaceToken(text, syn, g.Canonical)
		}
	}
	return whitespace.ReplaceAllString(text, " ")
}

// ReplaceToken replaces every occurrence of token in text that is delimited on
// both sides by a string boundary or a non-letter rune. Occurrences embedded
// in a longer word are left untouched.
func ReplaceToken(text, token, replacement string) string {
	if token == "" || !strings.Contains(text, token) {
		return text
	}
	var b strings.Builder
	b.Grow(len(text))
	rest := text
	prevBoundary := true // start of string
	for {
		idx := strings.Index(rest, token)
		if idx < 0 {
			b.WriteString(rest)
			return b.String()
		}
		before := prevBoundary
		if idx > 0 {
			r, _ := utf8.DecodeLastRuneInString(rest[:idx])
			before = !unicode.IsLetter(r)
		}
		end := idx + len(token)
		after := true
		if end < len(rest) {
			r, _ := utf8.DecodeRuneInString(rest[end:])
			after = !unicode.IsLetter(r)
		}
		if before && after {
			b.WriteString(rest[:idx])
			b.WriteString(replacement)
			rest = rest[end:]
			// the synonym ended on a boundary, so whatever follows starts fresh
			prevBoundary = lastIsBoundary(token)
			continue
		}
		// skip one rune past the candidate start and keep scanning
		_, size := utf8.DecodeRuneInString(rest[idx:])
		b.WriteString(rest[:idx+size])
		prevBoundary = lastIsBoundary(rest[:idx+size])
		rest = rest[idx+size:]
	}
}

func lastIsBoundary(s string) bool {
	if s == "" {
		return true
	}
	r, _ := utf8.DecodeLastRuneInString(s)
	return !unicode.IsLetter(r)
}
