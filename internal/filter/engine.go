// Package filter implements the keyword matching engine.
//
// A pattern takes one of three forms, decided at match time:
//
//	sell        substring, case-insensitive
//	_car_       whole word: no letter, digit or underscore on either side
//	iphone+pro  every "+"-separated term must occur as a substring
//
// A pattern containing "+" is always conjunctive, even when its terms are
// wrapped in underscores. Patterns that reduce to nothing never match.
package filter

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"lead_bot/internal/model"
)

// Normalize lower-cases s and trims surrounding whitespace.
func Normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Matches reports whether text matches a single pattern.
func Matches(text, pattern string) bool {
	t := Normalize(text)
	p := strings.TrimSpace(pattern)

	if strings.Contains(p, "+") {
		var terms []string
		for _, seg := range strings.Split(p, "+") {
			if s := Normalize(seg); s != "" {
				terms = append(terms, s)
			}
		}
		if len(terms) == 0 {
			return false
		}
		for _, term := range terms {
			if !strings.Contains(t, term) {
				return false
			}
		}
		return true
	}

	if strings.HasPrefix(p, "_") && strings.HasSuffix(p, "_") {
		if len(p) < 2 {
			return false
		}
		word := Normalize(p[1 : len(p)-1])
		if word == "" {
			return false
		}
		return containsWord(t, word)
	}

	p = Normalize(p)
	if p == "" {
		return false
	}
	return strings.Contains(t, p)
}

// MatchAny reports whether text matches at least one of patterns.
// An empty list never matches.
func MatchAny(text string, patterns []string) bool {
	for _, p := range patterns {
		if Matches(text, p) {
			return true
		}
	}
	return false
}

// Evaluate applies the keyword policy to text. Keywords are checked first:
// an empty keyword list blocks everything.
func Evaluate(text string, keywords, stopwords []string) (bool, model.Reason) {
	if !MatchAny(text, keywords) {
		return false, model.ReasonNoKeywordMatch
	}
	if MatchAny(text, stopwords) {
		return false, model.ReasonStopwordMatch
	}
	return true, model.ReasonPassed
}

// containsWord scans every occurrence of word in text and accepts the first
// one bounded by non-word runes. Unlike regexp's \b this is Unicode-aware.
func containsWord(text, word string) bool {
	offset := 0
	for {
		i := strings.Index(text[offset:], word)
		if i < 0 {
			return false
		}
		start := offset + i
		end := start + len(word)

		before, _ := utf8.DecodeLastRuneInString(text[:start])
		after, _ := utf8.DecodeRuneInString(text[end:])
		if (start == 0 || !isWordRune(before)) && (end == len(text) || !isWordRune(after)) {
			return true
		}

		_, size := utf8.DecodeRuneInString(text[start:])
		offset = start + size
	}
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}
