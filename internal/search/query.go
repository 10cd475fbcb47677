package search

import (
	"strings"
	"unicode"

	"github.com/oukeidos/subdeck/internal/model"
	"github.com/rivo/uniseg"
)

// Query is one search or browse request. An empty Text lists every card
// that passes the filters.
type Query struct {
	Text         string
	MainLanguage string
	// Languages are the subtitle languages searched besides the main one.
	Languages    []string
	ContentSlugs []string
	ContentTypes []model.ContentType
	Levels       []string
	// Difficulty bounds on the 0-100 scale; 0 means unbounded.
	MinDifficulty float64
	MaxDifficulty float64

	Page     int // 1-based
	PageSize int
}

const minQueryGraphemes = 2

var ftsOperators = map[string]bool{"AND": true, "OR": true, "NOT": true, "NEAR": true}

// FallbackReason explains why text should not be sent to server full-text
// search, or returns "" when it can be.
func FallbackReason(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return "empty query"
	}
	if !hasWordRune(text) {
		return "query has no letters or digits"
	}
	if n := uniseg.GraphemeClusterCount(text); n < minQueryGraphemes && !hasIdeographic(text) {
		return "query too short"
	}
	if strings.Count(text, `"`)%2 != 0 {
		return "unbalanced quote"
	}
	if onlyOperators(text) {
		return "query is only search operators"
	}
	return ""
}

func hasWordRune(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsNumber(r) {
			return true
		}
	}
	return false
}

// hasIdeographic reports whether s contains a script where a single
// character is already a word.
func hasIdeographic(s string) bool {
	for _, r := range s {
		if unicode.In(r, unicode.Han, unicode.Hiragana, unicode.Katakana, unicode.Hangul) {
			return true
		}
	}
	return false
}

func onlyOperators(s string) bool {
	for _, f := range strings.Fields(s) {
		f = strings.Trim(f, `"*^-+()`)
		if f != "" && !ftsOperators[f] {
			return false
		}
	}
	return true
}

// fold prepares text for case-insensitive substring matching.
func fold(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
