package practice

import (
	"strings"
	"unicode"

	"github.com/rivo/uniseg"
)

// spaceless scripts are compared per grapheme cluster.
var spaceless = []*unicode.RangeTable{
	unicode.Han, unicode.Hiragana, unicode.Katakana,
	unicode.Thai, unicode.Lao, unicode.Khmer, unicode.Myanmar,
}

// Tokenize splits text into comparable tokens: words are lower-cased with
// punctuation dropped, and words from scripts written without spaces are
// split into single graphemes.
func Tokenize(text string) []string {
	text = strings.ToLower(text)
	var tokens []string
	state := -1
	for len(text) > 0 {
		var word string
		word, text, state = uniseg.FirstWordInString(text, state)
		if !isWord(word) {
			continue
		}
		if isSpaceless(word) {
			tokens = append(tokens, graphemes(word)...)
			continue
		}
		tokens = append(tokens, stripMarks(word))
	}
	return tokens
}

func isWord(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsNumber(r) {
			return true
		}
	}
	return false
}

func isSpaceless(s string) bool {
	for _, r := range s {
		if unicode.In(r, spaceless...) {
			return true
		}
	}
	return false
}

func graphemes(s string) []string {
	var out []string
	g := uniseg.NewGraphemes(s)
	for g.Next() {
		if c := g.Str(); isWord(c) {
			out = append(out, c)
		}
	}
	return out
}

// stripMarks drops apostrophes so "don't", "don’t" and "dont" compare equal.
func stripMarks(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '\'', '\u2019', '\u02bc':
			return -1
		}
		return r
	}, s)
}
