package practice

import (
	"fmt"
	"math"
	"unicode/utf8"
)

// Mode selects how strictly an answer is compared.
type Mode string

const (
	// ModeTyped requires exact token matches.
	ModeTyped Mode = "typed"
	// ModeSpoken also accepts one-letter slips on longer words and digits
	// in place of number words.
	ModeSpoken Mode = "spoken"
)

func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeTyped, ModeSpoken:
		return Mode(s), nil
	case "":
		return ModeTyped, nil
	}
	return "", fmt.Errorf("unknown practice mode %q (typed, spoken)", s)
}

type Status string

const (
	StatusCorrect Status = "correct"
	StatusMissing Status = "missing"
	StatusExtra   Status = "extra"
	StatusNear    Status = "near"
)

// Token is one aligned position. Text is the reference token, or the answer
// token for extras; Answer holds what was said for near matches.
type Token struct {
	Text   string `json:"text"`
	Answer string `json:"answer,omitempty"`
	Status Status `json:"status"`
}

type Result struct {
	Tokens  []Token `json:"tokens"`
	Correct int     `json:"correct"`
	Near    int     `json:"near"`
	Missing int     `json:"missing"`
	Extra   int     `json:"extra"`
	// Score is 0-100: accepted tokens over reference tokens plus extras.
	Score int `json:"score"`
}

// nearMinRunes is the shortest reference word a near match is allowed for.
const nearMinRunes = 4

// Score aligns answer against reference with a longest common subsequence
// over tokens and grades each position.
func Score(reference, answer string, mode Mode) Result {
	ref := Tokenize(reference)
	ans := Tokenize(answer)
	eq := func(a, b string) bool { return a == b }
	if mode == ModeSpoken {
		eq = func(a, b string) bool { return a == b || numberKey(a) == numberKey(b) }
	}

	ops := align(ref, ans, eq)
	if mode == ModeSpoken {
		ops = pairNear(ops)
	}

	var res Result
	res.Tokens = ops
	for _, t := range ops {
		switch t.Status {
		case StatusCorrect:
			res.Correct++
		case StatusNear:
			res.Near++
		case StatusMissing:
			res.Missing++
		case StatusExtra:
			res.Extra++
		}
	}
	denom := len(ref) + res.Extra
	if denom == 0 {
		res.Score = 100
		return res
	}
	res.Score = int(math.Round(100 * float64(res.Correct+res.Near) / float64(denom)))
	return res
}

func align(ref, ans []string, eq func(a, b string) bool) []Token {
	n, m := len(ref), len(ans)
	lcs := make([][]int, n+1)
	for i := range lcs {
		lcs[i] = make([]int, m+1)
	}
	for i := n - 1; i >= 0; i-- {
		for j := m - 1; j >= 0; j-- {
			if eq(ref[i], ans[j]) {
				lcs[i][j] = lcs[i+1][j+1] + 1
			} else {
				lcs[i][j] = max(lcs[i+1][j], lcs[i][j+1])
			}
		}
	}

	out := make([]Token, 0, max(n, m))
	i, j := 0, 0
	for i < n && j < m {
		switch {
		case eq(ref[i], ans[j]):
			out = append(out, Token{Text: ref[i], Status: StatusCorrect})
			i++
			j++
		case lcs[i+1][j] >= lcs[i][j+1]:
			out = append(out, Token{Text: ref[i], Status: StatusMissing})
			i++
		default:
			out = append(out, Token{Text: ans[j], Status: StatusExtra})
			j++
		}
	}
	for ; i < n; i++ {
		out = append(out, Token{Text: ref[i], Status: StatusMissing})
	}
	for ; j < m; j++ {
		out = append(out, Token{Text: ans[j], Status: StatusExtra})
	}
	return out
}

// pairNear turns a missing reference token and an extra answer token in the
// same gap between matches into one near match when they differ by a single
// edit.
func pairNear(ops []Token) []Token {
	out := make([]Token, 0, len(ops))
	for start := 0; start < len(ops); {
		if ops[start].Status == StatusCorrect {
			out = append(out, ops[start])
			start++
			continue
		}
		end := start
		for end < len(ops) && ops[end].Status != StatusCorrect {
			end++
		}
		out = append(out, pairGap(ops[start:end])...)
		start = end
	}
	return out
}

func pairGap(gap []Token) []Token {
	var missing, extra []int
	for i, t := range gap {
		if t.Status == StatusMissing {
			missing = append(missing, i)
		} else {
			extra = append(extra, i)
		}
	}
	usedExtra := make(map[int]bool)
	paired := make(map[int]bool)
	for _, mi := range missing {
		ref := gap[mi].Text
		if utf8.RuneCountInString(ref) < nearMinRunes {
			continue
		}
		for _, ei := range extra {
			if usedExtra[ei] {
				continue
			}
			if editDistance(ref, gap[ei].Text, 1) <= 1 {
				gap[mi] = Token{Text: ref, Answer: gap[ei].Text, Status: StatusNear}
				usedExtra[ei] = true
				paired[ei] = true
				break
			}
		}
	}
	out := make([]Token, 0, len(gap))
	for i, t := range gap {
		if !paired[i] {
			out = append(out, t)
		}
	}
	return out
}

// editDistance is the Levenshtein distance between a and b in runes. It
// stops early and returns limit+1 once the distance must exceed limit.
func editDistance(a, b string, limit int) int {
	ra, rb := []rune(a), []rune(b)
	if d := len(ra) - len(rb); d > limit || -d > limit {
		return limit + 1
	}
	prev := make([]int, len(rb)+1)
	cur := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		cur[0] = i
		rowMin := cur[0]
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			cur[j] = min(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
			rowMin = min(rowMin, cur[j])
		}
		if rowMin > limit {
			return limit + 1
		}
		prev, cur = cur, prev
	}
	return prev[len(rb)]
}
