package practice

import (
	"reflect"
	"strings"
	"testing"
)

func statuses(r Result) string {
	parts := make([]string, len(r.Tokens))
	for i, t := range r.Tokens {
		parts[i] = t.Text + ":" + string(t.Status)
	}
	return strings.Join(parts, " ")
}

func TestTokenize(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"Hello, World!", []string{"hello", "world"}},
		{"Don't   stop", []string{"dont", "stop"}},
		{"It’s 3.5 km", []string{"its", "3.5", "km"}},
		{"猫です。", []string{"猫", "で", "す"}},
		{"안녕 하세요", []string{"안녕", "하세요"}},
		{"  ...  ", nil},
	}
	for _, tt := range tests {
		if got := Tokenize(tt.in); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("Tokenize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestScore_Typed(t *testing.T) {
	tests := []struct {
		name     string
		ref, ans string
		score    int
		want     string
	}{
		{"exact", "The cat sleeps.", "the cat sleeps", 100, "the:correct cat:correct sleeps:correct"},
		{"missing word", "the black cat", "the cat", 67, "the:correct black:missing cat:correct"},
		{"extra word", "the cat", "the big cat", 67, "the:correct big:extra cat:correct"},
		{"typo is wrong when typed", "hello world", "helo world", 33, "hello:missing helo:extra world:correct"},
		{"empty both", "", "", 100, ""},
		{"empty answer", "one two", "", 0, "one:missing two:missing"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := Score(tt.ref, tt.ans, ModeTyped)
			if r.Score != tt.score || statuses(r) != tt.want {
				t.Fatalf("Score = %d [%s], want %d [%s]", r.Score, statuses(r), tt.score, tt.want)
			}
		})
	}
}

func TestScore_SpokenNearAndNumbers(t *testing.T) {
	r := Score("hello world", "helo world", ModeSpoken)
	if r.Score != 100 || r.Near != 1 || r.Tokens[0].Answer != "helo" {
		t.Fatalf("near: %+v", r)
	}

	// Short words need an exact match even when spoken.
	r = Score("the cat", "the cap", ModeSpoken)
	if r.Near != 0 || r.Missing != 1 || r.Extra != 1 {
		t.Fatalf("short word: %s", statuses(r))
	}

	r = Score("I have three cats", "I have 3 cats", ModeSpoken)
	if r.Score != 100 || r.Correct != 4 {
		t.Fatalf("numbers: %s", statuses(r))
	}
	if Score("I have three cats", "I have 3 cats", ModeTyped).Score == 100 {
		t.Fatal("typed mode must not accept digits for number words")
	}
}

func TestScore_SpacelessPerGrapheme(t *testing.T) {
	r := Score("猫が好きです", "猫が好き", ModeTyped)
	if r.Correct != 4 || r.Missing != 2 || r.Score != 67 {
		t.Fatalf("spaceless: %+v", r)
	}
}

func TestEditDistance(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"kitten", "kitten", 0},
		{"kitten", "sitten", 1},
		{"kitten", "kittens", 1},
		{"kitten", "sitting", 2},
		{"über", "uber", 1},
	}
	for _, tt := range tests {
		if got := editDistance(tt.a, tt.b, 1); min(got, 2) != min(tt.want, 2) {
			t.Errorf("editDistance(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestParseMode(t *testing.T) {
	if m, err := ParseMode(""); err != nil || m != ModeTyped {
		t.Fatalf("default mode = %q, %v", m, err)
	}
	if _, err := ParseMode("sung"); err == nil {
		t.Fatal("expected error")
	}
}
