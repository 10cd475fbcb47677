package media

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/oukeidos/subdeck/internal/csvimport"
)

func TestInferIndex(t *testing.T) {
	cases := []struct {
		in   string
		want int
		ok   bool
	}{
		{"0001.jpg", 1, true},
		{"ep01_card_0042.webp", 42, true},
		{"dir/ep2/7.mp3", 7, true},
		{"card12-final.png", 12, true},
		{"cover.jpg", 0, false},
		{"12.5.jpg", 5, true},
	}
	for _, tc := range cases {
		got, ok := InferIndex(tc.in)
		if got != tc.want || ok != tc.ok {
			t.Errorf("InferIndex(%q) = %d, %v; want %d, %v", tc.in, got, ok, tc.want, tc.ok)
		}
	}
}

func TestKindAndContentType(t *testing.T) {
	if k, ok := KindOf("A.JPG"); !ok || k != KindImage {
		t.Errorf("KindOf(A.JPG) = %v, %v", k, ok)
	}
	if ContentType("x.mp3") != "audio/mpeg" || ContentType("x.bin") != "application/octet-stream" {
		t.Errorf("unexpected content types")
	}
	if _, ok := KindOf("notes.txt"); ok {
		t.Errorf("txt classified as media")
	}
}

func writeFiles(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, n := range names {
		if err := os.WriteFile(filepath.Join(dir, n), []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
	}
}

func TestScanAndMatch(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, "card_0.jpg", "card_1.jpg", "special.png", "card_9.jpg", "card_0.mp3", "readme.txt", ".hidden.jpg")

	images, err := ScanDir(dir, KindImage)
	if err != nil {
		t.Fatalf("ScanDir: %v", err)
	}
	if len(images) != 4 {
		t.Fatalf("images = %d, want 4", len(images))
	}
	audio, err := ScanDir(dir, KindAudio)
	if err != nil || len(audio) != 1 {
		t.Fatalf("audio = %v, %v", audio, err)
	}

	rows := []csvimport.CardRow{
		{Line: 2, Index: 0},
		{Line: 3, Index: 1},
		{Line: 4, Index: 2, ImageFile: "Special.PNG"},
		{Line: 5, Index: 3},
		{Line: 6, Index: 4, ImageFile: "gone.jpg"},
	}
	plan := Match(rows, images, audio)

	got := map[int]string{}
	for _, u := range plan.Images {
		got[u.Index] = filepath.Base(u.File.Path)
	}
	if got[0] != "card_0.jpg" || got[1] != "card_1.jpg" || got[2] != "special.png" || len(got) != 3 {
		t.Fatalf("image assignment = %v", got)
	}
	if len(plan.Audio) != 1 || plan.Audio[0].Index != 0 {
		t.Fatalf("audio assignment = %+v", plan.Audio)
	}

	joined := strings.Join(plan.Warnings, "\n")
	for _, want := range []string{`"gone.jpg" not found`, "1 card(s) have no image file (indexes 3)", "match no card: card_9.jpg", "4 card(s) have no audio"} {
		if !strings.Contains(joined, want) {
			t.Errorf("warnings missing %q:\n%s", want, joined)
		}
	}
}
