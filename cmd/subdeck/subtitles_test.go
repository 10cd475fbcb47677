package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const jaSRT = `1
00:00:01,000 --> 00:00:03,000
猫です

2
00:00:04,000 --> 00:00:06,000
犬だよ
`

const enSRT = `1
00:00:01,100 --> 00:00:02,900
It's a cat.

2
00:00:04,000 --> 00:00:06,000
[barking] A dog.
`

func TestSubtitlesBuild(t *testing.T) {
	dir := testEnv(t)
	mainPath := filepath.Join(dir, "ep1.ja.srt")
	writeFile(t, mainPath, jaSRT)
	writeFile(t, filepath.Join(dir, "ep1.en.srt"), enSRT)

	out, err := executeCommand(t, "subtitles", "build", mainPath, "--track", filepath.Join(dir, "ep1.en.srt"))
	if err != nil {
		t.Fatalf("build failed: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Wrote 2 card(s) in ja, en") {
		t.Fatalf("unexpected output: %s", out)
	}
	data, err := os.ReadFile(filepath.Join(dir, "ep1.ja_cards.csv"))
	if err != nil {
		t.Fatalf("output CSV missing: %v", err)
	}
	csv := string(data)
	if !strings.HasPrefix(csv, "index,start,end,ja,en\n") || !strings.Contains(csv, "犬だよ,A dog.") {
		t.Fatalf("unexpected CSV:\n%s", csv)
	}

	validateOut, err := executeCommand(t, "validate", filepath.Join(dir, "ep1.ja_cards.csv"), "-m", "ja")
	if err != nil {
		t.Fatalf("built CSV does not validate: %v\n%s", err, validateOut)
	}
}

func TestSubtitlesBuild_TrackSpecs(t *testing.T) {
	tests := []struct {
		spec     string
		wantLang string
		wantErr  bool
	}{
		{spec: "fr=/tmp/ep1.srt", wantLang: "fr"},
		{spec: "/tmp/ep1.ko.srt", wantLang: "ko"},
		{spec: "/tmp/ep1.srt", wantErr: true},
		{spec: "xx=/tmp/ep1.srt", wantErr: true},
	}
	for _, tt := range tests {
		lang, _, err := parseTrackSpec(tt.spec)
		if tt.wantErr {
			if err == nil {
				t.Errorf("%s: expected error", tt.spec)
			}
			continue
		}
		if err != nil || lang != tt.wantLang {
			t.Errorf("%s: got %q, %v; want %q", tt.spec, lang, err, tt.wantLang)
		}
	}
}

func TestSubtitlesBuild_ExistingOutputNeedsForce(t *testing.T) {
	dir := testEnv(t)
	mainPath := filepath.Join(dir, "ep1.ja.srt")
	writeFile(t, mainPath, jaSRT)
	outPath := filepath.Join(dir, "cards.csv")
	writeFile(t, outPath, "keep")
	withConfirmer(t, "n\n")

	if _, err := executeCommand(t, "subtitles", "build", mainPath, "-o", outPath); err == nil {
		t.Fatal("expected error when overwrite is declined")
	}
	if data, _ := os.ReadFile(outPath); string(data) != "keep" {
		t.Fatalf("output was overwritten: %q", data)
	}
	if _, err := executeCommand(t, "subtitles", "build", mainPath, "-o", outPath, "--force"); err != nil {
		t.Fatalf("build with --force failed: %v", err)
	}
}

func TestSubtitlesExport(t *testing.T) {
	dir := testEnv(t)
	csvPath := filepath.Join(dir, "cards.csv")
	writeFile(t, csvPath, "start,end,ja,en\n0,1.5,猫です,It's a cat\n1.5,3,犬,\n")

	out, err := executeCommand(t, "subtitles", "export", csvPath, "--lang", "English")
	if err != nil {
		t.Fatalf("export failed: %v", err)
	}
	if !strings.Contains(out, "Wrote 1 cue(s)") {
		t.Fatalf("unexpected output: %s", out)
	}
	data, err := os.ReadFile(filepath.Join(dir, "cards.en.srt"))
	if err != nil {
		t.Fatalf("subtitle not written: %v", err)
	}
	if !strings.Contains(string(data), "It's a cat") {
		t.Fatalf("unexpected subtitle:\n%s", data)
	}

	if _, err := executeCommand(t, "subtitles", "export", csvPath); err == nil {
		t.Fatal("expected error without --lang")
	}
}
