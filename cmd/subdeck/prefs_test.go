package main

import (
	"strings"
	"testing"
)

func TestPrefs_SetShowUnset(t *testing.T) {
	testEnv(t)

	out, err := executeCommand(t, "prefs", "set", "subtitle_languages", "English, ko,en")
	if err != nil {
		t.Fatalf("set failed: %v", err)
	}
	if !strings.Contains(out, "subtitle_languages = en,ko") {
		t.Fatalf("unexpected output: %s", out)
	}
	if _, err := executeCommand(t, "prefs", "set", "main_language", "ko"); err != nil {
		t.Fatalf("set failed: %v", err)
	}

	out, err = executeCommand(t, "prefs", "show")
	if err != nil {
		t.Fatalf("show failed: %v", err)
	}
	for _, want := range []string{"main_language = ko", "subtitle_languages = en\n", "page_size = (unset)"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output:\n%s", want, out)
		}
	}

	if _, err := executeCommand(t, "prefs", "unset", "main_language"); err != nil {
		t.Fatalf("unset failed: %v", err)
	}
	out, _ = executeCommand(t, "prefs", "show")
	if !strings.Contains(out, "main_language = (unset)") {
		t.Fatalf("expected main_language unset:\n%s", out)
	}
}

func TestPrefs_Rejects(t *testing.T) {
	testEnv(t)

	tests := []struct {
		name string
		args []string
	}{
		{"unknown key", []string{"prefs", "set", "theme", "dark"}},
		{"bad language", []string{"prefs", "set", "main_language", "klingon"}},
		{"page size too big", []string{"prefs", "set", "page_size", "100000"}},
		{"missing value", []string{"prefs", "set", "page_size"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := executeCommand(t, tt.args...); err == nil {
				t.Fatalf("expected error for %v", tt.args)
			}
		})
	}
}
