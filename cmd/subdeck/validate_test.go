package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestValidate_OK(t *testing.T) {
	dir := testEnv(t)
	csvPath := filepath.Join(dir, "cards.csv")
	writeFile(t, csvPath, "start,end,ja,en\n0,1.5,猫です,It's a cat\n1.5,3,犬,\n")
	writeFile(t, filepath.Join(dir, "img", "card_0.jpg"), "x")

	out, err := executeCommand(t, "validate", csvPath, "-m", "Japanese", "--image-dir", filepath.Join(dir, "img"))
	if err != nil {
		t.Fatalf("validate failed: %v\n%s", err, out)
	}
	for _, want := range []string{"Main language: ja", "Languages: ja, en", "Rows: 2", "1 image(s)", "no en subtitle", "OK"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output:\n%s", want, out)
		}
	}
}

func TestValidate_ErrorsFail(t *testing.T) {
	dir := testEnv(t)
	csvPath := filepath.Join(dir, "cards.csv")
	writeFile(t, csvPath, "start,end,ja\n0,1,猫\n2,1,犬\n")

	out, err := executeCommand(t, "validate", csvPath, "--main-language", "ja")
	if err == nil {
		t.Fatalf("expected validation error, got:\n%s", out)
	}
	if !strings.Contains(out, "end 1.000 is before start 2.000") {
		t.Fatalf("expected row error in output:\n%s", out)
	}
}

func TestValidate_JSON(t *testing.T) {
	dir := testEnv(t)
	csvPath := filepath.Join(dir, "cards.csv")
	writeFile(t, csvPath, "start,end,en,fr\n0,1,Hello,Bonjour\n")

	out, err := executeCommand(t, "validate", csvPath, "-m", "en", "--json")
	if err != nil {
		t.Fatalf("validate failed: %v", err)
	}
	var rep validateReport
	if err := json.Unmarshal([]byte(out), &rep); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out)
	}
	if rep.Rows != 1 || rep.MainColumn != "en" || len(rep.Errors) != 0 {
		t.Fatalf("report = %+v", rep)
	}
}

func TestValidate_MainLanguageFromPrefs(t *testing.T) {
	dir := testEnv(t)
	csvPath := filepath.Join(dir, "cards.csv")
	writeFile(t, csvPath, "start,end,ko,en\n0,1,안녕,Hi\n")

	if _, err := executeCommand(t, "validate", csvPath); err == nil || !strings.Contains(err.Error(), "main language is not set") {
		t.Fatalf("expected missing main language error, got %v", err)
	}
	if _, err := executeCommand(t, "prefs", "set", "main_language", "Korean"); err != nil {
		t.Fatalf("prefs set: %v", err)
	}
	out, err := executeCommand(t, "validate", csvPath)
	if err != nil {
		t.Fatalf("validate failed: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Main language: ko") {
		t.Fatalf("expected ko main language:\n%s", out)
	}
}
