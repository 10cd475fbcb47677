package main

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/oukeidos/subdeck/internal/api"
	"github.com/oukeidos/subdeck/internal/model"
)

type fakeStorage struct {
	mu   sync.Mutex
	puts map[string]string
}

func newFakeStorage(t *testing.T) *fakeStorage {
	t.Helper()
	fs := &fakeStorage{puts: map[string]string{}}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		body, _ := io.ReadAll(r.Body)
		fs.mu.Lock()
		fs.puts[r.URL.Path] = string(body)
		fs.mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)
	t.Setenv("SUBDECK_STORAGE_BASE_URL", srv.URL)
	return fs
}

func TestIngest_CreatesItem(t *testing.T) {
	dir := testEnv(t)
	withKeyStubs(t, false, "", "secret-token", "")
	fb := newFakeBackend(t)
	fs := newFakeStorage(t)

	var imported api.ImportRequest
	fb.handlers["POST /import"] = func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&imported); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		_ = json.NewEncoder(w).Encode(api.ImportResult{ItemCreated: true, EpisodeCreated: true, EpisodeNumber: 1, CardsImported: len(imported.Cards)})
	}
	fb.handleJSON("POST /items/neko/stats", model.Stats{ContentSlug: "neko", Episodes: 1, Cards: 2, AvgDifficulty: 12.5})

	csvPath := filepath.Join(dir, "cards.csv")
	writeFile(t, csvPath, "start,end,ja,en\n0,1.5,猫です,It's a cat\n1.5,3,犬,Dog\n")
	writeFile(t, filepath.Join(dir, "img", "card_0.jpg"), "img0")
	writeFile(t, filepath.Join(dir, "img", "card_1.jpg"), "img1")

	out, err := executeCommand(t, "ingest", csvPath,
		"--slug", "neko", "--title", "Neko", "--type", "movie", "-m", "Japanese",
		"--category", "Anime,Cats", "--image-dir", filepath.Join(dir, "img"), "-y")
	if err != nil {
		t.Fatalf("ingest failed: %v\n%s", err, out)
	}
	for _, want := range []string{"Status: success", "Content: neko, episode 1 (new)", "Cards imported: 2", "Objects uploaded: 2", "Stats: 1 episode(s), 2 card(s)"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output:\n%s", want, out)
		}
	}
	if !imported.CreateItem || imported.Item.MainLanguage != "ja" || len(imported.Item.Categories) != 2 {
		t.Fatalf("import request = %+v", imported.Item)
	}
	if len(fs.puts) != 2 {
		t.Fatalf("uploads = %v", fs.puts)
	}
}

func TestIngest_DeclinedWarningsAbort(t *testing.T) {
	dir := testEnv(t)
	withKeyStubs(t, false, "", "secret-token", "")
	withConfirmer(t, "n\n")
	fb := newFakeBackend(t)
	fs := newFakeStorage(t)

	csvPath := filepath.Join(dir, "cards.csv")
	writeFile(t, csvPath, "start,end,ja,en\n0,1.5,猫です,\n")

	out, err := executeCommand(t, "ingest", csvPath, "--slug", "neko", "--title", "Neko", "--type", "movie", "-m", "ja")
	if err == nil || !strings.Contains(err.Error(), "rerun with -y") {
		t.Fatalf("expected abort error, got %v\n%s", err, out)
	}
	for _, r := range fb.Requests() {
		if strings.HasPrefix(r, "POST") {
			t.Fatalf("nothing may be written after an abort, got %v", fb.Requests())
		}
	}
	if len(fs.puts) != 0 {
		t.Fatalf("uploads = %v", fs.puts)
	}
}

func TestIngest_RequiresSlug(t *testing.T) {
	testEnv(t)
	if _, err := executeCommand(t, "ingest", "cards.csv"); err == nil {
		t.Fatal("expected error without --slug")
	}
}

func TestIngest_InvalidEpisode(t *testing.T) {
	testEnv(t)
	_, err := executeCommand(t, "ingest", "cards.csv", "--slug", "neko", "-m", "ja", "--episode", "0")
	if err == nil || !strings.Contains(err.Error(), "episode number") {
		t.Fatalf("expected episode error, got %v", err)
	}
}
