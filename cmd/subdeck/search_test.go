package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/oukeidos/subdeck/internal/api"
	"github.com/oukeidos/subdeck/internal/model"
	"github.com/oukeidos/subdeck/internal/search"
)

var testCards = []model.Card{
	{ContentSlug: "neko", ContentTitle: "Neko", EpisodeNumber: 1, Index: 0, Subtitles: map[string]string{"ja": "猫です", "en": "It's a cat"}},
	{ContentSlug: "neko", ContentTitle: "Neko", EpisodeNumber: 1, Index: 1, Subtitles: map[string]string{"ja": "犬だよ", "en": "A dog"}},
	{ContentSlug: "tori", ContentTitle: "Tori", EpisodeNumber: 2, Index: 0, Subtitles: map[string]string{"ja": "鳥", "en": "A bird"}},
}

type fakeBackend struct {
	mu       sync.Mutex
	requests []string
	auth     []string
	handlers map[string]http.HandlerFunc
}

func newFakeBackend(t *testing.T) *fakeBackend {
	t.Helper()
	fb := &fakeBackend{handlers: map[string]http.HandlerFunc{}}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fb.mu.Lock()
		fb.requests = append(fb.requests, r.Method+" "+r.URL.RequestURI())
		fb.auth = append(fb.auth, r.Header.Get("Authorization"))
		h, ok := fb.handlers[r.Method+" "+r.URL.Path]
		fb.mu.Unlock()
		if !ok {
			http.Error(w, `{"error":"not found"}`, http.StatusNotFound)
			return
		}
		h(w, r)
	}))
	t.Cleanup(srv.Close)
	t.Setenv("SUBDECK_API_BASE_URL", srv.URL)
	return fb
}

func (fb *fakeBackend) handleJSON(route string, v any) {
	fb.handlers[route] = func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(v)
	}
}

func (fb *fakeBackend) Requests() []string {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	return append([]string(nil), fb.requests...)
}

func TestSearch_Server(t *testing.T) {
	testEnv(t)
	withKeyStubs(t, false, "", "", "")
	fb := newFakeBackend(t)
	fb.handleJSON("GET /search", api.SearchResponse{Cards: testCards[:1], Total: 1})

	out, err := executeCommand(t, "search", "cat", "-m", "ja", "--lang", "en")
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if !strings.Contains(out, "1 card(s), page 1 of 1") || !strings.Contains(out, "ja: 猫です") || !strings.Contains(out, "en: It's a cat") {
		t.Fatalf("unexpected output:\n%s", out)
	}
	reqs := fb.Requests()
	if len(reqs) != 1 || !strings.Contains(reqs[0], "q=cat") || !strings.Contains(reqs[0], "lang=ja%2Cen") {
		t.Fatalf("requests = %v", reqs)
	}
	if fb.auth[0] != "" {
		t.Fatalf("reads without a token must not send Authorization, got %q", fb.auth[0])
	}
}

func TestSearch_PrefsDefaults(t *testing.T) {
	testEnv(t)
	withKeyStubs(t, false, "", "", "")
	fb := newFakeBackend(t)
	fb.handleJSON("GET /cards", testCards)

	if _, err := executeCommand(t, "prefs", "set", "main_language", "ja"); err != nil {
		t.Fatal(err)
	}
	if _, err := executeCommand(t, "prefs", "set", "subtitle_languages", "en"); err != nil {
		t.Fatal(err)
	}

	out, err := executeCommand(t, "search", "鳥", "--json")
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	var res search.Result
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("not JSON: %v\n%s", err, out)
	}
	if res.Source != search.SourceServer && res.Source != search.SourceLocal {
		t.Fatalf("unexpected source %q", res.Source)
	}
	if res.Total != 1 || res.Cards[0].ContentSlug != "tori" {
		t.Fatalf("result = %+v", res)
	}
	for _, r := range fb.Requests() {
		if !strings.Contains(r, "main_language=ja") {
			t.Fatalf("expected prefs main language in %q", r)
		}
	}
}

func TestSearch_BrowseGroupsAndPages(t *testing.T) {
	testEnv(t)
	withKeyStubs(t, false, "", "", "")
	fb := newFakeBackend(t)
	fb.handleJSON("GET /cards", testCards)

	out, err := executeCommand(t, "search", "-m", "ja", "--page-size", "2", "--page", "2")
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	for _, want := range []string{"3 card(s), page 2 of 2", "Neko (neko): 2", "Tori (tori): 1", "[tori ep2 #0"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output:\n%s", want, out)
		}
	}
}

func TestSearch_ServerErrorFallsBack(t *testing.T) {
	testEnv(t)
	withKeyStubs(t, false, "", "", "")
	fb := newFakeBackend(t)
	fb.handleJSON("GET /cards", testCards)
	fb.handlers["GET /search"] = func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"bad query"}`, http.StatusBadRequest)
	}

	out, err := executeCommand(t, "search", "dog", "-m", "ja", "-l", "en")
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if !strings.Contains(out, "local search: server search failed") || !strings.Contains(out, "en: A dog") {
		t.Fatalf("unexpected output:\n%s", out)
	}
}

func TestSearch_RejectsBadFilters(t *testing.T) {
	testEnv(t)
	withKeyStubs(t, false, "", "", "")

	if _, err := executeCommand(t, "search", "x", "-m", "ja", "--type", "podcast"); err == nil {
		t.Fatal("expected error for unknown content type")
	}
	if _, err := executeCommand(t, "search", "x", "-m", "ja", "--min-difficulty", "80", "--max-difficulty", "20"); err == nil {
		t.Fatal("expected error for inverted difficulty range")
	}
}
