package main

import (
	"net/http"
	"strings"
	"testing"

	"github.com/oukeidos/subdeck/internal/model"
)

func TestItems_ListShowEpisodes(t *testing.T) {
	testEnv(t)
	withKeyStubs(t, false, "", "", "")
	fb := newFakeBackend(t)
	item := model.ContentItem{Slug: "neko", Title: "Neko", Type: model.TypeMovie, MainLanguage: "ja", EpisodeCount: 2,
		Categories: []model.Category{{ID: "1", Name: "Anime"}}}
	fb.handleJSON("GET /items", []model.ContentItem{item})
	fb.handleJSON("GET /items/neko", item)
	fb.handleJSON("GET /items/neko/episodes", []model.Episode{{ContentSlug: "neko", Number: 1, Title: "Pilot", CardCount: 12}})

	out, err := executeCommand(t, "items", "list")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if !strings.Contains(out, "neko") || !strings.Contains(out, "Neko") {
		t.Fatalf("unexpected list output:\n%s", out)
	}

	out, err = executeCommand(t, "items", "show", "neko")
	if err != nil {
		t.Fatalf("show failed: %v", err)
	}
	if !strings.Contains(out, "Main language: ja") || !strings.Contains(out, "Categories: Anime") {
		t.Fatalf("unexpected show output:\n%s", out)
	}

	out, err = executeCommand(t, "items", "episodes", "neko")
	if err != nil {
		t.Fatalf("episodes failed: %v", err)
	}
	if !strings.Contains(out, "Pilot") || !strings.Contains(out, "12") {
		t.Fatalf("unexpected episodes output:\n%s", out)
	}
}

func TestItems_NotFound(t *testing.T) {
	testEnv(t)
	withKeyStubs(t, false, "", "", "")
	newFakeBackend(t)

	if _, err := executeCommand(t, "items", "show", "missing"); err == nil {
		t.Fatal("expected not found error")
	}
}

func TestItems_NeedsBaseURL(t *testing.T) {
	testEnv(t)
	withKeyStubs(t, false, "", "", "")

	_, err := executeCommand(t, "items", "list")
	if err == nil || !strings.Contains(err.Error(), "api.base_url") {
		t.Fatalf("expected base URL error, got %v", err)
	}
}

func TestCategories_CreateNeedsToken(t *testing.T) {
	testEnv(t)
	withKeyStubs(t, false, "", "", "")
	newFakeBackend(t)

	_, err := executeCommand(t, "categories", "create", "Anime")
	if err == nil || !strings.Contains(err.Error(), "Backend API token") {
		t.Fatalf("expected missing token error, got %v", err)
	}
}

func TestCategories_CreateAndDelete(t *testing.T) {
	testEnv(t)
	withKeyStubs(t, false, "", "secret-token", "")
	fb := newFakeBackend(t)
	fb.handleJSON("POST /categories", model.Category{ID: "7", Name: "Anime"})
	fb.handlers["DELETE /categories/7"] = func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}

	out, err := executeCommand(t, "categories", "create", "Anime")
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if !strings.Contains(out, `Created category "Anime" (id 7)`) {
		t.Fatalf("unexpected output: %s", out)
	}
	if fb.auth[0] != "Bearer secret-token" {
		t.Fatalf("Authorization = %q", fb.auth[0])
	}

	if _, err := executeCommand(t, "categories", "delete", "7", "-y"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
}

func TestDelete_CascadesEpisodes(t *testing.T) {
	testEnv(t)
	withKeyStubs(t, false, "", "secret-token", "")
	fb := newFakeBackend(t)
	fb.handleJSON("GET /items/neko/episodes", []model.Episode{{Number: 1}, {Number: 2}})
	noContent := func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) }
	fb.handlers["DELETE /items/neko/episodes/1"] = noContent
	fb.handlers["DELETE /items/neko/episodes/2"] = noContent
	fb.handlers["DELETE /items/neko"] = noContent

	out, err := executeCommand(t, "delete", "neko", "--yes")
	if err != nil {
		t.Fatalf("delete failed: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Deleted 2 of 2 episode(s).") || !strings.Contains(out, `Deleted "neko".`) {
		t.Fatalf("unexpected output:\n%s", out)
	}
	reqs := fb.Requests()
	if reqs[len(reqs)-1] != "DELETE /items/neko" {
		t.Fatalf("item must be deleted last, requests = %v", reqs)
	}
}

func TestDelete_Declined(t *testing.T) {
	testEnv(t)
	withKeyStubs(t, false, "", "secret-token", "")
	fb := newFakeBackend(t)
	withConfirmer(t, "no\n")

	out, err := executeCommand(t, "delete", "neko")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "Nothing deleted.") || len(fb.Requests()) != 0 {
		t.Fatalf("output %q, requests %v", out, fb.Requests())
	}
}
