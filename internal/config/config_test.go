package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad_FileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "subdeck.yaml")
	body := "api:\n  base_url: https://api.example.com/\n" +
		"ingest:\n  upload_concurrency: 100\n" +
		"search:\n  cache_ttl: 45s\n  page_size: 0\n"
	if err := os.WriteFile(path, []byte(body), 0600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("SUBDECK_STORAGE_BASE_URL", "https://media.example.com")

	cfg, notes, err := Load(New(), path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.APIBaseURL != "https://api.example.com" {
		t.Errorf("APIBaseURL = %q", cfg.APIBaseURL)
	}
	if cfg.StorageBaseURL != "https://media.example.com" {
		t.Errorf("StorageBaseURL = %q (env override)", cfg.StorageBaseURL)
	}
	if cfg.UploadConcurrency != MaxUploadConcurrency || cfg.PageSize != 1 {
		t.Errorf("clamping failed: upload=%d page=%d", cfg.UploadConcurrency, cfg.PageSize)
	}
	if cfg.SearchCacheTTL != 45*time.Second || cfg.DeleteConcurrency != DefaultDeleteConcurrency {
		t.Errorf("ttl=%v delete=%d", cfg.SearchCacheTTL, cfg.DeleteConcurrency)
	}
	if len(notes) != 2 {
		t.Errorf("notes = %v, want 2 entries", notes)
	}
	if err := cfg.ValidateAPI(); err != nil {
		t.Errorf("ValidateAPI: %v", err)
	}
}

func TestLoad_MissingExplicitFileFails(t *testing.T) {
	if _, _, err := Load(New(), filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing explicit config file")
	}
}

func TestValidateBaseURL(t *testing.T) {
	cases := map[string]string{
		"":                    "not set",
		"ftp://x":             "absolute http(s)",
		"api.example.com":     "absolute http(s)",
		"https://example.com": "",
	}
	for in, want := range cases {
		err := Config{APIBaseURL: in}.ValidateAPI()
		if want == "" {
			if err != nil {
				t.Errorf("%q: unexpected error %v", in, err)
			}
			continue
		}
		if err == nil || !strings.Contains(err.Error(), want) {
			t.Errorf("%q: err = %v, want %q", in, err, want)
		}
	}
}
