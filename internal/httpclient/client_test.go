package httpclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestGetDefaultClient(t *testing.T) {
	client := GetDefaultClient()
	if client == nil {
		t.Fatal("Expected client to not be nil")
	}
	if client.Timeout != DefaultTimeout {
		t.Errorf("Expected timeout to be %v, got %v", DefaultTimeout, client.Timeout)
	}
	if GetDefaultClient() != client {
		t.Errorf("Expected singleton client instance")
	}
	if up := GetUploadClient(); up.Timeout != UploadTimeout {
		t.Errorf("Expected upload timeout %v, got %v", UploadTimeout, up.Timeout)
	}
}

func TestNewClient(t *testing.T) {
	client := NewClient(5 * time.Second)
	if client.Timeout != 5*time.Second {
		t.Errorf("Expected timeout to be 5s, got %v", client.Timeout)
	}
	transport, ok := client.Transport.(*http.Transport)
	if !ok || transport == nil {
		t.Fatalf("Expected transport to be *http.Transport")
	}
	if transport.MaxIdleConnsPerHost != MaxIdleConnsPerHost {
		t.Errorf("Expected MaxIdleConnsPerHost to be %d, got %d", MaxIdleConnsPerHost, transport.MaxIdleConnsPerHost)
	}
}

func TestDoAndRead(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "hello world")
	}))
	defer server.Close()

	req, _ := http.NewRequest("GET", server.URL, nil)
	body, resp, err := DoAndRead(GetDefaultClient(), req)
	if err != nil {
		t.Fatalf("DoAndRead failed: %v", err)
	}
	if string(body) != "hello world" {
		t.Errorf("Expected body %q, got %q", "hello world", string(body))
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status OK, got %v", resp.Status)
	}
}

func TestDoAndReadTooLarge(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", fmt.Sprintf("%d", MaxResponseBytes+1))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	req, _ := http.NewRequest("GET", server.URL, nil)
	_, _, err := DoAndRead(GetDefaultClient(), req)
	if err == nil || !strings.Contains(err.Error(), "response body too large") {
		t.Fatalf("expected response body too large error, got: %v", err)
	}
}

func TestNewJSONRequest(t *testing.T) {
	var got map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q", ct)
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
	}))
	defer server.Close()

	req, err := NewJSONRequest(context.Background(), http.MethodPost, server.URL, map[string]string{"slug": "film"})
	if err != nil {
		t.Fatalf("NewJSONRequest: %v", err)
	}
	if _, _, err := DoAndRead(GetDefaultClient(), req); err != nil {
		t.Fatalf("DoAndRead: %v", err)
	}
	if got["slug"] != "film" {
		t.Errorf("server decoded %v", got)
	}

	req, err = NewJSONRequest(context.Background(), http.MethodDelete, server.URL, nil)
	if err != nil {
		t.Fatalf("NewJSONRequest(nil): %v", err)
	}
	if req.Header.Get("Content-Type") != "" {
		t.Errorf("bodiless request should not set Content-Type")
	}
}

func TestSetDefaultClientForTesting(t *testing.T) {
	custom := &http.Client{Timeout: 3 * time.Second}
	restore := SetDefaultClientForTesting(custom)
	defer restore()

	if GetDefaultClient() != custom || GetUploadClient() != custom {
		t.Fatalf("Expected overridden default client")
	}
}
