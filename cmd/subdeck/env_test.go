package main

import (
	"strings"
	"testing"

	"github.com/oukeidos/subdeck/internal/auth"
)

func withEnvStatusStubs(t *testing.T, status bool, envKey string) {
	t.Helper()
	prevStatus := getStatus
	prevEnv := getEnvKey

	getStatus = func(_ auth.Service) bool { return status }
	getEnvKey = func(_ auth.Service) (string, bool) {
		if envKey == "" {
			return "", false
		}
		return envKey, true
	}
	t.Cleanup(func() {
		getStatus = prevStatus
		getEnvKey = prevEnv
	})
}

func TestEnv_StatusKeychain(t *testing.T) {
	testEnv(t)
	withEnvStatusStubs(t, true, "sk-env-secret")

	out, err := executeCommand(t, "env", "status", "--service", "gemini")
	if err != nil {
		t.Fatalf("command failed: %v", err)
	}
	if !strings.Contains(out, "Gemini API key: Found (source=Keychain)") {
		t.Fatalf("expected keychain source, got: %s", out)
	}
	if strings.Contains(out, "sk-env-secret") {
		t.Fatalf("output leaked env key")
	}
}

func TestEnv_StatusEnv(t *testing.T) {
	testEnv(t)
	withEnvStatusStubs(t, false, "sk-env-secret")

	out, err := executeCommand(t, "env", "status", "--service", "api")
	if err != nil {
		t.Fatalf("command failed: %v", err)
	}
	if !strings.Contains(out, "Found (source=Environment Variable SUBDECK_API_TOKEN") {
		t.Fatalf("expected env source, got: %s", out)
	}
	if strings.Contains(out, "sk-env-secret") {
		t.Fatalf("output leaked env key")
	}
}

func TestEnv_StatusAllServices(t *testing.T) {
	testEnv(t)
	withEnvStatusStubs(t, false, "")

	out, err := executeCommand(t, "env")
	if err != nil {
		t.Fatalf("command failed: %v", err)
	}
	for _, want := range []string{"Backend API token: Not Found", "Storage upload token: Not Found", "Gemini API key: Not Found"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output, got: %s", want, out)
		}
	}
}

func TestEnv_UnknownService(t *testing.T) {
	testEnv(t)
	withEnvStatusStubs(t, false, "")

	if _, err := executeCommand(t, "env", "status", "--service", "openai"); err == nil {
		t.Fatal("expected error for unknown service")
	}
}

func TestEnv_SetupAndDelete(t *testing.T) {
	testEnv(t)
	withKeyStubs(t, true, "new-secret", "", "")

	saved := map[auth.Service]string{}
	prevSave, prevDelete := saveKey, deleteKey
	saveKey = func(svc auth.Service, key string) error {
		saved[svc] = key
		return nil
	}
	deleteKey = func(svc auth.Service) error {
		delete(saved, svc)
		return nil
	}
	t.Cleanup(func() { saveKey, deleteKey = prevSave, prevDelete })

	out, err := executeCommand(t, "env", "setup", "--service", "storage")
	if err != nil {
		t.Fatalf("setup failed: %v", err)
	}
	if saved[auth.ServiceStorage] != "new-secret" {
		t.Fatalf("saved = %v", saved)
	}
	if strings.Contains(out, "new-secret") {
		t.Fatalf("output leaked the key: %s", out)
	}

	if _, err := executeCommand(t, "env", "delete", "--service", "storage"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if _, ok := saved[auth.ServiceStorage]; ok {
		t.Fatal("expected key to be deleted")
	}
}

func TestEnv_SetupRejectsEmptyKey(t *testing.T) {
	testEnv(t)
	withKeyStubs(t, true, "   ", "", "")

	if _, err := executeCommand(t, "env", "setup"); err == nil {
		t.Fatal("expected error for empty key")
	}
}
