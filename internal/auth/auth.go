package auth

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"syscall"

	"github.com/zalando/go-keyring"
	"golang.org/x/term"
)

const serviceName = "subdeck"

// Service names a stored secret.
type Service string

const (
	ServiceAPI     Service = "api"
	ServiceStorage Service = "storage"
	ServiceGemini  Service = "gemini"
)

type secret struct {
	account string
	envVar  string
	label   string
}

var secrets = map[Service]secret{
	ServiceAPI:     {account: "api-token", envVar: "SUBDECK_API_TOKEN", label: "Backend API token"},
	ServiceStorage: {account: "storage-token", envVar: "SUBDECK_STORAGE_TOKEN", label: "Storage upload token"},
	ServiceGemini:  {account: "gemini-api-key", envVar: "GEMINI_API_KEY", label: "Gemini API key"},
}

// Sources reported by GetKey.
const (
	SourceKeychain = "Keychain"
	SourceEnv      = "Environment Variable"
	SourcePrompt   = "Terminal Prompt"
)

// ParseService resolves a --service value.
func ParseService(s string) (Service, error) {
	svc := Service(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := secrets[svc]; !ok {
		return "", fmt.Errorf("invalid service %q: must be one of %s", s, strings.Join(ServiceNames(), ", "))
	}
	return svc, nil
}

// ServiceNames lists the known services, sorted.
func ServiceNames() []string {
	out := make([]string, 0, len(secrets))
	for s := range secrets {
		out = append(out, string(s))
	}
	sort.Strings(out)
	return out
}

// Label is the human name of the secret stored for s.
func (s Service) Label() string { return secrets[s].label }

// EnvVar is the environment variable consulted for s with --allow-env.
func (s Service) EnvVar() string { return secrets[s].envVar }

// GetKey retrieves the secret for service from the keychain, then from the
// environment when allowEnv is set. It returns the key and its source.
func GetKey(service Service, allowEnv bool) (string, string) {
	sec := secrets[service]
	key, err := keyring.Get(serviceName, sec.account)
	if err == nil && strings.TrimSpace(key) != "" {
		return strings.TrimSpace(key), SourceKeychain
	}
	if allowEnv {
		if key, ok := GetEnvKey(service); ok {
			return key, SourceEnv
		}
	}
	return "", ""
}

// SaveKey saves the key for service to the OS keychain.
func SaveKey(service Service, key string) error {
	return keyring.Set(serviceName, secrets[service].account, strings.TrimSpace(key))
}

// DeleteKey removes the key for service from the OS keychain.
func DeleteKey(service Service) error {
	return keyring.Delete(serviceName, secrets[service].account)
}

// GetStatus reports whether the keychain holds a key for service.
func GetStatus(service Service) bool {
	key, err := keyring.Get(serviceName, secrets[service].account)
	return err == nil && key != ""
}

// GetEnvKey retrieves the key from the environment only.
func GetEnvKey(service Service) (string, bool) {
	key := strings.TrimSpace(os.Getenv(secrets[service].envVar))
	if key == "" {
		return "", false
	}
	return key, true
}

// PromptForAPIKey reads a secret from the terminal without echo.
func PromptForAPIKey(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	b, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		return "", err
	}
	fmt.Fprintln(os.Stderr)
	return strings.TrimSpace(string(b)), nil
}
