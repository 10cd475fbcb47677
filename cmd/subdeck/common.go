package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/oukeidos/subdeck/internal/api"
	"github.com/oukeidos/subdeck/internal/auth"
	"github.com/oukeidos/subdeck/internal/batch"
	"github.com/oukeidos/subdeck/internal/cleanup"
	"github.com/oukeidos/subdeck/internal/httpclient"
	"github.com/oukeidos/subdeck/internal/logger"
	"github.com/oukeidos/subdeck/internal/prefs"
	"github.com/oukeidos/subdeck/internal/prompt"
	"github.com/oukeidos/subdeck/internal/storage"
	"golang.org/x/term"
)

var (
	isTerminal   = term.IsTerminal
	getKey       = auth.GetKey
	getEnvKey    = auth.GetEnvKey
	getStatus    = auth.GetStatus
	saveKey      = auth.SaveKey
	deleteKey    = auth.DeleteKey
	promptForKey = auth.PromptForAPIKey
	newConfirmer = prompt.DefaultConfirmer
)

// resolveSecret finds the secret for service in the keychain, then the
// environment (with --allow-env), then a terminal prompt. An empty result is
// only an error when required is set.
func resolveSecret(service auth.Service, allowEnv, required bool) (string, error) {
	if key, source := getKey(service, allowEnv); key != "" {
		logger.Debug("Using secret", "service", string(service), "source", source)
		return key, nil
	}

	interactive := isTerminal(int(os.Stdin.Fd()))
	if interactive && required {
		key, err := promptForKey(fmt.Sprintf("%s (press Enter to skip): ", service.Label()))
		if err != nil {
			return "", fmt.Errorf("error reading %s: %w", service.Label(), err)
		}
		if key = strings.TrimSpace(key); key != "" {
			logger.Debug("Using secret", "service", string(service), "source", auth.SourcePrompt)
			return key, nil
		}
	}
	if !required {
		return "", nil
	}

	switch {
	case !interactive && allowEnv:
		return "", fmt.Errorf("no %s available (non-interactive shell); run 'subdeck env setup --service %s' or set %s", service.Label(), service, service.EnvVar())
	case !interactive:
		return "", fmt.Errorf("no %s available (non-interactive shell); run 'subdeck env setup --service %s' or use --allow-env", service.Label(), service)
	case allowEnv:
		return "", fmt.Errorf("%s is required; not found in keychain or environment", service.Label())
	default:
		return "", fmt.Errorf("%s is required; not found in keychain (environment disabled by default; use --allow-env)", service.Label())
	}
}

// apiClient builds a backend client. Writes need a token; reads try without.
func (a *app) apiClient(write bool) (*api.Client, error) {
	if err := a.cfg.ValidateAPI(); err != nil {
		return nil, err
	}
	token, err := resolveSecret(auth.ServiceAPI, a.allowEnv, write)
	if err != nil {
		return nil, err
	}
	return api.NewClient(a.cfg.APIBaseURL, token).WithHTTPClient(httpclient.NewClient(a.cfg.APITimeout)), nil
}

func (a *app) uploader() (*storage.Uploader, error) {
	if err := a.cfg.ValidateStorage(); err != nil {
		return nil, err
	}
	token, err := resolveSecret(auth.ServiceStorage, a.allowEnv, true)
	if err != nil {
		return nil, err
	}
	return storage.NewUploader(a.cfg.StorageBaseURL, token), nil
}

// openPrefs opens the preferences store and closes it on exit.
func (a *app) openPrefs() (*prefs.Store, error) {
	s, err := prefs.Open(a.cfg.PrefsPath)
	if err != nil {
		return nil, err
	}
	cleanup.Register("preferences", s.Close)
	return s, nil
}

func signalContext() (context.Context, func()) {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			logger.Warn("Cancellation requested")
			cancel()
		case <-ctx.Done():
		}
	}()
	stop := func() {
		signal.Stop(sigCh)
		cancel()
	}
	return ctx, stop
}

// progressPrinter logs batch progress at every tenth of the work and at the end.
func progressPrinter(label string) func(batch.Progress) {
	lastStep := -1
	return func(p batch.Progress) {
		if p.Total == 0 {
			return
		}
		step := p.Done * 10 / p.Total
		if step == lastStep && p.Done != p.Total {
			return
		}
		lastStep = step
		logger.Info(label, "done", p.Done, "total", p.Total, "failed", p.Failed)
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func splitList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
