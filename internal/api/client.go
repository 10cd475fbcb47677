package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/oukeidos/subdeck/internal/apperrors"
	"github.com/oukeidos/subdeck/internal/httpclient"
	"github.com/oukeidos/subdeck/internal/logger"
	"github.com/oukeidos/subdeck/internal/version"
)

const (
	defaultMaxAttempts = 3
	defaultRetryBase   = 1 * time.Second
	maxBackoff         = 20 * time.Second
)

// Client talks to the content backend over JSON/HTTP with a bearer token.
type Client struct {
	baseURL     string
	token       string
	httpClient  *http.Client
	maxAttempts int
	retryBase   time.Duration
}

// NewClient returns a client for baseURL. An empty token sends no Authorization header.
func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		token:       token,
		maxAttempts: defaultMaxAttempts,
		retryBase:   defaultRetryBase,
	}
}

// WithHTTPClient replaces the shared client, e.g. to apply a per-config timeout.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.httpClient = hc
	return c
}

func (c *Client) client() *http.Client {
	if c.httpClient != nil {
		return c.httpClient
	}
	return httpclient.GetDefaultClient()
}

type errorEnvelope struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func errorDetail(body []byte) string {
	var env errorEnvelope
	if err := json.Unmarshal(body, &env); err == nil {
		if env.Error != "" {
			return env.Error
		}
		if env.Message != "" {
			return env.Message
		}
	}
	return "no error detail"
}

func idempotent(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodPut, http.MethodDelete:
		return true
	}
	return false
}

// do sends one API call and decodes a JSON response into out (when non-nil).
// Idempotent methods are retried on transient and rate-limit failures.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, payload, out any) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	attempts := 1
	if idempotent(method) {
		attempts = c.maxAttempts
	}
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = c.once(ctx, method, path, endpoint, payload, out)
		retry, backoff := retryDecision(ctx, err, attempt, attempts, c.retryBase)
		if !retry {
			return err
		}
		logger.Debug("Retrying backend request", "method", method, "path", path, "attempt", attempt, "backoff", backoff, "error", err)
		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return err
}

func (c *Client) once(ctx context.Context, method, path, endpoint string, payload, out any) error {
	req, err := httpclient.NewJSONRequest(ctx, method, endpoint, payload)
	if err != nil {
		return err
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	req.Header.Set("User-Agent", version.UserAgent())

	started := time.Now()
	body, resp, err := httpclient.DoAndRead(c.client(), req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return apperrors.New(apperrors.KindTransient,
			"Backend request failed due to a temporary network error.",
			fmt.Errorf("%s %s: %w", method, path, err))
	}
	logger.Debug("Backend response", "method", method, "path", path, "status", resp.StatusCode, "elapsed", time.Since(started))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return apperrors.FromStatus("backend", resp.StatusCode, fmt.Errorf("%s %s: %s", method, path, errorDetail(body)))
	}
	if out == nil || len(body) == 0 || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return apperrors.New(apperrors.KindValidation, "Backend response format was invalid.",
			fmt.Errorf("%s %s: failed to decode response: %w", method, path, err))
	}
	return nil
}

func retryDecision(ctx context.Context, err error, attempt, maxAttempts int, base time.Duration) (bool, time.Duration) {
	if err == nil || attempt >= maxAttempts {
		return false, 0
	}
	if ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false, 0
	}
	if !apperrors.IsRetryable(err) {
		return false, 0
	}
	backoff := base << (attempt - 1)
	if apperrors.IsRateLimit(err) {
		backoff *= 2
	}
	if backoff > maxBackoff {
		backoff = maxBackoff
	}
	if base > 0 {
		backoff += time.Duration(rand.Int63n(int64(base)))
	}
	return true, backoff
}
