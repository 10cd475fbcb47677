package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/oukeidos/subdeck/internal/apperrors"
	"github.com/oukeidos/subdeck/internal/httpclient"
	"github.com/oukeidos/subdeck/internal/version"
)

// Uploader stores objects with HTTP PUT <baseURL>/<key>.
type Uploader struct {
	baseURL     string
	token       string
	httpClient  *http.Client
	maxAttempts int
	retryBase   time.Duration
}

func NewUploader(baseURL, token string) *Uploader {
	return &Uploader{
		baseURL:     strings.TrimRight(baseURL, "/"),
		token:       token,
		maxAttempts: 3,
		retryBase:   time.Second,
	}
}

func (u *Uploader) client() *http.Client {
	if u.httpClient != nil {
		return u.httpClient
	}
	return httpclient.GetUploadClient()
}

// URL returns the public location of key.
func (u *Uploader) URL(key string) string {
	return u.baseURL + "/" + escapeKey(key)
}

func escapeKey(key string) string {
	parts := strings.Split(strings.TrimLeft(key, "/"), "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}

// Upload sends one PUT. size may be -1 when unknown.
func (u *Uploader) Upload(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, u.URL(key), r)
	if err != nil {
		return fmt.Errorf("failed to create upload request: %w", err)
	}
	if size >= 0 {
		req.ContentLength = size
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if u.token != "" {
		req.Header.Set("Authorization", "Bearer "+u.token)
	}
	req.Header.Set("User-Agent", version.UserAgent())

	_, resp, err := httpclient.DoAndRead(u.client(), req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return apperrors.New(apperrors.KindTransient, "Upload failed due to a temporary network error.",
			fmt.Errorf("PUT %s: %w", key, err))
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return apperrors.FromStatus("storage", resp.StatusCode, fmt.Errorf("PUT %s", key))
	}
	return nil
}

// UploadFile uploads a local file, reopening it for each retry of a
// transient failure.
func (u *Uploader) UploadFile(ctx context.Context, key, filePath, contentType string) error {
	var err error
	for attempt := 1; attempt <= u.maxAttempts; attempt++ {
		err = u.uploadFileOnce(ctx, key, filePath, contentType)
		if err == nil || attempt == u.maxAttempts || !apperrors.IsRetryable(err) || ctx.Err() != nil {
			break
		}
		backoff := u.retryBase << (attempt - 1)
		if u.retryBase > 0 {
			backoff += time.Duration(rand.Int63n(int64(u.retryBase)))
		}
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

func (u *Uploader) uploadFileOnce(ctx context.Context, key, filePath, contentType string) error {
	f, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", filepath.Base(filePath), err)
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return err
	}
	if info.IsDir() {
		return errors.New(filePath + " is a directory")
	}
	return u.Upload(ctx, key, f, info.Size(), contentType)
}

// Object keys. Episode numbers are zero-padded so listings sort naturally.

func itemPrefix(slug string) string { return path.Join("items", slug) }

func episodePrefix(slug string, episode int) string {
	return path.Join(itemPrefix(slug), "episodes", fmt.Sprintf("%03d", episode))
}

func normExt(ext string) string {
	ext = strings.ToLower(ext)
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}

func ItemCoverKey(slug, ext string) string {
	return path.Join(itemPrefix(slug), "cover"+normExt(ext))
}

func ItemLandscapeCoverKey(slug, ext string) string {
	return path.Join(itemPrefix(slug), "cover_landscape"+normExt(ext))
}

func EpisodeCoverKey(slug string, episode int, ext string) string {
	return path.Join(episodePrefix(slug, episode), "cover"+normExt(ext))
}

func EpisodeAudioKey(slug string, episode int, ext string) string {
	return path.Join(episodePrefix(slug, episode), "full_audio"+normExt(ext))
}

func EpisodeVideoKey(slug string, episode int, ext string) string {
	return path.Join(episodePrefix(slug, episode), "full_video"+normExt(ext))
}

func cardKey(kind, slug string, episode, index int, ext string) string {
	name := fmt.Sprintf("%s_%03d_%04d%s", slug, episode, index, normExt(ext))
	return path.Join(episodePrefix(slug, episode), kind, name)
}

func CardImageKey(slug string, episode, index int, ext string) string {
	return cardKey("image", slug, episode, index, ext)
}

func CardAudioKey(slug string, episode, index int, ext string) string {
	return cardKey("audio", slug, episode, index, ext)
}
