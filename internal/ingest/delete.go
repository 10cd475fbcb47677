package ingest

import (
	"context"
	"fmt"

	"github.com/oukeidos/subdeck/internal/apperrors"
	"github.com/oukeidos/subdeck/internal/batch"
	"github.com/oukeidos/subdeck/internal/config"
	"github.com/oukeidos/subdeck/internal/logger"
	"github.com/oukeidos/subdeck/internal/model"
)

// ContentDeleter is the part of the backend API DeleteContent uses.
type ContentDeleter interface {
	ListEpisodes(ctx context.Context, slug string) ([]model.Episode, error)
	DeleteEpisode(ctx context.Context, slug string, number int) error
	DeleteItem(ctx context.Context, slug string) error
}

type DeleteResult struct {
	Episodes    int
	Deleted     int
	ItemDeleted bool
}

// DeleteContent deletes every episode of slug with at most concurrency
// requests in flight, then the item itself. The item is kept when any
// episode delete fails so the command can be run again.
func DeleteContent(ctx context.Context, d ContentDeleter, slug string, concurrency int, onProgress func(batch.Progress)) (*DeleteResult, error) {
	if concurrency <= 0 {
		concurrency = config.DefaultDeleteConcurrency
	}
	episodes, err := d.ListEpisodes(ctx, slug)
	if err != nil {
		return nil, fmt.Errorf("failed to list episodes of %q: %w", slug, err)
	}
	out := &DeleteResult{Episodes: len(episodes)}
	logger.Info("Deleting content", "slug", slug, "episodes", len(episodes), "concurrency", concurrency)

	res := batch.Run(ctx, len(episodes), concurrency, func(ctx context.Context, i int) error {
		err := d.DeleteEpisode(ctx, slug, episodes[i].Number)
		if apperrors.Is(err, apperrors.KindNotFound) {
			return nil
		}
		return err
	}, onProgress)
	out.Deleted = res.Succeeded
	if len(res.Errors) > 0 {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		first := res.Errors[0]
		return out, fmt.Errorf("%d of %d episode deletes failed (episode %d): %w",
			len(res.Errors), res.Total, episodes[first.Item].Number, first.Err)
	}
	if err := ctx.Err(); err != nil {
		return out, err
	}

	if err := d.DeleteItem(ctx, slug); err != nil && !apperrors.Is(err, apperrors.KindNotFound) {
		return out, fmt.Errorf("failed to delete content %q: %w", slug, err)
	}
	out.ItemDeleted = true
	logger.Info("Content deleted", "slug", slug, "episodes", out.Deleted)
	return out, nil
}
