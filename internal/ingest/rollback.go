package ingest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/oukeidos/subdeck/internal/apperrors"
	"github.com/oukeidos/subdeck/internal/logger"
	"github.com/oukeidos/subdeck/internal/recovery"
)

func (r *run) finish(ctx context.Context, err error) (*Result, error) {
	res := r.res
	if err == nil {
		res.Status = StatusSuccess
		logger.Info("Ingestion finished", "slug", res.ContentSlug, "episode", res.EpisodeNumber, "cards", res.CardsImported, "uploaded", res.Uploaded)
		return res, nil
	}

	res.FailedStage = r.stage
	canceled := ctx.Err() != nil || errors.Is(err, ErrAborted)
	res.Status = StatusFailure
	if canceled {
		res.Status = StatusCanceled
	}

	rbCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.cfg.RollbackTimeout)
	defer cancel()

	if !r.imported && r.stage == StageImport && outcomeUnknown(err) {
		r.probeImport(rbCtx)
	}
	if !r.imported {
		return res, err
	}

	r.emit(StageRollback, StateStarted, nil)
	action := recovery.ActionDeleteEpisode
	if r.itemCreated {
		action = recovery.ActionDeleteItem
	}
	j := recovery.NewJournal(action, r.item.Slug, r.episode.Number)
	j.APIBaseURL = r.cfg.APIBaseURL
	j.FailedStage = string(r.stage)
	j.Reason = apperrors.PublicMessage(err)
	if canceled {
		j.Reason = "canceled"
	}

	logger.Warn("Rolling back", "action", action, "slug", r.item.Slug, "episode", r.episode.Number, "reason", j.Reason)
	rbErr := recovery.Replay(rbCtx, r.backend, j)
	if rbErr == nil {
		res.Status = StatusRolledBack
		res.RolledBack = true
		r.emit(StageRollback, StateDone, nil)
		logger.Info("Rollback complete", "slug", r.item.Slug)
		return res, err
	}

	r.emit(StageRollback, StateFailed, rbErr)
	logger.Error("Rollback failed", "slug", r.item.Slug, "error", rbErr)
	j.RollbackError = rbErr.Error()
	if path, jErr := r.writeJournal(j); jErr != nil {
		logger.Error("Failed to write rollback journal", "error", jErr)
	} else {
		res.JournalPath = path
		logger.Warn("Rollback journal written; run `subdeck rollback` to retry", "path", path)
	}
	return res, err
}

// outcomeUnknown reports whether a failed import may still have been
// committed by the backend.
func outcomeUnknown(err error) bool {
	return errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) ||
		apperrors.Is(err, apperrors.KindTransient)
}

// probeImport checks whether an interrupted import created anything.
// The episode did not exist before the run, and the item only did when
// createItem is false.
func (r *run) probeImport(ctx context.Context) {
	episodes, err := r.backend.ListEpisodes(ctx, r.item.Slug)
	if err != nil {
		if !apperrors.Is(err, apperrors.KindNotFound) {
			logger.Warn("Could not verify interrupted import", "slug", r.item.Slug, "error", err)
		}
		return
	}
	for _, ep := range episodes {
		if ep.Number == r.episode.Number {
			r.imported = true
			r.itemCreated = r.createItem
			return
		}
	}
}

func (r *run) writeJournal(j *recovery.Journal) (string, error) {
	if abs, err := filepath.Abs(r.cfg.CSVPath); err == nil {
		j.CSVPath = abs
		if h, err := recovery.HashFileHex(abs); err == nil {
			j.CSVHash = h
		}
	}
	if r.cfg.JournalDir != "" {
		if err := os.MkdirAll(r.cfg.JournalDir, 0700); err != nil {
			return "", fmt.Errorf("failed to create journal directory: %w", err)
		}
	}
	path, err := recovery.Save(recovery.GeneratePath(r.cfg.JournalDir, r.item.Slug), j)
	if err != nil {
		return "", fmt.Errorf("failed to save journal: %w", err)
	}
	return path, nil
}
