package ingest

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/oukeidos/subdeck/internal/api"
	"github.com/oukeidos/subdeck/internal/apperrors"
	"github.com/oukeidos/subdeck/internal/batch"
	"github.com/oukeidos/subdeck/internal/csvimport"
	"github.com/oukeidos/subdeck/internal/language"
	"github.com/oukeidos/subdeck/internal/logger"
	"github.com/oukeidos/subdeck/internal/media"
	"github.com/oukeidos/subdeck/internal/model"
	"github.com/oukeidos/subdeck/internal/recovery"
	"github.com/oukeidos/subdeck/internal/storage"
	"github.com/rivo/uniseg"
)

// Backend is the part of the backend API an ingestion run uses.
type Backend interface {
	GetItem(ctx context.Context, slug string) (*model.ContentItem, error)
	UpdateItem(ctx context.Context, item model.ContentItem) (*model.ContentItem, error)
	ListEpisodes(ctx context.Context, slug string) ([]model.Episode, error)
	ImportCSV(ctx context.Context, req api.ImportRequest) (*api.ImportResult, error)
	UpdateEpisode(ctx context.Context, ep model.Episode) error
	RecalculateStats(ctx context.Context, slug string) (*model.Stats, error)
	recovery.Deleter
}

// Store uploads media objects.
type Store interface {
	UploadFile(ctx context.Context, key, filePath, contentType string) error
	URL(key string) string
}

// ErrAborted is returned when OnConfirmWarnings declines to continue.
var ErrAborted = errors.New("ingestion aborted after validation warnings")

var errSkipped = errors.New("stage skipped")

type run struct {
	cfg     Config
	backend Backend
	store   Store
	res     *Result

	stage       Stage
	item        model.ContentItem
	createItem  bool
	itemChanged bool
	mainLang    string
	episode     model.Episode
	rows        []csvimport.CardRow
	plan        media.Plan
	imageKeys   map[int]string
	audioKeys   map[int]string
	imported    bool
	itemCreated bool
}

// Run validates the CSV, uploads media, imports the cards and recalculates
// stats. When a stage fails or ctx is canceled after the import succeeded,
// the created episode (or the item, if this run created it) is deleted again.
// The returned Result is never nil.
func Run(ctx context.Context, cfg Config, backend Backend, store Store) (*Result, error) {
	var notes []string
	cfg, notes = cfg.Normalize()
	for _, note := range notes {
		logger.Warn("Config normalized", "detail", note)
	}
	res := &Result{ContentSlug: cfg.Item.Slug, EpisodeNumber: cfg.EpisodeNumber}
	if err := cfg.Validate(); err != nil {
		res.Status = StatusFailure
		res.FailedStage = StageValidate
		return res, apperrors.Validation(fmt.Errorf("invalid configuration: %w", err))
	}

	r := &run{
		cfg:       cfg,
		backend:   backend,
		store:     store,
		res:       res,
		imageKeys: make(map[int]string),
		audioKeys: make(map[int]string),
		episode: model.Episode{
			ContentSlug: cfg.Item.Slug,
			Number:      cfg.EpisodeNumber,
			Title:       cfg.EpisodeTitle,
			Description: cfg.EpisodeDescription,
		},
	}
	err := r.execute(ctx)
	return r.finish(ctx, err)
}

func (r *run) execute(ctx context.Context) error {
	steps := []struct {
		stage Stage
		fn    func(context.Context) error
	}{
		{StageValidate, r.validate},
		{StageCovers, r.uploadCovers},
		{StageCardMedia, r.uploadCardMedia},
		{StageImport, r.importCards},
		{StageEpisodeMedia, r.uploadEpisodeMedia},
		{StageStats, r.recalculate},
	}
	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return err
		}
		r.stage = step.stage
		r.emit(step.stage, StateStarted, nil)
		err := step.fn(ctx)
		switch {
		case errors.Is(err, errSkipped):
			logger.Info("Stage skipped", "stage", step.stage)
			r.emit(step.stage, StateSkipped, nil)
		case err != nil:
			logger.Error("Stage failed", "stage", step.stage, "error", err)
			r.emit(step.stage, StateFailed, err)
			return err
		default:
			logger.Info("Stage complete", "stage", step.stage)
			r.emit(step.stage, StateDone, nil)
		}
	}
	return nil
}

func (r *run) emit(stage Stage, state StageState, err error) {
	if r.cfg.OnStage != nil {
		r.cfg.OnStage(StageEvent{Stage: stage, State: state, Err: err})
	}
}

func (r *run) warn(msg string) {
	r.res.Warnings = append(r.res.Warnings, msg)
}

func (r *run) validate(ctx context.Context) error {
	slug := r.cfg.Item.Slug
	existing, err := r.backend.GetItem(ctx, slug)
	switch {
	case err == nil:
		r.item = *existing
		requested := language.Canonical(r.cfg.Item.MainLanguage)
		current := language.Canonical(r.item.MainLanguage)
		if r.cfg.Item.MainLanguage != "" && requested != current {
			return apperrors.Validation(fmt.Errorf("content %q has main language %q, not %q", slug, r.item.MainLanguage, r.cfg.Item.MainLanguage))
		}
	case apperrors.Is(err, apperrors.KindNotFound):
		r.createItem = true
		r.item = r.cfg.Item
		if err := r.item.Validate(); err != nil {
			return apperrors.Validation(fmt.Errorf("new content item: %w", err))
		}
	default:
		return fmt.Errorf("failed to look up content %q: %w", slug, err)
	}

	r.mainLang = language.Canonical(r.item.MainLanguage)
	if r.mainLang == "" {
		return apperrors.Validation(fmt.Errorf("unknown main language %q", r.item.MainLanguage))
	}
	r.item.MainLanguage = r.mainLang

	if !r.createItem {
		episodes, err := r.backend.ListEpisodes(ctx, slug)
		if err != nil {
			return fmt.Errorf("failed to list episodes: %w", err)
		}
		for _, ep := range episodes {
			if ep.Number == r.episode.Number {
				return apperrors.New(apperrors.KindConflict,
					fmt.Sprintf("Episode %d already exists. Delete it first.", ep.Number),
					fmt.Errorf("episode %d of %s exists", ep.Number, slug))
			}
		}
	}

	sheet, err := csvimport.ParseFile(r.cfg.CSVPath)
	if err != nil {
		return apperrors.Validation(fmt.Errorf("failed to read CSV: %w", err))
	}
	v := csvimport.Validate(sheet, r.mainLang, csvimport.Options{ConfirmedAmbiguous: r.cfg.ConfirmedAmbiguous})
	for _, issue := range v.Report.Warnings() {
		r.warn(issue.String())
	}
	if !v.Report.OK() {
		return v.Report.Err()
	}
	r.rows = v.Rows
	logger.Info("Validated CSV", "rows", len(r.rows), "languages", v.Header.Languages(), "path", r.cfg.CSVPath)

	for _, p := range []string{r.cfg.CoverPath, r.cfg.LandscapeCoverPath, r.cfg.EpisodeCoverPath, r.cfg.FullAudioPath, r.cfg.FullVideoPath} {
		if p == "" {
			continue
		}
		if _, err := media.Stat(p); err != nil {
			return apperrors.Validation(err)
		}
	}

	imageDir, audioDir := r.cfg.ImageDir, r.cfg.AudioDir
	csvDir := filepath.Dir(r.cfg.CSVPath)
	for _, row := range r.rows {
		if imageDir == "" && row.ImageFile != "" {
			imageDir = csvDir
		}
		if audioDir == "" && row.AudioFile != "" {
			audioDir = csvDir
		}
	}
	images, err := media.ScanDir(imageDir, media.KindImage)
	if err != nil {
		return apperrors.Validation(err)
	}
	audio, err := media.ScanDir(audioDir, media.KindAudio)
	if err != nil {
		return apperrors.Validation(err)
	}
	r.plan = media.Match(r.rows, images, audio)
	for _, w := range r.plan.Warnings {
		r.warn(w)
	}

	if len(r.res.Warnings) > 0 && r.cfg.OnConfirmWarnings != nil && !r.cfg.OnConfirmWarnings(r.res.Warnings) {
		return ErrAborted
	}
	return nil
}

func (r *run) upload(ctx context.Context, key, path string) error {
	if err := r.store.UploadFile(ctx, key, path, media.ContentType(path)); err != nil {
		return fmt.Errorf("failed to upload %s: %w", filepath.Base(path), err)
	}
	r.res.Uploaded++
	return nil
}

func (r *run) uploadCovers(ctx context.Context) error {
	if r.cfg.CoverPath == "" && r.cfg.LandscapeCoverPath == "" && r.cfg.EpisodeCoverPath == "" {
		return errSkipped
	}
	slug := r.item.Slug
	if p := r.cfg.CoverPath; p != "" {
		key := storage.ItemCoverKey(slug, filepath.Ext(p))
		if err := r.upload(ctx, key, p); err != nil {
			return err
		}
		r.item.CoverURL = r.store.URL(key)
		r.itemChanged = true
	}
	if p := r.cfg.LandscapeCoverPath; p != "" {
		key := storage.ItemLandscapeCoverKey(slug, filepath.Ext(p))
		if err := r.upload(ctx, key, p); err != nil {
			return err
		}
		r.item.CoverLandscapeURL = r.store.URL(key)
		r.itemChanged = true
	}
	if p := r.cfg.EpisodeCoverPath; p != "" {
		key := storage.EpisodeCoverKey(slug, r.episode.Number, filepath.Ext(p))
		if err := r.upload(ctx, key, p); err != nil {
			return err
		}
		r.episode.CoverKey = key
	}
	return nil
}

type cardUpload struct {
	index int
	key   string
	file  media.File
	audio bool
}

func (r *run) uploadCardMedia(ctx context.Context) error {
	var jobs []cardUpload
	for _, u := range r.plan.Images {
		key := storage.CardImageKey(r.item.Slug, r.episode.Number, u.Index, filepath.Ext(u.File.Path))
		jobs = append(jobs, cardUpload{index: u.Index, key: key, file: u.File})
	}
	for _, u := range r.plan.Audio {
		key := storage.CardAudioKey(r.item.Slug, r.episode.Number, u.Index, filepath.Ext(u.File.Path))
		jobs = append(jobs, cardUpload{index: u.Index, key: key, file: u.File, audio: true})
	}
	if len(jobs) == 0 {
		return errSkipped
	}

	logger.Info("Uploading card media", "files", len(jobs), "concurrency", r.cfg.UploadConcurrency)
	res := batch.Run(ctx, len(jobs), r.cfg.UploadConcurrency, func(ctx context.Context, i int) error {
		j := jobs[i]
		return r.store.UploadFile(ctx, j.key, j.file.Path, j.file.ContentType)
	}, r.cfg.OnUploadProgress)
	r.res.Uploaded += res.Succeeded

	if len(res.Errors) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		first := res.Errors[0]
		return fmt.Errorf("%d of %d card media uploads failed (first: %s): %w",
			len(res.Errors), res.Total, filepath.Base(jobs[first.Item].file.Path), first.Err)
	}
	for _, j := range jobs {
		if j.audio {
			r.audioKeys[j.index] = j.key
		} else {
			r.imageKeys[j.index] = j.key
		}
	}
	return nil
}

func (r *run) buildCards() []model.Card {
	cards := make([]model.Card, 0, len(r.rows))
	for _, row := range r.rows {
		card := model.Card{
			ContentSlug:   r.item.Slug,
			ContentTitle:  r.item.Title,
			ContentType:   r.item.Type,
			EpisodeNumber: r.episode.Number,
			Index:         row.Index,
			Start:         model.Seconds(row.Start),
			End:           model.Seconds(row.End),
			Subtitles:     row.Subtitles,
			ImageKey:      r.imageKeys[row.Index],
			AudioKey:      r.audioKeys[row.Index],
			Level:         row.Level,
			Length:        uniseg.GraphemeClusterCount(row.Subtitles[r.mainLang]),
		}
		if row.HasDifficulty {
			card.Difficulty = row.Difficulty
		}
		cards = append(cards, card)
	}
	return cards
}

func (r *run) importCards(ctx context.Context) error {
	req := api.ImportRequest{
		Item:       r.item,
		CreateItem: r.createItem,
		Episode:    r.episode,
		Cards:      r.buildCards(),
	}
	out, err := r.backend.ImportCSV(ctx, req)
	if err != nil {
		return fmt.Errorf("import failed: %w", err)
	}
	r.imported = true
	r.itemCreated = out.ItemCreated
	if out.EpisodeNumber > 0 {
		r.episode.Number = out.EpisodeNumber
	}
	r.res.ItemCreated = out.ItemCreated
	r.res.EpisodeNumber = r.episode.Number
	r.res.CardsImported = out.CardsImported
	logger.Info("Imported cards", "slug", r.item.Slug, "episode", r.episode.Number, "cards", out.CardsImported, "item_created", out.ItemCreated)

	if !r.createItem && r.itemChanged {
		if _, err := r.backend.UpdateItem(ctx, r.item); err != nil {
			return fmt.Errorf("failed to update content covers: %w", err)
		}
	}
	return nil
}

func (r *run) uploadEpisodeMedia(ctx context.Context) error {
	if r.cfg.FullAudioPath == "" && r.cfg.FullVideoPath == "" {
		return errSkipped
	}
	if p := r.cfg.FullAudioPath; p != "" {
		key := storage.EpisodeAudioKey(r.item.Slug, r.episode.Number, filepath.Ext(p))
		if err := r.upload(ctx, key, p); err != nil {
			return err
		}
		r.episode.FullAudioKey = key
	}
	if p := r.cfg.FullVideoPath; p != "" {
		key := storage.EpisodeVideoKey(r.item.Slug, r.episode.Number, filepath.Ext(p))
		if err := r.upload(ctx, key, p); err != nil {
			return err
		}
		r.episode.FullVideoKey = key
	}
	if err := r.backend.UpdateEpisode(ctx, r.episode); err != nil {
		return fmt.Errorf("failed to attach episode media: %w", err)
	}
	return nil
}

func (r *run) recalculate(ctx context.Context) error {
	stats, err := r.backend.RecalculateStats(ctx, r.item.Slug)
	if err != nil {
		return fmt.Errorf("failed to recalculate stats: %w", err)
	}
	r.res.Stats = stats
	return nil
}
