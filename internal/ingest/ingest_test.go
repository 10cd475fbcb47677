package ingest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/oukeidos/subdeck/internal/api"
	"github.com/oukeidos/subdeck/internal/apperrors"
	"github.com/oukeidos/subdeck/internal/batch"
	"github.com/oukeidos/subdeck/internal/model"
	"github.com/oukeidos/subdeck/internal/recovery"
)

type fakeBackend struct {
	mu       sync.Mutex
	item     *model.ContentItem
	episodes []model.Episode

	importReq   *api.ImportRequest
	importErr   error
	commitOnErr bool
	statsErr    error
	episodeErr  error
	deleteErr   error

	// emptyUnknown makes ListEpisodes answer [] instead of 404 for a missing item.
	emptyUnknown bool

	deletedItems    []string
	deletedEpisodes []int
	updatedItems    []model.ContentItem
	updatedEpisodes []model.Episode
}

func (f *fakeBackend) GetItem(ctx context.Context, slug string) (*model.ContentItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.item == nil || f.item.Slug != slug {
		return nil, apperrors.NotFound(errors.New("404"))
	}
	item := *f.item
	return &item, nil
}

func (f *fakeBackend) UpdateItem(ctx context.Context, item model.ContentItem) (*model.ContentItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updatedItems = append(f.updatedItems, item)
	return &item, nil
}

func (f *fakeBackend) ListEpisodes(ctx context.Context, slug string) ([]model.Episode, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.item == nil {
		if f.emptyUnknown {
			return []model.Episode{}, nil
		}
		return nil, apperrors.NotFound(errors.New("404"))
	}
	return append([]model.Episode(nil), f.episodes...), nil
}

func (f *fakeBackend) commit(req api.ImportRequest) {
	if req.CreateItem {
		item := req.Item
		f.item = &item
	}
	f.episodes = append(f.episodes, req.Episode)
}

func (f *fakeBackend) ImportCSV(ctx context.Context, req api.ImportRequest) (*api.ImportResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.importReq = &req
	if f.importErr != nil {
		if f.commitOnErr {
			f.commit(req)
		}
		return nil, f.importErr
	}
	f.commit(req)
	return &api.ImportResult{
		ItemCreated:    req.CreateItem,
		EpisodeCreated: true,
		EpisodeNumber:  req.Episode.Number,
		CardsImported:  len(req.Cards),
	}, nil
}

func (f *fakeBackend) UpdateEpisode(ctx context.Context, ep model.Episode) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updatedEpisodes = append(f.updatedEpisodes, ep)
	return f.episodeErr
}

func (f *fakeBackend) RecalculateStats(ctx context.Context, slug string) (*model.Stats, error) {
	if f.statsErr != nil {
		return nil, f.statsErr
	}
	return &model.Stats{ContentSlug: slug, Episodes: 1, Cards: 2}, nil
}

func (f *fakeBackend) DeleteItem(ctx context.Context, slug string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletedItems = append(f.deletedItems, slug)
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.item = nil
	return nil
}

func (f *fakeBackend) DeleteEpisode(ctx context.Context, slug string, number int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletedEpisodes = append(f.deletedEpisodes, number)
	return f.deleteErr
}

type fakeStore struct {
	mu     sync.Mutex
	keys   []string
	failOn string
}

func (s *fakeStore) UploadFile(ctx context.Context, key, filePath, contentType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failOn != "" && strings.Contains(key, s.failOn) {
		return apperrors.Transient(errors.New("503 from storage"))
	}
	s.keys = append(s.keys, key)
	return nil
}

func (s *fakeStore) URL(key string) string { return "https://cdn.test/" + key }

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

// fixture writes a two-card CSV and one image per card.
func fixture(t *testing.T) Config {
	t.Helper()
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "cards.csv")
	writeFile(t, csvPath, "start,end,ja,en\n0,1.5,猫です,It's a cat\n1.5,3,犬,Dog\n")
	writeFile(t, filepath.Join(dir, "images", "card_0.jpg"), "img0")
	writeFile(t, filepath.Join(dir, "images", "card_1.jpg"), "img1")
	return Config{
		CSVPath:       csvPath,
		Item:          model.ContentItem{Slug: "neko", Title: "Neko", Type: model.TypeMovie, MainLanguage: "Japanese"},
		EpisodeNumber: 1,
		ImageDir:      filepath.Join(dir, "images"),
		JournalDir:    filepath.Join(dir, "journals"),
	}
}

func TestRun_SuccessCreatesItem(t *testing.T) {
	cfg := fixture(t)
	var events []string
	cfg.OnStage = func(e StageEvent) { events = append(events, string(e.Stage)+":"+string(e.State)) }
	var progress []batch.Progress
	cfg.OnUploadProgress = func(p batch.Progress) { progress = append(progress, p) }

	backend := &fakeBackend{}
	store := &fakeStore{}
	res, err := Run(context.Background(), cfg, backend, store)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Status != StatusSuccess || !res.ItemCreated || res.CardsImported != 2 || res.Uploaded != 2 {
		t.Fatalf("result = %+v", res)
	}
	if res.Stats == nil || res.Stats.Cards != 2 {
		t.Fatalf("stats = %+v", res.Stats)
	}
	if len(progress) != 2 || progress[1].Done != 2 {
		t.Fatalf("progress = %+v", progress)
	}

	req := backend.importReq
	if req == nil || !req.CreateItem || req.Item.MainLanguage != "ja" || len(req.Cards) != 2 {
		t.Fatalf("import request = %+v", req)
	}
	first := req.Cards[0]
	if first.ImageKey != "items/neko/episodes/001/image/neko_001_0000.jpg" || first.Length != 3 || first.Subtitles["en"] != "It's a cat" {
		t.Fatalf("first card = %+v", first)
	}

	want := []string{
		"validate:started", "validate:done",
		"covers:started", "covers:skipped",
		"card_media:started", "card_media:done",
		"import:started", "import:done",
		"episode_media:started", "episode_media:skipped",
		"stats:started", "stats:done",
	}
	if strings.Join(events, " ") != strings.Join(want, " ") {
		t.Fatalf("events = %v", events)
	}
}

func TestRun_FailureAfterImportDeletesCreatedItem(t *testing.T) {
	cfg := fixture(t)
	backend := &fakeBackend{statsErr: apperrors.Transient(errors.New("502"))}
	res, err := Run(context.Background(), cfg, backend, &fakeStore{})
	if err == nil {
		t.Fatal("expected error")
	}
	if res.Status != StatusRolledBack || !res.RolledBack || res.FailedStage != StageStats {
		t.Fatalf("result = %+v", res)
	}
	if len(backend.deletedItems) != 1 || backend.deletedItems[0] != "neko" || len(backend.deletedEpisodes) != 0 {
		t.Fatalf("deleted items=%v episodes=%v", backend.deletedItems, backend.deletedEpisodes)
	}
}

func TestRun_FailureOnExistingItemDeletesOnlyEpisode(t *testing.T) {
	cfg := fixture(t)
	cfg.EpisodeNumber = 2
	cfg.FullAudioPath = filepath.Join(t.TempDir(), "ep2.mp3")
	writeFile(t, cfg.FullAudioPath, "mp3")

	existing := model.ContentItem{Slug: "neko", Title: "Neko", Type: model.TypeSeries, MainLanguage: "ja"}
	backend := &fakeBackend{item: &existing, episodes: []model.Episode{{ContentSlug: "neko", Number: 1}}}
	store := &fakeStore{failOn: "full_audio"}

	res, err := Run(context.Background(), cfg, backend, store)
	if err == nil || !apperrors.Is(err, apperrors.KindTransient) {
		t.Fatalf("err = %v", err)
	}
	if res.Status != StatusRolledBack || res.ItemCreated || res.FailedStage != StageEpisodeMedia {
		t.Fatalf("result = %+v", res)
	}
	if len(backend.deletedItems) != 0 || len(backend.deletedEpisodes) != 1 || backend.deletedEpisodes[0] != 2 {
		t.Fatalf("deleted items=%v episodes=%v", backend.deletedItems, backend.deletedEpisodes)
	}
	if backend.importReq.CreateItem {
		t.Fatal("existing item must not be recreated")
	}
}

func TestRun_RollbackFailureWritesJournal(t *testing.T) {
	cfg := fixture(t)
	cfg.APIBaseURL = "https://api.test"
	backend := &fakeBackend{
		statsErr:  apperrors.Transient(errors.New("502")),
		deleteErr: apperrors.Transient(errors.New("still down")),
	}
	res, err := Run(context.Background(), cfg, backend, &fakeStore{})
	if err == nil || !strings.Contains(err.Error(), "stats") {
		t.Fatalf("original error should be returned, got %v", err)
	}
	if res.Status != StatusFailure || res.RolledBack || res.JournalPath == "" {
		t.Fatalf("result = %+v", res)
	}
	j, err := recovery.Load(res.JournalPath)
	if err != nil {
		t.Fatalf("Load journal: %v", err)
	}
	if j.Action != recovery.ActionDeleteItem || j.ContentSlug != "neko" || j.FailedStage != "stats" || j.APIBaseURL != "https://api.test" {
		t.Fatalf("journal = %+v", j)
	}
	if !strings.HasPrefix(j.CSVHash, "sha256:") || j.RollbackError == "" {
		t.Fatalf("journal = %+v", j)
	}
}

func TestRun_CancelAfterImportRollsBack(t *testing.T) {
	cfg := fixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	cfg.OnStage = func(e StageEvent) {
		if e.Stage == StageImport && e.State == StateDone {
			cancel()
		}
	}
	backend := &fakeBackend{}
	res, err := Run(ctx, cfg, backend, &fakeStore{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if res.Status != StatusRolledBack || len(backend.deletedItems) != 1 {
		t.Fatalf("result = %+v deleted=%v", res, backend.deletedItems)
	}
}

func TestRun_CancelBeforeImportCreatesNothing(t *testing.T) {
	cfg := fixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	cfg.OnStage = func(e StageEvent) {
		if e.Stage == StageValidate && e.State == StateDone {
			cancel()
		}
	}
	backend := &fakeBackend{}
	res, err := Run(ctx, cfg, backend, &fakeStore{})
	if !errors.Is(err, context.Canceled) || res.Status != StatusCanceled {
		t.Fatalf("res=%+v err=%v", res, err)
	}
	if backend.importReq != nil || len(backend.deletedItems) != 0 {
		t.Fatal("nothing should be imported or deleted")
	}
}

func TestRun_InterruptedImportIsProbed(t *testing.T) {
	cfg := fixture(t)
	backend := &fakeBackend{importErr: apperrors.Transient(errors.New("connection reset")), commitOnErr: true}
	res, err := Run(context.Background(), cfg, backend, &fakeStore{})
	if err == nil {
		t.Fatal("expected error")
	}
	if res.Status != StatusRolledBack || len(backend.deletedItems) != 1 {
		t.Fatalf("result = %+v deleted=%v", res, backend.deletedItems)
	}
}

func TestRun_InterruptedImportNotCommitted(t *testing.T) {
	cfg := fixture(t)
	backend := &fakeBackend{importErr: apperrors.Transient(errors.New("connection reset")), emptyUnknown: true}
	res, err := Run(context.Background(), cfg, backend, &fakeStore{})
	if !apperrors.Is(err, apperrors.KindTransient) || res.Status != StatusFailure || res.RolledBack {
		t.Fatalf("res=%+v err=%v", res, err)
	}
	if len(backend.deletedItems)+len(backend.deletedEpisodes) != 0 {
		t.Fatalf("nothing was committed, yet deleted items=%v episodes=%v", backend.deletedItems, backend.deletedEpisodes)
	}
}

func TestRun_RejectedImportIsNotRolledBack(t *testing.T) {
	cfg := fixture(t)
	backend := &fakeBackend{importErr: apperrors.BadRequest(errors.New("422"))}
	res, err := Run(context.Background(), cfg, backend, &fakeStore{})
	if !apperrors.Is(err, apperrors.KindBadRequest) || res.Status != StatusFailure {
		t.Fatalf("res=%+v err=%v", res, err)
	}
	if len(backend.deletedItems)+len(backend.deletedEpisodes) != 0 {
		t.Fatal("rejected import must not trigger rollback")
	}
}

func TestRun_ValidationFailureUploadsNothing(t *testing.T) {
	cfg := fixture(t)
	writeFile(t, cfg.CSVPath, "start,ja\n0,猫\n")
	store := &fakeStore{}
	backend := &fakeBackend{}
	res, err := Run(context.Background(), cfg, backend, store)
	if !apperrors.Is(err, apperrors.KindValidation) || res.Status != StatusFailure || res.FailedStage != StageValidate {
		t.Fatalf("res=%+v err=%v", res, err)
	}
	if len(store.keys) != 0 || backend.importReq != nil {
		t.Fatal("validation failure must not upload or import")
	}
}

func TestRun_ExistingEpisodeConflicts(t *testing.T) {
	cfg := fixture(t)
	existing := model.ContentItem{Slug: "neko", Title: "Neko", Type: model.TypeSeries, MainLanguage: "ja"}
	backend := &fakeBackend{item: &existing, episodes: []model.Episode{{ContentSlug: "neko", Number: 1}}}
	_, err := Run(context.Background(), cfg, backend, &fakeStore{})
	if !apperrors.Is(err, apperrors.KindConflict) {
		t.Fatalf("err = %v, want conflict", err)
	}
}

func TestRun_MainLanguageMismatch(t *testing.T) {
	cfg := fixture(t)
	cfg.Item.MainLanguage = "ko"
	existing := model.ContentItem{Slug: "neko", Title: "Neko", Type: model.TypeMovie, MainLanguage: "ja"}
	_, err := Run(context.Background(), cfg, &fakeBackend{item: &existing}, &fakeStore{})
	if !apperrors.Is(err, apperrors.KindValidation) || !strings.Contains(err.Error(), "main language") {
		t.Fatalf("err = %v", err)
	}
}

func TestRun_CardUploadFailureStopsBeforeImport(t *testing.T) {
	cfg := fixture(t)
	backend := &fakeBackend{}
	store := &fakeStore{failOn: "0001"}
	res, err := Run(context.Background(), cfg, backend, store)
	if err == nil || !strings.Contains(err.Error(), "1 of 2 card media uploads failed") {
		t.Fatalf("err = %v", err)
	}
	if res.Status != StatusFailure || res.Uploaded != 1 || backend.importReq != nil {
		t.Fatalf("res = %+v", res)
	}
}

func TestRun_DeclinedWarningsAbort(t *testing.T) {
	cfg := fixture(t)
	writeFile(t, cfg.CSVPath, "start,end,ja,en\n0,1,猫,\n1,2,犬,Dog\n")
	var seen []string
	cfg.OnConfirmWarnings = func(w []string) bool {
		seen = w
		return false
	}
	store := &fakeStore{}
	res, err := Run(context.Background(), cfg, &fakeBackend{}, store)
	if !errors.Is(err, ErrAborted) || res.Status != StatusCanceled {
		t.Fatalf("res=%+v err=%v", res, err)
	}
	if len(seen) == 0 || len(store.keys) != 0 {
		t.Fatalf("warnings=%v uploads=%v", seen, store.keys)
	}
}

func TestRun_CoversOnExistingItemUpdateItem(t *testing.T) {
	cfg := fixture(t)
	cfg.EpisodeNumber = 3
	cfg.CoverPath = filepath.Join(t.TempDir(), "poster.PNG")
	writeFile(t, cfg.CoverPath, "png")
	existing := model.ContentItem{Slug: "neko", Title: "Neko", Type: model.TypeSeries, MainLanguage: "ja"}
	backend := &fakeBackend{item: &existing}

	res, err := Run(context.Background(), cfg, backend, &fakeStore{})
	if err != nil || res.Status != StatusSuccess {
		t.Fatalf("res=%+v err=%v", res, err)
	}
	if len(backend.updatedItems) != 1 || backend.updatedItems[0].CoverURL != "https://cdn.test/items/neko/cover.png" {
		t.Fatalf("updated items = %+v", backend.updatedItems)
	}
}

func TestConfigNormalize(t *testing.T) {
	cfg, notes := Config{UploadConcurrency: 99}.Normalize()
	if cfg.UploadConcurrency != 16 || len(notes) != 1 || cfg.RollbackTimeout != DefaultRollbackTimeout {
		t.Fatalf("cfg=%+v notes=%v", cfg, notes)
	}
	cfg, notes = Config{}.Normalize()
	if cfg.UploadConcurrency != 6 || len(notes) != 0 {
		t.Fatalf("cfg=%+v notes=%v", cfg, notes)
	}
}
