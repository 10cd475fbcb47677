package recovery

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/oukeidos/subdeck/internal/apperrors"
	"github.com/oukeidos/subdeck/internal/files"
	"github.com/oukeidos/subdeck/internal/model"
)

// Action is the cleanup a journal asks for.
type Action string

const (
	// ActionDeleteItem removes the whole content item; the backend cascades.
	ActionDeleteItem Action = "delete_item"
	// ActionDeleteEpisode removes only the episode created by the failed run.
	ActionDeleteEpisode Action = "delete_episode"
)

// Journal records a rollback that could not be completed so it can be
// replayed later with `subdeck rollback`.
type Journal struct {
	JournalVersion int       `json:"journal_version"`
	ID             string    `json:"id"`
	CreatedAt      time.Time `json:"created_at"`
	APIBaseURL     string    `json:"api_base_url"`
	ContentSlug    string    `json:"content_slug"`
	EpisodeNumber  int       `json:"episode_number,omitempty"`
	Action         Action    `json:"action"`
	CSVPath        string    `json:"csv_path,omitempty"`
	CSVHash        string    `json:"csv_hash,omitempty"`
	FailedStage    string    `json:"failed_stage"`
	Reason         string    `json:"reason"`
	RollbackError  string    `json:"rollback_error,omitempty"`
}

const CurrentJournalVersion = 1

// NewJournal fills the identity fields of a journal.
func NewJournal(action Action, slug string, episode int) *Journal {
	id := uuid.NewString()
	if u, err := uuid.NewV7(); err == nil {
		id = u.String()
	}
	return &Journal{
		JournalVersion: CurrentJournalVersion,
		ID:             id,
		CreatedAt:      time.Now().UTC(),
		ContentSlug:    slug,
		EpisodeNumber:  episode,
		Action:         action,
	}
}

// Validate checks that the journal describes a replayable action.
func (j *Journal) Validate() error {
	if j.JournalVersion == 0 {
		j.JournalVersion = CurrentJournalVersion
	}
	if j.JournalVersion != CurrentJournalVersion {
		return fmt.Errorf("unsupported journal_version: %d", j.JournalVersion)
	}
	if !model.ValidSlug(j.ContentSlug) {
		return fmt.Errorf("invalid content_slug: %q", j.ContentSlug)
	}
	switch j.Action {
	case ActionDeleteItem:
	case ActionDeleteEpisode:
		if j.EpisodeNumber <= 0 {
			return fmt.Errorf("invalid episode_number: %d", j.EpisodeNumber)
		}
	default:
		return fmt.Errorf("unknown action: %q", j.Action)
	}
	if j.CSVHash != "" && !strings.HasPrefix(j.CSVHash, "sha256:") {
		return fmt.Errorf("invalid csv_hash: %s", j.CSVHash)
	}
	return nil
}

// Save writes the journal as JSON, never overwriting an existing file, and
// returns the path it was written to.
func Save(path string, j *Journal) (string, error) {
	if j.JournalVersion == 0 {
		j.JournalVersion = CurrentJournalVersion
	}
	data, err := json.MarshalIndent(j, "", "  ")
	if err != nil {
		return "", err
	}
	return files.AtomicWriteExclusive(path, data, 0600)
}

// Load reads a journal from disk.
func Load(path string) (*Journal, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var j Journal
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("invalid rollback journal: %w", err)
	}
	if j.JournalVersion == 0 {
		j.JournalVersion = CurrentJournalVersion
	}
	return &j, nil
}

// GeneratePath creates a unique journal file name in dir:
// 1. <slug>_rollback.json
// 2. <slug>_rollback_0.json ~ _9.json
// 3. <slug>_rollback_<UUIDv7>.json
func GeneratePath(dir, slug string) string {
	if dir == "" {
		dir = "."
	}
	primary := filepath.Join(dir, fmt.Sprintf("%s_rollback.json", slug))
	if _, err := os.Stat(primary); os.IsNotExist(err) {
		return primary
	}
	for i := 0; i <= 9; i++ {
		candidate := filepath.Join(dir, fmt.Sprintf("%s_rollback_%d.json", slug, i))
		if _, err := os.Stat(candidate); os.IsNotExist(err) {
			return candidate
		}
	}
	for i := 0; i < 100; i++ {
		var suffix string
		if u, err := uuid.NewV7(); err != nil {
			suffix = uuid.NewString()[:8]
		} else {
			suffix = u.String()
		}
		candidate := filepath.Join(dir, fmt.Sprintf("%s_rollback_%s.json", slug, suffix))
		if _, err := os.Stat(candidate); os.IsNotExist(err) {
			return candidate
		}
	}
	return filepath.Join(dir, fmt.Sprintf("%s_rollback_final_%d.json", slug, os.Getpid()))
}

// HashFileHex returns a sha256-prefixed hex string of the file contents.
func HashFileHex(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	h := sha256.New()
	if _, err := io.Copy(h, file); err != nil {
		return "", err
	}
	return "sha256:" + hex.EncodeToString(h.Sum(nil)), nil
}

// Deleter is the part of the backend API a rollback needs.
type Deleter interface {
	DeleteItem(ctx context.Context, slug string) error
	DeleteEpisode(ctx context.Context, slug string, number int) error
}

// Replay performs the journaled action. A target that is already gone
// counts as rolled back.
func Replay(ctx context.Context, d Deleter, j *Journal) error {
	if err := j.Validate(); err != nil {
		return err
	}
	var err error
	switch j.Action {
	case ActionDeleteItem:
		err = d.DeleteItem(ctx, j.ContentSlug)
	case ActionDeleteEpisode:
		err = d.DeleteEpisode(ctx, j.ContentSlug, j.EpisodeNumber)
	}
	if apperrors.Is(err, apperrors.KindNotFound) {
		return nil
	}
	return err
}
