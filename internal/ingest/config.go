package ingest

import (
	"fmt"
	"time"

	"github.com/oukeidos/subdeck/internal/batch"
	"github.com/oukeidos/subdeck/internal/config"
	"github.com/oukeidos/subdeck/internal/model"
)

// Config holds everything one ingestion run needs.
type Config struct {
	// Input
	CSVPath            string
	Item               model.ContentItem
	EpisodeNumber      int
	EpisodeTitle       string
	EpisodeDescription string
	// ConfirmedAmbiguous lists headers the user confirmed as language columns.
	ConfirmedAmbiguous []string

	// Media, all optional. Card media directories default to the CSV's
	// directory when the CSV names files in its image/audio columns.
	CoverPath          string
	LandscapeCoverPath string
	EpisodeCoverPath   string
	ImageDir           string
	AudioDir           string
	FullAudioPath      string
	FullVideoPath      string

	// Processing
	UploadConcurrency int
	RollbackTimeout   time.Duration
	JournalDir        string
	APIBaseURL        string // recorded in rollback journals

	// Callbacks
	// OnStage is called when a stage starts, finishes, is skipped or fails.
	OnStage func(StageEvent)

	// OnUploadProgress is called after every card media upload settles.
	OnUploadProgress func(batch.Progress)

	// OnConfirmWarnings is called once validation produced warnings.
	// Returning false stops the run before anything is uploaded.
	// If nil, warnings never stop the run.
	OnConfirmWarnings func(warnings []string) bool
}

const (
	MinUploadConcurrency   = 1
	DefaultRollbackTimeout = 2 * time.Minute
)

// Normalize applies safe bounds to config values and returns any adjustments.
func (c Config) Normalize() (Config, []string) {
	var notes []string
	if c.UploadConcurrency == 0 {
		c.UploadConcurrency = config.DefaultUploadConcurrency
	}
	if c.UploadConcurrency < MinUploadConcurrency {
		notes = append(notes, fmt.Sprintf("upload concurrency raised from %d to %d", c.UploadConcurrency, MinUploadConcurrency))
		c.UploadConcurrency = MinUploadConcurrency
	}
	if c.UploadConcurrency > config.MaxUploadConcurrency {
		notes = append(notes, fmt.Sprintf("upload concurrency clamped from %d to %d (max %d)", c.UploadConcurrency, config.MaxUploadConcurrency, config.MaxUploadConcurrency))
		c.UploadConcurrency = config.MaxUploadConcurrency
	}
	if c.RollbackTimeout <= 0 {
		c.RollbackTimeout = DefaultRollbackTimeout
	}
	return c, notes
}

// Validate checks the parts of the configuration that do not need the backend.
func (c Config) Validate() error {
	if c.CSVPath == "" {
		return fmt.Errorf("CSV path is required")
	}
	if !model.ValidSlug(c.Item.Slug) {
		return fmt.Errorf("invalid content slug %q", c.Item.Slug)
	}
	if c.EpisodeNumber < 1 {
		return fmt.Errorf("episode number must be 1 or greater, got %d", c.EpisodeNumber)
	}
	if c.UploadConcurrency <= 0 {
		return fmt.Errorf("upload concurrency must be greater than 0, got %d", c.UploadConcurrency)
	}
	return nil
}
