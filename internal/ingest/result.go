package ingest

import "github.com/oukeidos/subdeck/internal/model"

// Stage names one step of an ingestion run.
type Stage string

const (
	StageValidate     Stage = "validate"
	StageCovers       Stage = "covers"
	StageCardMedia    Stage = "card_media"
	StageImport       Stage = "import"
	StageEpisodeMedia Stage = "episode_media"
	StageStats        Stage = "stats"
	StageRollback     Stage = "rollback"
)

// StageState is reported through Config.OnStage.
type StageState string

const (
	StateStarted StageState = "started"
	StateDone    StageState = "done"
	StateSkipped StageState = "skipped"
	StateFailed  StageState = "failed"
)

type StageEvent struct {
	Stage Stage
	State StageState
	Err   error
}

// Status is the terminal state of a run.
type Status string

const (
	StatusSuccess    Status = "success"
	StatusFailure    Status = "failure"
	StatusCanceled   Status = "canceled"
	StatusRolledBack Status = "rolled_back"
)

// Result describes what a run did, including on failure.
type Result struct {
	Status        Status
	ContentSlug   string
	EpisodeNumber int
	ItemCreated   bool
	CardsImported int
	// Uploaded counts objects stored, covers and episode media included.
	Uploaded    int
	Warnings    []string
	FailedStage Stage
	RolledBack  bool
	// JournalPath is set when rollback failed and a journal was written.
	JournalPath string
	Stats       *model.Stats
}
