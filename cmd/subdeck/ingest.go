package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/oukeidos/subdeck/internal/ingest"
	"github.com/oukeidos/subdeck/internal/logger"
	"github.com/oukeidos/subdeck/internal/model"
	"github.com/spf13/cobra"
)

type ingestOptions struct {
	slug         string
	title        string
	contentType  string
	mainLanguage string
	description  string
	year         int
	imdb         float64
	categories   []string
	available    bool

	episode            int
	episodeTitle       string
	episodeDescription string

	cover          string
	coverLandscape string
	episodeCover   string
	imageDir       string
	audioDir       string
	fullAudio      string
	fullVideo      string

	concurrency int
	confirm     []string
	yes         bool
	asJSON      bool
}

func newIngestCmd(a *app) *cobra.Command {
	opts := ingestOptions{}
	cmd := &cobra.Command{
		Use:   "ingest <cards.csv>",
		Short: "Upload one episode of cards with its media",
		Long: `Validate a card CSV, upload covers and card media, import the cards as one
episode and recalculate the content's statistics.

A new content item is created when --slug does not exist yet; --title,
--type and --main-language are then required. If a step fails after the
import, the episode (and a newly created item) is deleted again.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngest(cmd, a, args[0], &opts)
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.slug, "slug", "", "Content slug (required)")
	f.StringVar(&opts.title, "title", "", "Content title (new content only)")
	f.StringVar(&opts.contentType, "type", "", "Content type: movie, series, book, audio (new content only)")
	f.StringVarP(&opts.mainLanguage, "main-language", "m", "", "Main (studied) language (default from prefs)")
	f.StringVar(&opts.description, "description", "", "Content description")
	f.IntVar(&opts.year, "year", 0, "Release year")
	f.Float64Var(&opts.imdb, "imdb", 0, "IMDb score (0-10)")
	f.StringSliceVar(&opts.categories, "category", nil, "Category name (repeatable)")
	f.BoolVar(&opts.available, "available", true, "Publish the content immediately")

	f.IntVarP(&opts.episode, "episode", "e", 1, "Episode number")
	f.StringVar(&opts.episodeTitle, "episode-title", "", "Episode title")
	f.StringVar(&opts.episodeDescription, "episode-description", "", "Episode description")

	f.StringVar(&opts.cover, "cover", "", "Portrait cover image")
	f.StringVar(&opts.coverLandscape, "cover-landscape", "", "Landscape cover image")
	f.StringVar(&opts.episodeCover, "episode-cover", "", "Episode cover image")
	f.StringVar(&opts.imageDir, "image-dir", "", "Directory with card images")
	f.StringVar(&opts.audioDir, "audio-dir", "", "Directory with card audio")
	f.StringVar(&opts.fullAudio, "full-audio", "", "Full episode audio")
	f.StringVar(&opts.fullVideo, "full-video", "", "Full episode video")

	f.IntVarP(&opts.concurrency, "concurrency", "c", 0, "Parallel media uploads (default from config)")
	f.StringSliceVar(&opts.confirm, "confirm-column", nil, "Treat an ambiguous header (id, no) as a language column")
	f.BoolVarP(&opts.yes, "yes", "y", false, "Continue past validation warnings without asking")
	f.BoolVar(&opts.asJSON, "json", false, "Print the result as JSON")
	_ = cmd.MarkFlagRequired("slug")
	cmd.SetUsageTemplate(subcommandUsageTemplate)
	return cmd
}

func runIngest(cmd *cobra.Command, a *app, csvPath string, opts *ingestOptions) error {
	mainLang := opts.mainLanguage
	if mainLang == "" && opts.title != "" {
		// Only new content needs a main language up front.
		var err error
		if mainLang, err = a.mainLanguage(cmd.Context(), ""); err != nil {
			return err
		}
	}

	item := model.ContentItem{
		Slug:         opts.slug,
		Title:        opts.title,
		Description:  opts.description,
		Type:         model.ContentType(strings.ToLower(opts.contentType)),
		MainLanguage: mainLang,
		ReleaseYear:  opts.year,
		Available:    opts.available,
		IMDBScore:    opts.imdb,
	}
	for _, name := range splitList(opts.categories) {
		item.Categories = append(item.Categories, model.Category{Name: name})
	}

	concurrency := opts.concurrency
	if !cmd.Flags().Changed("concurrency") {
		concurrency = a.cfg.UploadConcurrency
	}
	cfg, notes := ingest.Config{
		CSVPath:            csvPath,
		Item:               item,
		EpisodeNumber:      opts.episode,
		EpisodeTitle:       opts.episodeTitle,
		EpisodeDescription: opts.episodeDescription,
		ConfirmedAmbiguous: opts.confirm,
		CoverPath:          opts.cover,
		LandscapeCoverPath: opts.coverLandscape,
		EpisodeCoverPath:   opts.episodeCover,
		ImageDir:           opts.imageDir,
		AudioDir:           opts.audioDir,
		FullAudioPath:      opts.fullAudio,
		FullVideoPath:      opts.fullVideo,
		UploadConcurrency:  concurrency,
		JournalDir:         a.cfg.JournalDir,
		APIBaseURL:         a.cfg.APIBaseURL,
	}.Normalize()
	for _, n := range notes {
		logger.Warn("Config adjusted", "note", n)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	backend, err := a.apiClient(true)
	if err != nil {
		return err
	}
	store, err := a.uploader()
	if err != nil {
		return err
	}

	confirmer := newConfirmer()
	cfg.OnConfirmWarnings = func(warnings []string) bool {
		ok, err := confirmer.ConfirmWarnings(warnings, opts.yes)
		if err != nil {
			logger.Error("Cannot confirm warnings", "error", err)
			return false
		}
		return ok
	}
	cfg.OnStage = func(ev ingest.StageEvent) {
		switch ev.State {
		case ingest.StateFailed:
			logger.Error("Stage failed", "stage", ev.Stage, "error", ev.Err)
		case ingest.StateSkipped:
			logger.Debug("Stage skipped", "stage", ev.Stage)
		default:
			logger.Info("Stage "+string(ev.State), "stage", ev.Stage)
		}
	}
	cfg.OnUploadProgress = progressPrinter("Uploading card media")

	ctx, stop := signalContext()
	defer stop()

	res, runErr := ingest.Run(ctx, cfg, backend, store)
	if res != nil {
		out := cmd.OutOrStdout()
		if opts.asJSON {
			if err := writeJSON(out, ingestJSON(res)); err != nil {
				return err
			}
		} else {
			printIngestResult(out, res)
		}
	}
	if errors.Is(runErr, ingest.ErrAborted) {
		return fmt.Errorf("%w; rerun with -y to accept them", runErr)
	}
	return runErr
}

type ingestReport struct {
	Status        ingest.Status `json:"status"`
	ContentSlug   string        `json:"content_slug"`
	EpisodeNumber int           `json:"episode_number"`
	ItemCreated   bool          `json:"item_created"`
	CardsImported int           `json:"cards_imported"`
	Uploaded      int           `json:"uploaded"`
	Warnings      []string      `json:"warnings,omitempty"`
	FailedStage   ingest.Stage  `json:"failed_stage,omitempty"`
	RolledBack    bool          `json:"rolled_back"`
	JournalPath   string        `json:"journal_path,omitempty"`
	Stats         *model.Stats  `json:"stats,omitempty"`
}

func ingestJSON(res *ingest.Result) ingestReport {
	return ingestReport{
		Status:        res.Status,
		ContentSlug:   res.ContentSlug,
		EpisodeNumber: res.EpisodeNumber,
		ItemCreated:   res.ItemCreated,
		CardsImported: res.CardsImported,
		Uploaded:      res.Uploaded,
		Warnings:      res.Warnings,
		FailedStage:   res.FailedStage,
		RolledBack:    res.RolledBack,
		JournalPath:   res.JournalPath,
		Stats:         res.Stats,
	}
}

func printIngestResult(w io.Writer, res *ingest.Result) {
	fmt.Fprintf(w, "Status: %s\n", res.Status)
	fmt.Fprintf(w, "Content: %s, episode %d", res.ContentSlug, res.EpisodeNumber)
	if res.ItemCreated {
		fmt.Fprint(w, " (new)")
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Cards imported: %d\n", res.CardsImported)
	fmt.Fprintf(w, "Objects uploaded: %d\n", res.Uploaded)
	if res.FailedStage != "" {
		fmt.Fprintf(w, "Failed stage: %s\n", res.FailedStage)
	}
	if res.RolledBack {
		fmt.Fprintln(w, "Rolled back: yes")
	}
	if res.JournalPath != "" {
		fmt.Fprintf(w, "Rollback failed. Finish it with: subdeck rollback %s\n", res.JournalPath)
	}
	if res.Stats != nil {
		fmt.Fprintf(w, "Stats: %d episode(s), %d card(s), avg difficulty %.2f\n", res.Stats.Episodes, res.Stats.Cards, res.Stats.AvgDifficulty)
	}
}
