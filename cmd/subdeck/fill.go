package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/oukeidos/subdeck/internal/auth"
	"github.com/oukeidos/subdeck/internal/cleanup"
	"github.com/oukeidos/subdeck/internal/csvimport"
	"github.com/oukeidos/subdeck/internal/files"
	"github.com/oukeidos/subdeck/internal/logger"
	"github.com/oukeidos/subdeck/internal/metadata"
	"github.com/oukeidos/subdeck/internal/translate"
	"github.com/spf13/cobra"
)

var newTranslateModel = func(ctx context.Context, apiKey, modelName string) (translate.Model, func() error, error) {
	c, err := translate.NewClient(ctx, apiKey, modelName)
	if err != nil {
		return nil, nil, err
	}
	return c, c.Close, nil
}

type fillOptions struct {
	mainLanguage string
	langs        []string
	output       string
	model        string
	chunkSize    int
	contextSize  int
	concurrency  int
	force        bool
}

func newFillCmd(a *app) *cobra.Command {
	opts := fillOptions{}
	cmd := &cobra.Command{
		Use:   "fill <cards.csv>",
		Short: "Translate empty subtitle cells of a card CSV with Gemini",
		Long: fmt.Sprintf(`Fill empty subtitle cells by translating the main-language line with
Gemini. Without --lang every subtitle column is filled; a language given with
--lang that has no column gets one.

The Gemini API key is read from the keychain ('subdeck env setup --service
gemini'), or from %s with --allow-env.

Known models: %s`, auth.ServiceGemini.EnvVar(), strings.Join(metadata.GeminiModelIDs(), ", ")),
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFill(cmd, a, args[0], &opts)
		},
	}
	f := cmd.Flags()
	f.StringVarP(&opts.mainLanguage, "main-language", "m", "", "Main language (default from prefs)")
	f.StringSliceVarP(&opts.langs, "lang", "l", nil, "Languages to fill (default: every subtitle column)")
	f.StringVarP(&opts.output, "output", "o", "", "Output CSV (default: <csv>_filled.csv)")
	f.StringVar(&opts.model, "model", "", "Gemini model (default from config)")
	f.IntVar(&opts.chunkSize, "chunk-size", translate.DefaultChunkSize, "Lines per request")
	f.IntVar(&opts.contextSize, "context-size", translate.DefaultContextSize, "Context lines before and after each chunk")
	f.IntVarP(&opts.concurrency, "concurrency", "c", translate.DefaultConcurrency, fmt.Sprintf("Parallel requests (max %d)", translate.MaxConcurrency))
	f.BoolVarP(&opts.force, "force", "f", false, "Overwrite the output file")
	cmd.SetUsageTemplate(subcommandUsageTemplate)
	return cmd
}

func runFill(cmd *cobra.Command, a *app, csvPath string, opts *fillOptions) error {
	if opts.chunkSize <= 0 || opts.contextSize < 0 || opts.concurrency <= 0 {
		return fmt.Errorf("chunk size and concurrency must be greater than 0, context size must not be negative")
	}
	if opts.concurrency > translate.MaxConcurrency {
		logger.Warn("Concurrency clamped", "requested", opts.concurrency, "max", translate.MaxConcurrency)
		opts.concurrency = translate.MaxConcurrency
	}
	mainLang, err := a.mainLanguage(cmd.Context(), opts.mainLanguage)
	if err != nil {
		return err
	}
	sheet, err := csvimport.ParseFile(csvPath)
	if err != nil {
		return err
	}

	out := opts.output
	if out == "" {
		if out, err = files.Derived(csvPath, "_filled", ".csv"); err != nil {
			return err
		}
	} else if _, err := os.Stat(out); err == nil {
		ok, err := newConfirmer().ConfirmOverwrite(out, opts.force)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("output file %s exists", out)
		}
	}

	modelName := opts.model
	if modelName == "" {
		modelName = a.cfg.TranslateModel
	}
	if _, known := metadata.GeminiPricing(modelName); !known {
		logger.Warn("Unknown Gemini model; cost estimate uses default pricing", "model", modelName)
	}
	apiKey, err := resolveSecret(auth.ServiceGemini, a.allowEnv, true)
	if err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()

	model, closeModel, err := newTranslateModel(ctx, apiKey, modelName)
	if err != nil {
		return fmt.Errorf("failed to create Gemini client: %w", err)
	}
	cleanup.Register("gemini client", closeModel)

	filler, err := translate.NewFiller(model, translate.Options{
		ChunkSize:   opts.chunkSize,
		ContextSize: opts.contextSize,
		Concurrency: opts.concurrency,
	})
	if err != nil {
		return err
	}

	logger.Info("Filling translations", "file", csvPath, "model", modelName)
	res, fillErr := filler.Fill(ctx, sheet, mainLang, splitList(opts.langs), func(p translate.Progress) {
		switch p.State {
		case translate.StateCompleted:
			logger.Debug("Chunk done", "lang", p.Lang, "chunk", p.ChunkIndex+1, "total", p.TotalChunks)
		case translate.StateInProgress:
			if p.Error != nil {
				logger.Warn("Retrying chunk", "lang", p.Lang, "chunk", p.ChunkIndex+1, "attempt", p.Attempt, "error", p.Error)
			}
		case translate.StateCanceled:
			logger.Debug("Chunk canceled", "lang", p.Lang, "chunk", p.ChunkIndex+1)
		}
	})
	if res == nil {
		return fillErr
	}

	if res.Filled() > 0 || hasAddedColumn(res) {
		if err := sheet.WriteFile(out); err != nil {
			return err
		}
	}

	w := cmd.OutOrStdout()
	for _, l := range res.Languages {
		fmt.Fprintf(w, "%s: filled %d of %d empty cell(s)", l.Lang, l.Filled, l.Missing)
		if l.Failed > 0 {
			fmt.Fprintf(w, ", %d failed", l.Failed)
		}
		if l.Added {
			fmt.Fprint(w, " (new column)")
		}
		fmt.Fprintln(w)
	}
	if res.Filled() > 0 || hasAddedColumn(res) {
		fmt.Fprintf(w, "Wrote %s\n", out)
	}
	u := res.Usage
	if u.TotalTokenCount > 0 {
		est := metadata.EstimateCost(modelName, u.PromptTokenCount, u.CandidatesTokenCount, u.TotalTokenCount)
		fmt.Fprintf(w, "Tokens: %d prompt, %d output, %d reasoning (est. $%.4f)\n",
			u.PromptTokenCount, u.CandidatesTokenCount, est.ReasoningTokens, est.Cost)
	}

	if fillErr != nil {
		return fillErr
	}
	if failed := res.Failed(); failed > 0 {
		return fmt.Errorf("%d cell(s) could not be translated; run fill again on %s to retry them", failed, out)
	}
	return nil
}

func hasAddedColumn(res *translate.FillResult) bool {
	for _, l := range res.Languages {
		if l.Added {
			return true
		}
	}
	return false
}
