package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/oukeidos/subdeck/internal/csvimport"
	"github.com/oukeidos/subdeck/internal/language"
	"github.com/oukeidos/subdeck/internal/logger"
	"github.com/oukeidos/subdeck/internal/subtitle"
	"github.com/spf13/cobra"
)

func newSubtitlesCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "subtitles",
		Aliases: []string{"subs"},
		Short:   "Build card CSVs from subtitle files and back",
	}
	cmd.AddCommand(newSubtitlesBuildCmd(a), newSubtitlesExportCmd())
	cmd.SetUsageTemplate(subcommandUsageTemplate)
	return cmd
}

type buildOptions struct {
	mainLanguage    string
	tracks          []string
	output          string
	keepAnnotations bool
	minOverlap      time.Duration
	force           bool
}

func newSubtitlesBuildCmd(a *app) *cobra.Command {
	opts := buildOptions{}
	cmd := &cobra.Command{
		Use:   "build <main-subtitle>",
		Short: "Merge a main-language subtitle with translations into a card CSV",
		Long: `Merge a main-language subtitle file (SRT, WebVTT, SSA/ASS, TTML) with
subtitle files in other languages. Each main cue becomes one card; cues of
the other files attach to the main cue they overlap most.

Tracks are given as lang=path. A bare path works when the file name ends
in .<lang>.<ext>, for example episode1.en.srt.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSubtitlesBuild(cmd, a, args[0], &opts)
		},
	}
	f := cmd.Flags()
	f.StringVarP(&opts.mainLanguage, "main-language", "m", "", "Language of the main subtitle (default: file name, then prefs)")
	f.StringArrayVarP(&opts.tracks, "track", "t", nil, "Subtitle in another language as lang=path (repeatable)")
	f.StringVarP(&opts.output, "output", "o", "", "Output CSV (default: <main>_cards.csv)")
	f.BoolVar(&opts.keepAnnotations, "keep-annotations", false, "Keep bracketed sound annotations like [music]")
	f.DurationVar(&opts.minOverlap, "min-overlap", subtitle.DefaultMinOverlap, "Shortest overlap that attaches a cue to a card")
	f.BoolVarP(&opts.force, "force", "f", false, "Overwrite the output file")
	cmd.SetUsageTemplate(subcommandUsageTemplate)
	return cmd
}

func runSubtitlesBuild(cmd *cobra.Command, a *app, mainPath string, opts *buildOptions) error {
	mainLang := opts.mainLanguage
	if mainLang == "" {
		mainLang = languageFromFileName(mainPath)
	}
	mainLang, err := a.mainLanguage(cmd.Context(), mainLang)
	if err != nil {
		return err
	}
	strip := !opts.keepAnnotations
	main, err := subtitle.LoadTrack(mainPath, mainLang, strip)
	if err != nil {
		return err
	}

	langs := []string{main.Lang}
	var others []subtitle.Track
	for _, spec := range opts.tracks {
		lang, path, err := parseTrackSpec(spec)
		if err != nil {
			return err
		}
		t, err := subtitle.LoadTrack(path, lang, strip)
		if err != nil {
			return err
		}
		for _, l := range langs {
			if l == t.Lang {
				return fmt.Errorf("language %s given twice", t.Lang)
			}
		}
		langs = append(langs, t.Lang)
		others = append(others, t)
	}

	rows, warnings := subtitle.Merge(main, others, subtitle.Options{MinOverlap: opts.minOverlap})
	for _, w := range warnings {
		logger.Warn("Merge warning", "detail", w)
	}
	sheet := subtitle.BuildSheet(rows, langs)
	if res := csvimport.Validate(sheet, main.Lang, csvimport.Options{}); !res.Report.OK() {
		return res.Report.Err()
	}

	out := opts.output
	if out == "" {
		if out, err = subtitle.OutputPath(mainPath); err != nil {
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
	if err := sheet.WriteFile(out); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d card(s) in %s to %s\n", len(rows), strings.Join(langs, ", "), out)
	return nil
}

// parseTrackSpec splits "lang=path", or reads the language from a
// "name.<lang>.<ext>" file name.
func parseTrackSpec(spec string) (string, string, error) {
	if lang, path, ok := strings.Cut(spec, "="); ok && language.Canonical(lang) != "" {
		return lang, path, nil
	}
	if lang := languageFromFileName(spec); lang != "" {
		return lang, spec, nil
	}
	return "", "", fmt.Errorf("cannot tell the language of %q; use lang=path", spec)
}

func languageFromFileName(path string) string {
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	ext := filepath.Ext(base)
	if ext == "" {
		return ""
	}
	return language.Canonical(strings.TrimPrefix(ext, "."))
}

func newSubtitlesExportCmd() *cobra.Command {
	var (
		lang   string
		output string
		force  bool
	)
	cmd := &cobra.Command{
		Use:   "export <cards.csv>",
		Short: "Write one language column of a card CSV as a subtitle file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			code := language.Canonical(lang)
			if code == "" {
				return fmt.Errorf("unsupported language: %q", lang)
			}
			sheet, err := csvimport.ParseFile(args[0])
			if err != nil {
				return err
			}
			cues, err := subtitle.ExtractTrack(sheet, code)
			if err != nil {
				return err
			}
			out := output
			if out == "" {
				out = strings.TrimSuffix(args[0], filepath.Ext(args[0])) + "." + code + ".srt"
			}
			if _, err := os.Stat(out); err == nil {
				ok, err := newConfirmer().ConfirmOverwrite(out, force)
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("output file %s exists", out)
				}
			}
			if err := subtitle.Save(out, cues); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d cue(s) to %s\n", len(cues), out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&lang, "lang", "l", "", "Language column to export (required)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output subtitle file; the extension picks the format (default: <csv>.<lang>.srt)")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite the output file")
	_ = cmd.MarkFlagRequired("lang")
	cmd.SetUsageTemplate(subcommandUsageTemplate)
	return cmd
}
