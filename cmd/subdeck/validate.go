package main

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/oukeidos/subdeck/internal/csvimport"
	"github.com/oukeidos/subdeck/internal/media"
	"github.com/spf13/cobra"
)

type validateOptions struct {
	mainLanguage string
	confirm      []string
	imageDir     string
	audioDir     string
	asJSON       bool
}

func newValidateCmd(a *app) *cobra.Command {
	opts := validateOptions{}
	cmd := &cobra.Command{
		Use:   "validate <cards.csv>",
		Short: "Check an ingestion CSV without uploading anything",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd, a, args[0], &opts)
		},
	}
	cmd.Flags().StringVarP(&opts.mainLanguage, "main-language", "m", "", "Main (studied) language (default from prefs)")
	cmd.Flags().StringSliceVar(&opts.confirm, "confirm-column", nil, "Treat an ambiguous header (id, no) as a language column")
	cmd.Flags().StringVar(&opts.imageDir, "image-dir", "", "Directory with card images to match")
	cmd.Flags().StringVar(&opts.audioDir, "audio-dir", "", "Directory with card audio to match")
	cmd.Flags().BoolVar(&opts.asJSON, "json", false, "Print the report as JSON")
	cmd.SetUsageTemplate(subcommandUsageTemplate)
	return cmd
}

type validateReport struct {
	File         string   `json:"file"`
	MainLanguage string   `json:"main_language"`
	MainColumn   string   `json:"main_column,omitempty"`
	Languages    []string `json:"languages"`
	Rows         int      `json:"rows"`
	Images       int      `json:"images"`
	Audio        int      `json:"audio"`
	Errors       []string `json:"errors"`
	Warnings     []string `json:"warnings"`
}

func runValidate(cmd *cobra.Command, a *app, path string, opts *validateOptions) error {
	mainLang, err := a.mainLanguage(cmd.Context(), opts.mainLanguage)
	if err != nil {
		return err
	}
	sheet, err := csvimport.ParseFile(path)
	if err != nil {
		return err
	}
	res := csvimport.Validate(sheet, mainLang, csvimport.Options{ConfirmedAmbiguous: opts.confirm})

	rep := validateReport{
		File:         filepath.Base(path),
		MainLanguage: res.Header.MainLanguage,
		Languages:    res.Header.Languages(),
		Rows:         len(res.Rows),
	}
	if res.Header.MainColumn >= 0 {
		rep.MainColumn = res.Header.Columns[res.Header.MainColumn].Header
	}
	for _, is := range res.Report.Errors() {
		rep.Errors = append(rep.Errors, is.String())
	}
	for _, is := range res.Report.Warnings() {
		rep.Warnings = append(rep.Warnings, is.String())
	}

	if res.Report.OK() && (opts.imageDir != "" || opts.audioDir != "") {
		images, err := media.ScanDir(opts.imageDir, media.KindImage)
		if err != nil {
			return err
		}
		audio, err := media.ScanDir(opts.audioDir, media.KindAudio)
		if err != nil {
			return err
		}
		plan := media.Match(res.Rows, images, audio)
		rep.Images, rep.Audio = len(plan.Images), len(plan.Audio)
		for _, w := range plan.Warnings {
			rep.Warnings = append(rep.Warnings, "warning: "+w)
		}
	}

	out := cmd.OutOrStdout()
	if opts.asJSON {
		if err := writeJSON(out, rep); err != nil {
			return err
		}
	} else {
		fmt.Fprintf(out, "File: %s\n", rep.File)
		fmt.Fprintf(out, "Main language: %s", rep.MainLanguage)
		if rep.MainColumn != "" {
			fmt.Fprintf(out, " (column %q)", rep.MainColumn)
		}
		fmt.Fprintln(out)
		fmt.Fprintf(out, "Languages: %s\n", strings.Join(rep.Languages, ", "))
		fmt.Fprintf(out, "Rows: %d\n", rep.Rows)
		if opts.imageDir != "" || opts.audioDir != "" {
			fmt.Fprintf(out, "Matched media: %d image(s), %d audio\n", rep.Images, rep.Audio)
		}
		for _, e := range rep.Errors {
			fmt.Fprintf(out, "  %s\n", e)
		}
		for _, w := range rep.Warnings {
			fmt.Fprintf(out, "  %s\n", w)
		}
	}
	if err := res.Report.Err(); err != nil {
		return err
	}
	if !opts.asJSON {
		fmt.Fprintln(out, "OK")
	}
	return nil
}

// mainLanguage returns flagValue, or the stored preference when it is empty.
func (a *app) mainLanguage(ctx context.Context, flagValue string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	store, err := a.openPrefs()
	if err != nil {
		return "", err
	}
	p, err := store.Load(ctx)
	if err != nil {
		return "", err
	}
	if p.MainLanguage == "" {
		return "", fmt.Errorf("main language is not set: pass --main-language or run 'subdeck prefs set main_language <lang>'")
	}
	return p.MainLanguage, nil
}
