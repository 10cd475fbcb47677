package main

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/oukeidos/subdeck/internal/language"
	"github.com/oukeidos/subdeck/internal/model"
	"github.com/oukeidos/subdeck/internal/search"
	"github.com/spf13/cobra"
)

type searchOptions struct {
	mainLanguage  string
	langs         []string
	content       []string
	types         []string
	levels        []string
	minDifficulty float64
	maxDifficulty float64
	page          int
	pageSize      int
	asJSON        bool
}

func newSearchCmd(a *app) *cobra.Command {
	opts := searchOptions{}
	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Search cards across all content",
		Long: `Search card subtitles across all content. Without a query every card that
passes the filters is listed. Short or operator-only queries, and server
errors, fall back to filtering the card pool locally.`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd, a, strings.Join(args, " "), &opts)
		},
	}
	f := cmd.Flags()
	f.StringVarP(&opts.mainLanguage, "main-language", "m", "", "Main language (default from prefs)")
	f.StringSliceVarP(&opts.langs, "lang", "l", nil, "Subtitle languages to search besides the main one (default from prefs)")
	f.StringSliceVar(&opts.content, "content", nil, "Only these content slugs")
	f.StringSliceVar(&opts.types, "type", nil, "Only these content types (movie, series, book, audio)")
	f.StringSliceVar(&opts.levels, "level", nil, "Only these levels")
	f.Float64Var(&opts.minDifficulty, "min-difficulty", 0, "Lowest difficulty score (0-100)")
	f.Float64Var(&opts.maxDifficulty, "max-difficulty", 0, "Highest difficulty score (0-100)")
	f.IntVarP(&opts.page, "page", "p", 1, "Page number")
	f.IntVar(&opts.pageSize, "page-size", 0, "Cards per page (default from prefs or config)")
	f.BoolVar(&opts.asJSON, "json", false, "Print JSON")
	cmd.SetUsageTemplate(subcommandUsageTemplate)
	return cmd
}

func runSearch(cmd *cobra.Command, a *app, text string, opts *searchOptions) error {
	q := search.Query{
		Text:          text,
		MainLanguage:  opts.mainLanguage,
		Languages:     splitList(opts.langs),
		ContentSlugs:  splitList(opts.content),
		Levels:        splitList(opts.levels),
		MinDifficulty: opts.minDifficulty,
		MaxDifficulty: opts.maxDifficulty,
		Page:          opts.page,
		PageSize:      opts.pageSize,
	}
	for _, t := range splitList(opts.types) {
		ct := model.ContentType(strings.ToLower(t))
		if !ct.Valid() {
			return fmt.Errorf("invalid content type %q (movie, series, book, audio)", t)
		}
		q.ContentTypes = append(q.ContentTypes, ct)
	}
	if opts.minDifficulty < 0 || opts.maxDifficulty > 100 || (opts.maxDifficulty > 0 && opts.minDifficulty > opts.maxDifficulty) {
		return fmt.Errorf("invalid difficulty range %.0f-%.0f", opts.minDifficulty, opts.maxDifficulty)
	}

	if q.MainLanguage == "" || len(q.Languages) == 0 || q.PageSize == 0 {
		store, err := a.openPrefs()
		if err != nil {
			return err
		}
		p, err := store.Load(cmd.Context())
		if err != nil {
			return err
		}
		if q.MainLanguage == "" {
			q.MainLanguage = p.MainLanguage
		}
		if len(q.Languages) == 0 {
			q.Languages = p.SubtitleLanguages
		}
		if q.PageSize == 0 {
			q.PageSize = p.PageSize
		}
	}
	if q.PageSize == 0 {
		q.PageSize = a.cfg.PageSize
	}

	client, err := a.apiClient(false)
	if err != nil {
		return err
	}
	searcher := search.NewSearcher(client, search.NewCardPool(client, a.cfg.SearchCacheTTL), search.Options{})

	ctx, stop := signalContext()
	defer stop()
	res, err := searcher.Search(ctx, q)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if opts.asJSON {
		return writeJSON(out, res)
	}
	printSearchResult(out, res, q)
	return nil
}

func printSearchResult(w io.Writer, res *search.Result, q search.Query) {
	if res.Total == 0 {
		fmt.Fprintln(w, "No cards found.")
		return
	}
	fmt.Fprintf(w, "%d card(s), page %d of %d", res.Total, res.Page, res.Pages)
	if res.Fallback != "" {
		fmt.Fprintf(w, " (local search: %s)", res.Fallback)
	}
	fmt.Fprintln(w)
	for _, g := range res.Groups {
		fmt.Fprintf(w, "  %s (%s): %d\n", g.ContentTitle, g.ContentSlug, g.Count)
	}
	for _, c := range res.Cards {
		fmt.Fprintf(w, "\n[%s ep%d #%d %s]", c.ContentSlug, c.EpisodeNumber, c.Index, formatClock(c.Start))
		if c.Level != "" {
			fmt.Fprintf(w, " %s", c.Level)
		}
		fmt.Fprintln(w)
		for _, lang := range cardLanguages(c, q) {
			fmt.Fprintf(w, "  %s: %s\n", lang, c.Subtitles[lang])
		}
	}
}

// cardLanguages lists the main language first, then the searched languages,
// then whatever else the card carries.
func cardLanguages(c model.Card, q search.Query) []string {
	seen := map[string]bool{}
	var out []string
	add := func(l string) {
		if c := language.Canonical(l); c != "" {
			l = c
		}
		if l == "" || seen[l] || c.Subtitles[l] == "" {
			return
		}
		seen[l] = true
		out = append(out, l)
	}
	add(q.MainLanguage)
	for _, l := range q.Languages {
		add(l)
	}
	rest := make([]string, 0, len(c.Subtitles))
	for l := range c.Subtitles {
		rest = append(rest, l)
	}
	sort.Strings(rest)
	for _, l := range rest {
		add(l)
	}
	return out
}

func formatClock(s model.Seconds) string {
	d := s.Duration()
	total := int(d.Seconds())
	return fmt.Sprintf("%02d:%02d:%02d", total/3600, total/60%60, total%60)
}
