package search

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/oukeidos/subdeck/internal/api"
	"github.com/oukeidos/subdeck/internal/apperrors"
	"github.com/oukeidos/subdeck/internal/config"
	"github.com/oukeidos/subdeck/internal/language"
	"github.com/oukeidos/subdeck/internal/logger"
	"github.com/oukeidos/subdeck/internal/model"
	"github.com/sony/gobreaker"
)

// FullText runs server-side search.
type FullText interface {
	SearchCards(ctx context.Context, req api.SearchRequest) (*api.SearchResponse, error)
}

// Source says which path produced a Result.
type Source string

const (
	SourceServer Source = "server"
	SourceLocal  Source = "local"
)

// Group counts the matching cards of one content item.
type Group struct {
	ContentSlug  string            `json:"content_slug"`
	ContentTitle string            `json:"content_title"`
	ContentType  model.ContentType `json:"content_type"`
	Count        int               `json:"count"`
}

type Result struct {
	Cards    []model.Card `json:"cards"`
	Total    int          `json:"total"`
	Page     int          `json:"page"`
	PageSize int          `json:"page_size"`
	Pages    int          `json:"pages"`
	Groups   []Group      `json:"groups"`
	Source   Source       `json:"source"`
	// Fallback is why the local path was used for a non-empty query.
	Fallback string `json:"fallback,omitempty"`
}

// Options tunes a Searcher. Zero values select defaults.
type Options struct {
	// BreakerFailures is the number of consecutive server failures that
	// open the circuit.
	BreakerFailures uint32
	// BreakerCooldown is how long the circuit stays open.
	BreakerCooldown time.Duration
}

// Searcher prefers server full-text search and falls back to filtering
// the cached card pool.
type Searcher struct {
	fts     FullText
	pool    *CardPool
	breaker *gobreaker.CircuitBreaker
}

func NewSearcher(fts FullText, pool *CardPool, opts Options) *Searcher {
	if opts.BreakerFailures == 0 {
		opts.BreakerFailures = 3
	}
	if opts.BreakerCooldown <= 0 {
		opts.BreakerCooldown = 30 * time.Second
	}
	failures := opts.BreakerFailures
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "fts",
		MaxRequests: 1,
		Timeout:     opts.BreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Search circuit state changed", "name", name, "from", from.String(), "to", to.String())
		},
		// Client-side rejections and cancellations do not count as failures.
		IsSuccessful: func(err error) bool {
			return err == nil ||
				errors.Is(err, context.Canceled) ||
				apperrors.Is(err, apperrors.KindBadRequest) ||
				apperrors.Is(err, apperrors.KindValidation) ||
				apperrors.Is(err, apperrors.KindNotFound)
		},
	})
	return &Searcher{fts: fts, pool: pool, breaker: cb}
}

// State reports the server circuit state ("closed", "half-open", "open").
func (s *Searcher) State() string {
	return s.breaker.State().String()
}

func (q Query) normalize() Query {
	q.Text = strings.TrimSpace(q.Text)
	q.MainLanguage = language.Canonical(q.MainLanguage)
	langs := make([]string, 0, len(q.Languages))
	for _, l := range q.Languages {
		if c := language.Canonical(l); c != "" && c != q.MainLanguage {
			langs = append(langs, c)
		}
	}
	q.Languages = langs
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PageSize <= 0 {
		q.PageSize = config.DefaultPageSize
	}
	if q.PageSize > config.MaxPageSize {
		q.PageSize = config.MaxPageSize
	}
	return q
}

// Search runs q. The server is used for searchable text while the circuit
// is closed; every other case, and any server failure, is answered from
// the card pool.
func (s *Searcher) Search(ctx context.Context, q Query) (*Result, error) {
	q = q.normalize()
	reason := FallbackReason(q.Text)
	if q.Text == "" {
		reason = ""
	} else if reason == "" {
		res, err := s.searchServer(ctx, q)
		if err == nil {
			return res, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		switch {
		case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
			reason = "server search unavailable"
		default:
			reason = "server search failed"
			logger.Warn("Server search failed; filtering locally", "error", err)
		}
	}
	res, err := s.searchLocal(ctx, q)
	if err != nil {
		return nil, err
	}
	if q.Text != "" {
		res.Fallback = reason
	}
	return res, nil
}

func (s *Searcher) searchServer(ctx context.Context, q Query) (*Result, error) {
	req := api.SearchRequest{
		Query:         q.Text,
		MainLanguage:  q.MainLanguage,
		Languages:     append([]string{q.MainLanguage}, q.Languages...),
		ContentSlugs:  q.ContentSlugs,
		ContentTypes:  q.ContentTypes,
		Levels:        q.Levels,
		MinDifficulty: q.MinDifficulty,
		MaxDifficulty: q.MaxDifficulty,
		Limit:         q.PageSize,
		Offset:        (q.Page - 1) * q.PageSize,
	}
	v, err := s.breaker.Execute(func() (interface{}, error) {
		return s.fts.SearchCards(ctx, req)
	})
	if err != nil {
		return nil, err
	}
	resp := v.(*api.SearchResponse)
	return &Result{
		Cards:    resp.Cards,
		Total:    resp.Total,
		Page:     q.Page,
		PageSize: q.PageSize,
		Pages:    pageCount(resp.Total, q.PageSize),
		Groups:   GroupByContent(resp.Cards),
		Source:   SourceServer,
	}, nil
}

func (s *Searcher) searchLocal(ctx context.Context, q Query) (*Result, error) {
	cards, err := s.pool.Get(ctx, api.CardQuery{
		MainLanguage: q.MainLanguage,
		ContentSlugs: q.ContentSlugs,
		ContentTypes: q.ContentTypes,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load cards: %w", err)
	}
	matched := Filter(cards, q)
	start, end := pageBounds(len(matched), q.Page, q.PageSize)
	return &Result{
		Cards:    matched[start:end],
		Total:    len(matched),
		Page:     q.Page,
		PageSize: q.PageSize,
		Pages:    pageCount(len(matched), q.PageSize),
		Groups:   GroupByContent(matched),
		Source:   SourceLocal,
	}, nil
}

// Filter returns the cards matching q in a stable order. Text matches are
// case-insensitive substrings of the main or any listed subtitle language.
func Filter(cards []model.Card, q Query) []model.Card {
	slugs := toSet(q.ContentSlugs)
	levels := make(map[string]bool, len(q.Levels))
	for _, l := range q.Levels {
		levels[strings.ToUpper(l)] = true
	}
	types := make(map[model.ContentType]bool, len(q.ContentTypes))
	for _, t := range q.ContentTypes {
		types[t] = true
	}
	needle := fold(q.Text)
	langs := append([]string{q.MainLanguage}, q.Languages...)

	var out []model.Card
	for _, c := range cards {
		if len(slugs) > 0 && !slugs[c.ContentSlug] {
			continue
		}
		if len(types) > 0 && !types[c.ContentType] {
			continue
		}
		if len(levels) > 0 && !levels[strings.ToUpper(c.Level)] {
			continue
		}
		if q.MinDifficulty > 0 && c.Difficulty < q.MinDifficulty {
			continue
		}
		if q.MaxDifficulty > 0 && c.Difficulty > q.MaxDifficulty {
			continue
		}
		if needle != "" && !matchesText(c, langs, needle) {
			continue
		}
		out = append(out, c)
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.ContentSlug != b.ContentSlug {
			return a.ContentSlug < b.ContentSlug
		}
		if a.EpisodeNumber != b.EpisodeNumber {
			return a.EpisodeNumber < b.EpisodeNumber
		}
		return a.Index < b.Index
	})
	return out
}

func matchesText(c model.Card, langs []string, needle string) bool {
	for _, l := range langs {
		if l == "" {
			continue
		}
		if strings.Contains(fold(c.Subtitles[l]), needle) {
			return true
		}
	}
	return false
}

func toSet(vals []string) map[string]bool {
	m := make(map[string]bool, len(vals))
	for _, v := range vals {
		m[v] = true
	}
	return m
}

// GroupByContent counts cards per content item, largest group first and
// ties broken by title.
func GroupByContent(cards []model.Card) []Group {
	idx := make(map[string]int)
	var groups []Group
	for _, c := range cards {
		i, ok := idx[c.ContentSlug]
		if !ok {
			i = len(groups)
			idx[c.ContentSlug] = i
			title := c.ContentTitle
			if title == "" {
				title = c.ContentSlug
			}
			groups = append(groups, Group{ContentSlug: c.ContentSlug, ContentTitle: title, ContentType: c.ContentType})
		}
		groups[i].Count++
	}
	sort.Slice(groups, func(i, j int) bool {
		a, b := groups[i], groups[j]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		if a.ContentTitle != b.ContentTitle {
			return a.ContentTitle < b.ContentTitle
		}
		return a.ContentSlug < b.ContentSlug
	})
	return groups
}

func pageCount(total, size int) int {
	if total <= 0 || size <= 0 {
		return 0
	}
	return (total + size - 1) / size
}

func pageBounds(total, page, size int) (int, int) {
	start := (page - 1) * size
	if start > total {
		start = total
	}
	end := start + size
	if end > total {
		end = total
	}
	return start, end
}
