package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/oukeidos/subdeck/internal/model"
)

func itemPath(slug string) string {
	return "/items/" + url.PathEscape(slug)
}

func episodePath(slug string, number int) string {
	return fmt.Sprintf("%s/episodes/%d", itemPath(slug), number)
}

// ListItems returns every content item.
func (c *Client) ListItems(ctx context.Context) ([]model.ContentItem, error) {
	var out []model.ContentItem
	if err := c.do(ctx, http.MethodGet, "/items", nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetItem(ctx context.Context, slug string) (*model.ContentItem, error) {
	var out model.ContentItem
	if err := c.do(ctx, http.MethodGet, itemPath(slug), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CreateItem(ctx context.Context, item model.ContentItem) (*model.ContentItem, error) {
	var out model.ContentItem
	if err := c.do(ctx, http.MethodPost, "/items", nil, item, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateItem(ctx context.Context, item model.ContentItem) (*model.ContentItem, error) {
	var out model.ContentItem
	if err := c.do(ctx, http.MethodPut, itemPath(item.Slug), nil, item, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteItem deletes a content item. The backend cascades to its episodes and cards.
func (c *Client) DeleteItem(ctx context.Context, slug string) error {
	return c.do(ctx, http.MethodDelete, itemPath(slug), nil, nil, nil)
}

func (c *Client) ListEpisodes(ctx context.Context, slug string) ([]model.Episode, error) {
	var out []model.Episode
	if err := c.do(ctx, http.MethodGet, itemPath(slug)+"/episodes", nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateEpisode stores episode-level media keys and metadata.
func (c *Client) UpdateEpisode(ctx context.Context, ep model.Episode) error {
	return c.do(ctx, http.MethodPut, episodePath(ep.ContentSlug, ep.Number), nil, ep, nil)
}

// DeleteEpisode deletes one episode and its cards.
func (c *Client) DeleteEpisode(ctx context.Context, slug string, number int) error {
	return c.do(ctx, http.MethodDelete, episodePath(slug, number), nil, nil, nil)
}

func (c *Client) ListCategories(ctx context.Context) ([]model.Category, error) {
	var out []model.Category
	if err := c.do(ctx, http.MethodGet, "/categories", nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CreateCategory(ctx context.Context, name string) (*model.Category, error) {
	var out model.Category
	if err := c.do(ctx, http.MethodPost, "/categories", nil, model.Category{Name: name}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteCategory(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/categories/"+url.PathEscape(id), nil, nil, nil)
}

// ImportRequest creates an episode with its cards, and the content item when CreateItem is set.
type ImportRequest struct {
	Item       model.ContentItem `json:"item"`
	CreateItem bool              `json:"create_item"`
	Episode    model.Episode     `json:"episode"`
	Cards      []model.Card      `json:"cards"`
}

// ImportResult reports what the backend created.
type ImportResult struct {
	ItemCreated    bool `json:"item_created"`
	EpisodeCreated bool `json:"episode_created"`
	EpisodeNumber  int  `json:"episode_number"`
	CardsImported  int  `json:"cards_imported"`
}

// ImportCSV submits parsed CSV rows. It is never retried automatically.
func (c *Client) ImportCSV(ctx context.Context, req ImportRequest) (*ImportResult, error) {
	var out ImportResult
	if err := c.do(ctx, http.MethodPost, "/import", nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CardQuery narrows the bulk card fetch. Zero values mean no filter.
type CardQuery struct {
	MainLanguage string
	ContentSlugs []string
	ContentTypes []model.ContentType
	Limit        int
}

func (q CardQuery) values() url.Values {
	v := url.Values{}
	if q.MainLanguage != "" {
		v.Set("main_language", q.MainLanguage)
	}
	if len(q.ContentSlugs) > 0 {
		v.Set("content", strings.Join(q.ContentSlugs, ","))
	}
	if len(q.ContentTypes) > 0 {
		types := make([]string, len(q.ContentTypes))
		for i, t := range q.ContentTypes {
			types[i] = string(t)
		}
		v.Set("type", strings.Join(types, ","))
	}
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	return v
}

// Key is a stable cache key for the query.
func (q CardQuery) Key() string {
	return q.values().Encode()
}

// FetchCards returns the bulk card pool used for client-side filtering.
func (c *Client) FetchCards(ctx context.Context, q CardQuery) ([]model.Card, error) {
	var out []model.Card
	if err := c.do(ctx, http.MethodGet, "/cards", q.values(), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SearchRequest is a full-text search over card subtitles.
type SearchRequest struct {
	Query        string
	MainLanguage string
	Languages    []string
	ContentSlugs []string
	ContentTypes []model.ContentType
	Levels       []string
	// Difficulty bounds on the 0-100 scale; 0 means unbounded.
	MinDifficulty float64
	MaxDifficulty float64
	Limit         int
	Offset        int
}

type SearchResponse struct {
	Cards []model.Card `json:"cards"`
	Total int          `json:"total"`
}

// SearchCards runs the backend FTS query.
func (c *Client) SearchCards(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	v := CardQuery{MainLanguage: req.MainLanguage, ContentSlugs: req.ContentSlugs, ContentTypes: req.ContentTypes, Limit: req.Limit}.values()
	v.Set("q", req.Query)
	if len(req.Languages) > 0 {
		v.Set("lang", strings.Join(req.Languages, ","))
	}
	if len(req.Levels) > 0 {
		v.Set("level", strings.Join(req.Levels, ","))
	}
	if req.MinDifficulty > 0 {
		v.Set("difficulty_min", strconv.FormatFloat(req.MinDifficulty, 'f', -1, 64))
	}
	if req.MaxDifficulty > 0 {
		v.Set("difficulty_max", strconv.FormatFloat(req.MaxDifficulty, 'f', -1, 64))
	}
	if req.Offset > 0 {
		v.Set("offset", strconv.Itoa(req.Offset))
	}
	var out SearchResponse
	if err := c.do(ctx, http.MethodGet, "/search", v, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RecalculateStats asks the backend to recompute an item's aggregates.
func (c *Client) RecalculateStats(ctx context.Context, slug string) (*model.Stats, error) {
	var out model.Stats
	if err := c.do(ctx, http.MethodPost, itemPath(slug)+"/stats", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
