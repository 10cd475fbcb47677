package model

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ContentType is the kind of source a content item was cut from.
type ContentType string

const (
	TypeMovie  ContentType = "movie"
	TypeSeries ContentType = "series"
	TypeBook   ContentType = "book"
	TypeAudio  ContentType = "audio"
)

func (t ContentType) Valid() bool {
	switch t {
	case TypeMovie, TypeSeries, TypeBook, TypeAudio:
		return true
	}
	return false
}

var slugPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]*$`)

// ValidSlug reports whether s can be used as a content slug.
func ValidSlug(s string) bool {
	return len(s) <= 128 && slugPattern.MatchString(s)
}

type Category struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ContentItem is a film, series, book or audio title.
type ContentItem struct {
	Slug              string      `json:"slug"`
	Title             string      `json:"title"`
	Description       string      `json:"description,omitempty"`
	Type              ContentType `json:"type"`
	MainLanguage      string      `json:"main_language"`
	ReleaseYear       int         `json:"release_year,omitempty"`
	Available         bool        `json:"is_available"`
	IMDBScore         float64     `json:"imdb_score,omitempty"`
	CoverURL          string      `json:"cover_url,omitempty"`
	CoverLandscapeURL string      `json:"cover_landscape_url,omitempty"`
	Categories        []Category  `json:"categories,omitempty"`
	EpisodeCount      int         `json:"episodes,omitempty"`
}

// Validate checks the fields the backend requires on create.
func (c ContentItem) Validate() error {
	if !ValidSlug(c.Slug) {
		return fmt.Errorf("invalid slug %q (lowercase letters, digits, '-' and '_')", c.Slug)
	}
	if c.Title == "" {
		return fmt.Errorf("title is required")
	}
	if !c.Type.Valid() {
		return fmt.Errorf("invalid content type %q (movie, series, book, audio)", c.Type)
	}
	if c.MainLanguage == "" {
		return fmt.Errorf("main language is required")
	}
	if c.ReleaseYear != 0 && (c.ReleaseYear < 1850 || c.ReleaseYear > time.Now().Year()+5) {
		return fmt.Errorf("release year %d out of range", c.ReleaseYear)
	}
	if c.IMDBScore < 0 || c.IMDBScore > 10 {
		return fmt.Errorf("imdb score %.1f out of range 0-10", c.IMDBScore)
	}
	return nil
}

type Episode struct {
	ContentSlug  string `json:"content_slug"`
	Number       int    `json:"episode_number"`
	Title        string `json:"title,omitempty"`
	Description  string `json:"description,omitempty"`
	CoverKey     string `json:"cover_key,omitempty"`
	FullAudioKey string `json:"full_audio_key,omitempty"`
	FullVideoKey string `json:"full_video_key,omitempty"`
	CardCount    int    `json:"num_cards,omitempty"`
}

// Card is one subtitle-aligned study unit.
type Card struct {
	ID            string            `json:"id,omitempty"`
	ContentSlug   string            `json:"content_slug"`
	ContentTitle  string            `json:"content_title,omitempty"`
	ContentType   ContentType       `json:"content_type,omitempty"`
	EpisodeNumber int               `json:"episode_number"`
	Index         int               `json:"card_index"`
	Start         Seconds           `json:"start"`
	End           Seconds           `json:"end"`
	Subtitles     map[string]string `json:"subtitle"`
	ImageURL      string            `json:"image_url,omitempty"`
	AudioURL      string            `json:"audio_url,omitempty"`
	ImageKey      string            `json:"image_key,omitempty"`
	AudioKey      string            `json:"audio_key,omitempty"`
	Difficulty    float64           `json:"difficulty_score,omitempty"`
	Level         string            `json:"level,omitempty"`
	Length        int               `json:"length,omitempty"`
}

// Stats is what the backend returns after recalculating an item's aggregates.
type Stats struct {
	ContentSlug    string         `json:"content_slug"`
	Episodes       int            `json:"episodes"`
	Cards          int            `json:"cards"`
	AvgDifficulty  float64        `json:"avg_difficulty"`
	LevelHistogram map[string]int `json:"levels,omitempty"`
}

// Seconds is a duration carried as fractional seconds on the wire.
type Seconds time.Duration

func (s Seconds) Duration() time.Duration { return time.Duration(s) }

func (s Seconds) MarshalJSON() ([]byte, error) {
	return []byte(fmt.Sprintf("%.3f", time.Duration(s).Seconds())), nil
}

func (s *Seconds) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*s = 0
		return nil
	}
	f, err := strconv.ParseFloat(strings.Trim(string(b), `"`), 64)
	if err != nil {
		return fmt.Errorf("invalid seconds value %s: %w", b, err)
	}
	*s = Seconds(time.Duration(f * float64(time.Second)))
	return nil
}
