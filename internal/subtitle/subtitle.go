package subtitle

import (
	"bytes"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/asticode/go-astisub"
	"github.com/oukeidos/subdeck/internal/files"
	"github.com/oukeidos/subdeck/internal/language"
)

// Cue is one timed subtitle entry.
type Cue struct {
	Start time.Duration
	End   time.Duration
	Lines []string
}

// Text joins the cue lines the way lang writes sentences.
func (c Cue) Text(lang string) string {
	sep := " "
	if language.IsSpaceless(lang) {
		sep = ""
	}
	return strings.Join(c.Lines, sep)
}

// Track is a subtitle file's cues in one language.
type Track struct {
	Lang string
	Path string
	Cues []Cue
}

// Load reads any format astisub understands (SRT, WebVTT, SSA/ASS, TTML, STL),
// chosen by extension.
func Load(path string) ([]Cue, error) {
	subs, err := astisub.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", filepath.Base(path), err)
	}
	cues := make([]Cue, 0, len(subs.Items))
	for _, item := range subs.Items {
		lines := make([]string, 0, len(item.Lines))
		for _, l := range item.Lines {
			lines = append(lines, l.String())
		}
		cues = append(cues, Cue{Start: item.StartAt, End: item.EndAt, Lines: lines})
	}
	if len(cues) == 0 {
		return nil, fmt.Errorf("no subtitles found in %s", filepath.Base(path))
	}
	return cues, nil
}

// LoadTrack loads path and cleans it for lang.
func LoadTrack(path, lang string, stripAnnotations bool) (Track, error) {
	code := language.Canonical(lang)
	if code == "" {
		return Track{}, fmt.Errorf("unsupported language: %s", lang)
	}
	cues, err := Load(path)
	if err != nil {
		return Track{}, err
	}
	return Track{Lang: code, Path: path, Cues: Clean(cues, stripAnnotations)}, nil
}

var (
	annotationRegex = regexp.MustCompile(`\([^)]*\)|\[[^\]]*\]|（[^）]*）|［[^］]*］`)
	tagRegex        = regexp.MustCompile(`</?[a-zA-Z][^>]*>|\{\\[^}]*\}`)
)

// Clean merges consecutive cues sharing both timestamps, strips markup,
// optionally removes bracketed sound annotations and drops cues left
// without letters or digits.
func Clean(cues []Cue, stripAnnotations bool) []Cue {
	out := make([]Cue, 0, len(cues))
	for _, c := range mergeSameTimestamp(cues) {
		lines := make([]string, 0, len(c.Lines))
		for _, line := range c.Lines {
			line = tagRegex.ReplaceAllString(line, "")
			if stripAnnotations {
				line = annotationRegex.ReplaceAllString(line, "")
			}
			line = strings.Join(strings.Fields(line), " ")
			if line != "" {
				lines = append(lines, line)
			}
		}
		if !hasWordRune(lines) {
			continue
		}
		c.Lines = lines
		out = append(out, c)
	}
	return out
}

func mergeSameTimestamp(cues []Cue) []Cue {
	if len(cues) < 2 {
		return cues
	}
	merged := make([]Cue, 0, len(cues))
	current := cues[0]
	current.Lines = append([]string(nil), current.Lines...)
	for _, next := range cues[1:] {
		if next.Start == current.Start && next.End == current.End {
			current.Lines = append(current.Lines, next.Lines...)
			continue
		}
		merged = append(merged, current)
		current = next
		current.Lines = append([]string(nil), current.Lines...)
	}
	return append(merged, current)
}

func hasWordRune(lines []string) bool {
	for _, line := range lines {
		for _, r := range line {
			if unicode.IsLetter(r) || unicode.IsNumber(r) {
				return true
			}
		}
	}
	return false
}

// Save writes cues to path in the format its extension names (SRT when unknown).
func Save(path string, cues []Cue) error {
	subs := astisub.NewSubtitles()
	subs.Metadata = &astisub.Metadata{SSAScriptType: "v4.00+"}
	subs.Styles = map[string]*astisub.Style{
		"Default": {ID: "Default", InlineStyle: &astisub.StyleAttributes{SSAFontName: "Sans"}},
	}
	for _, c := range cues {
		item := &astisub.Item{StartAt: c.Start, EndAt: c.End}
		for _, l := range c.Lines {
			item.Lines = append(item.Lines, astisub.Line{Items: []astisub.LineItem{{Text: l}}})
		}
		subs.Items = append(subs.Items, item)
	}

	var buf bytes.Buffer
	var err error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".vtt":
		err = subs.WriteToWebVTT(&buf)
	case ".ssa", ".ass":
		err = subs.WriteToSSA(&buf)
	case ".ttml":
		err = subs.WriteToTTML(&buf)
	default:
		err = subs.WriteToSRT(&buf)
	}
	if err != nil {
		return fmt.Errorf("failed to encode subtitles: %w", err)
	}
	return files.AtomicWrite(path, buf.Bytes(), 0644)
}
