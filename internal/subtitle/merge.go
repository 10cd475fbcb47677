package subtitle

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/oukeidos/subdeck/internal/csvimport"
	"github.com/oukeidos/subdeck/internal/files"
	"github.com/oukeidos/subdeck/internal/language"
)

// Row is one merged card: the main cue's timing and text per language.
type Row struct {
	Start time.Duration
	End   time.Duration
	Texts map[string]string
}

// Options tunes Merge.
type Options struct {
	// MinOverlap is the shortest overlap that attaches a cue to a main cue.
	MinOverlap time.Duration
}

const DefaultMinOverlap = 100 * time.Millisecond

// Merge builds one row per main cue and attaches every cue of the other
// tracks to the main cue it overlaps most. Cues that overlap no main cue
// are reported as warnings.
func Merge(main Track, others []Track, opts Options) ([]Row, []string) {
	if opts.MinOverlap <= 0 {
		opts.MinOverlap = DefaultMinOverlap
	}
	mainCues := append([]Cue(nil), main.Cues...)
	sort.SliceStable(mainCues, func(i, j int) bool { return mainCues[i].Start < mainCues[j].Start })

	rows := make([]Row, len(mainCues))
	for i, c := range mainCues {
		rows[i] = Row{Start: c.Start, End: c.End, Texts: map[string]string{main.Lang: c.Text(main.Lang)}}
	}

	var warnings []string
	for _, track := range others {
		parts := make([][]string, len(rows))
		unmatched := 0
		for _, c := range track.Cues {
			best := bestOverlap(mainCues, c, opts.MinOverlap)
			if best < 0 {
				unmatched++
				continue
			}
			parts[best] = append(parts[best], c.Text(track.Lang))
		}
		sep := " "
		if language.IsSpaceless(track.Lang) {
			sep = ""
		}
		empty := 0
		for i := range rows {
			rows[i].Texts[track.Lang] = strings.Join(parts[i], sep)
			if len(parts[i]) == 0 {
				empty++
			}
		}
		if unmatched > 0 {
			warnings = append(warnings, fmt.Sprintf("%s: %d cue(s) overlap no %s cue and were dropped", track.Lang, unmatched, main.Lang))
		}
		if empty > 0 {
			warnings = append(warnings, fmt.Sprintf("%s: %d card(s) have no text", track.Lang, empty))
		}
	}
	return rows, warnings
}

// bestOverlap returns the index of the main cue overlapping c the longest,
// or -1 when no overlap reaches minOverlap. mainCues must be sorted by Start.
func bestOverlap(mainCues []Cue, c Cue, minOverlap time.Duration) int {
	best, bestLen := -1, time.Duration(0)
	for i := 0; i < len(mainCues) && mainCues[i].Start < c.End; i++ {
		m := mainCues[i]
		if m.End <= c.Start {
			continue
		}
		ov := minDur(m.End, c.End) - maxDur(m.Start, c.Start)
		if ov > bestLen {
			best, bestLen = i, ov
		}
	}
	if bestLen < minOverlap {
		return -1
	}
	return best
}

func minDur(a, b time.Duration) time.Duration {
	if a < b {
		return a
	}
	return b
}

func maxDur(a, b time.Duration) time.Duration {
	if a > b {
		return a
	}
	return b
}

// BuildSheet renders merged rows as an ingestion CSV with columns
// index, start, end, then one column per language.
func BuildSheet(rows []Row, langs []string) *csvimport.Sheet {
	headers := append([]string{"index", "start", "end"}, langs...)
	sheet := &csvimport.Sheet{Headers: headers, Delimiter: ','}
	for i, r := range rows {
		rec := []string{strconv.Itoa(i), csvimport.FormatSeconds(r.Start), csvimport.FormatSeconds(r.End)}
		for _, l := range langs {
			rec = append(rec, r.Texts[l])
		}
		sheet.Records = append(sheet.Records, rec)
	}
	return sheet
}

// OutputPath returns "<main subtitle base>_cards.csv" next to the main
// subtitle file, numbered when that name is taken.
func OutputPath(mainPath string) (string, error) {
	return files.Derived(mainPath, "_cards", ".csv")
}

// ExtractTrack reads one language column of an ingestion CSV back into
// cues. Rows with an empty cell for lang are skipped.
func ExtractTrack(sheet *csvimport.Sheet, lang string) ([]Cue, error) {
	h := csvimport.ClassifyHeaders(sheet.Headers, lang, csvimport.Options{})
	if h.MainColumn < 0 {
		return nil, fmt.Errorf("CSV has no %s column", lang)
	}
	startCol, okStart := h.Field(csvimport.FieldStart)
	endCol, okEnd := h.Field(csvimport.FieldEnd)
	if !okStart || !okEnd {
		return nil, fmt.Errorf("CSV needs start and end columns")
	}
	textCol := h.Columns[h.MainColumn].Index

	var cues []Cue
	for i := range sheet.Records {
		text := sheet.Cell(i, textCol)
		if text == "" {
			continue
		}
		start, err := csvimport.ParseTimestamp(sheet.Cell(i, startCol.Index))
		if err != nil {
			return nil, fmt.Errorf("line %d: start: %w", sheet.Line(i), err)
		}
		end, err := csvimport.ParseTimestamp(sheet.Cell(i, endCol.Index))
		if err != nil {
			return nil, fmt.Errorf("line %d: end: %w", sheet.Line(i), err)
		}
		cues = append(cues, Cue{Start: start, End: end, Lines: strings.Split(text, "\n")})
	}
	if len(cues) == 0 {
		return nil, fmt.Errorf("CSV has no %s subtitles", lang)
	}
	sort.SliceStable(cues, func(i, j int) bool { return cues[i].Start < cues[j].Start })
	return cues, nil
}
