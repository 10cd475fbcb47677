package csvimport

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// CardRow is one validated CSV record.
type CardRow struct {
	Line  int
	Index int
	// ExplicitIndex is true when Index came from an index column rather than row order.
	ExplicitIndex bool
	Start         time.Duration
	End           time.Duration
	Subtitles     map[string]string
	ImageFile     string
	AudioFile     string
	Difficulty    float64
	HasDifficulty bool
	Level         string
	Type          string
	Notes         string
}

// Result is the outcome of validating a sheet.
type Result struct {
	Header HeaderResult
	Rows   []CardRow
	Report Report
}

// Validate classifies the headers and builds rows. Row checks only run when the
// header itself has no blocking errors.
func Validate(sheet *Sheet, mainLang string, opts Options) *Result {
	res := &Result{Header: ClassifyHeaders(sheet.Headers, mainLang, opts)}
	res.Report.add(res.Header.Check(mainLang)...)
	if !res.Report.OK() {
		if countDataRows(sheet) == 0 {
			res.Report.errorf(0, "", "CSV has no data rows")
		}
		return res
	}
	rows, rep := BuildRows(sheet, res.Header)
	res.Rows = rows
	res.Report.add(rep.Issues...)
	return res
}

func countDataRows(sheet *Sheet) int {
	n := 0
	for _, rec := range sheet.Records {
		if !blankRecord(rec) {
			n++
		}
	}
	return n
}

func blankRecord(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// BuildRows converts records into card rows using a classified header.
// Blank records are skipped; implicit indexes count non-blank rows from 0.
func BuildRows(sheet *Sheet, h HeaderResult) ([]CardRow, Report) {
	var rep Report
	startCol, hasStart := h.Field(FieldStart)
	endCol, hasEnd := h.Field(FieldEnd)
	if !hasStart || !hasEnd || h.MainColumn < 0 {
		rep.errorf(0, "", "header is missing start, end or main-language column")
		return nil, rep
	}
	mainCol := h.Columns[h.MainColumn]
	langs := h.LanguageColumns()
	idxCol, hasIdx := h.Field(FieldIndex)
	imgCol, hasImg := h.Field(FieldImage)
	audCol, hasAud := h.Field(FieldAudio)
	diffCol, hasDiff := h.Field(FieldDifficulty)
	lvlCol, hasLvl := h.Field(FieldLevel)
	typeCol, hasType := h.Field(FieldType)
	notesCol, hasNotes := h.Field(FieldNotes)

	var rows []CardRow
	missing := map[string][]int{}
	seenIdx := map[int]int{}
	order := 0
	for i, rec := range sheet.Records {
		if blankRecord(rec) {
			continue
		}
		line := sheet.Line(i)
		row := CardRow{Line: line, Index: order, Subtitles: map[string]string{}}
		order++

		startCell, endCell := sheet.Cell(i, startCol.Index), sheet.Cell(i, endCol.Index)
		start, errStart := ParseTimestamp(startCell)
		if errStart != nil {
			rep.errorf(line, startCol.Header, "invalid start time %q: %v", startCell, errStart)
		}
		end, errEnd := ParseTimestamp(endCell)
		if errEnd != nil {
			rep.errorf(line, endCol.Header, "invalid end time %q: %v", endCell, errEnd)
		}
		if errStart == nil && errEnd == nil && end < start {
			rep.errorf(line, endCol.Header, "end %s is before start %s", FormatSeconds(end), FormatSeconds(start))
		}
		row.Start, row.End = start, end

		for _, c := range langs {
			text := sheet.Cell(i, c.Index)
			if text == "" {
				if c.Index == mainCol.Index {
					rep.errorf(line, c.Header, "main-language (%s) subtitle is empty", c.Lang)
				} else {
					missing[c.Lang] = append(missing[c.Lang], line)
				}
				continue
			}
			row.Subtitles[c.Lang] = text
		}

		if hasIdx {
			if cell := sheet.Cell(i, idxCol.Index); cell != "" {
				n, err := strconv.Atoi(cell)
				if err != nil || n < 0 {
					rep.warnf(line, idxCol.Header, "index %q is not a non-negative integer; using row order %d", cell, row.Index)
				} else {
					row.Index = n
					row.ExplicitIndex = true
				}
			}
		}
		if prev, dup := seenIdx[row.Index]; dup {
			rep.errorf(line, "", "duplicate card index %d (also on line %d)", row.Index, prev)
		} else {
			seenIdx[row.Index] = line
		}

		if hasImg {
			row.ImageFile = sheet.Cell(i, imgCol.Index)
		}
		if hasAud {
			row.AudioFile = sheet.Cell(i, audCol.Index)
		}
		if hasDiff {
			if cell := sheet.Cell(i, diffCol.Index); cell != "" {
				d, err := strconv.ParseFloat(cell, 64)
				switch {
				case err != nil || math.IsNaN(d) || math.IsInf(d, 0):
					rep.warnf(line, diffCol.Header, "difficulty %q is not a number; ignored", cell)
				case d < 0 || d > 100:
					rep.warnf(line, diffCol.Header, "difficulty %s outside 0-100; clamped", cell)
					row.Difficulty = math.Max(0, math.Min(100, d))
					row.HasDifficulty = true
				default:
					row.Difficulty = d
					row.HasDifficulty = true
				}
			}
		}
		if hasLvl {
			row.Level = strings.ToUpper(sheet.Cell(i, lvlCol.Index))
		}
		if hasType {
			row.Type = sheet.Cell(i, typeCol.Index)
		}
		if hasNotes {
			row.Notes = sheet.Cell(i, notesCol.Index)
		}
		rows = append(rows, row)
	}

	if len(rows) == 0 {
		rep.errorf(0, "", "CSV has no data rows")
	}
	for _, c := range langs {
		lines := missing[c.Lang]
		if len(lines) == 0 {
			continue
		}
		rep.warnf(0, c.Header, "%d row(s) have no %s subtitle (lines %s)", len(lines), c.Lang, formatLines(lines, 10))
	}
	return rows, rep
}

func formatLines(lines []int, limit int) string {
	parts := make([]string, 0, limit+1)
	for i, l := range lines {
		if i == limit {
			parts = append(parts, "...")
			break
		}
		parts = append(parts, strconv.Itoa(l))
	}
	return strings.Join(parts, ", ")
}

var errEmptyTime = errors.New("empty")

// MaxTimestamp bounds start and end cells.
const MaxTimestamp = 100 * time.Hour

// ParseTimestamp accepts seconds ("12.5"), "mm:ss(.mmm)" and "hh:mm:ss[,.]mmm".
// The result is rounded to the millisecond.
func ParseTimestamp(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errEmptyTime
	}
	s = strings.Replace(s, ",", ".", 1)
	parts := strings.Split(s, ":")
	if len(parts) > 3 {
		return 0, fmt.Errorf("too many ':' separators")
	}

	sec, err := strconv.ParseFloat(parts[len(parts)-1], 64)
	if err != nil || math.IsNaN(sec) || math.IsInf(sec, 0) || sec < 0 {
		return 0, fmt.Errorf("invalid seconds")
	}
	if len(parts) > 1 && sec >= 60 {
		return 0, fmt.Errorf("seconds must be below 60")
	}

	total := 0.0
	for i, p := range parts[:len(parts)-1] {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("invalid component %q", p)
		}
		if len(parts) == 3 && i == 1 && n >= 60 {
			return 0, fmt.Errorf("minutes must be below 60")
		}
		total = total*60 + float64(n)
	}
	if len(parts) > 1 {
		total *= 60
	}
	total += sec
	if total > MaxTimestamp.Seconds() {
		return 0, fmt.Errorf("time is beyond %s", MaxTimestamp)
	}
	return time.Duration(math.Round(total*1000)) * time.Millisecond, nil
}

// FormatSeconds renders d the way the import CSV stores times.
func FormatSeconds(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', 3, 64)
}
