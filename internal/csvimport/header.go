package csvimport

import (
	"fmt"
	"strings"

	"github.com/oukeidos/subdeck/internal/language"
)

// ColumnKind classifies a CSV header.
type ColumnKind int

const (
	KindUnrecognized ColumnKind = iota
	KindReserved
	KindLanguage
	// KindAmbiguous is a reserved name that is also a language alias ("id", "no").
	KindAmbiguous
)

func (k ColumnKind) String() string {
	switch k {
	case KindReserved:
		return "reserved"
	case KindLanguage:
		return "language"
	case KindAmbiguous:
		return "ambiguous"
	default:
		return "unrecognized"
	}
}

// Structural fields a reserved header can map to.
const (
	FieldStart      = "start"
	FieldEnd        = "end"
	FieldIndex      = "index"
	FieldImage      = "image"
	FieldAudio      = "audio"
	FieldDifficulty = "difficulty"
	FieldLevel      = "level"
	FieldType       = "type"
	FieldNotes      = "notes"
	FieldDuration   = "duration"
)

var reservedHeaders = map[string]string{
	"start":            FieldStart,
	"start_time":       FieldStart,
	"starttime":        FieldStart,
	"end":              FieldEnd,
	"end_time":         FieldEnd,
	"endtime":          FieldEnd,
	"id":               FieldIndex,
	"card_id":          FieldIndex,
	"sentence_id":      FieldIndex,
	"no":               FieldIndex,
	"index":            FieldIndex,
	"number":           FieldIndex,
	"#":                FieldIndex,
	"image":            FieldImage,
	"image_file":       FieldImage,
	"image_url":        FieldImage,
	"img":              FieldImage,
	"audio":            FieldAudio,
	"audio_file":       FieldAudio,
	"audio_url":        FieldAudio,
	"difficulty":       FieldDifficulty,
	"difficulty_score": FieldDifficulty,
	"level":            FieldLevel,
	"cefr":             FieldLevel,
	"cefr_level":       FieldLevel,
	"type":             FieldType,
	"card_type":        FieldType,
	"notes":            FieldNotes,
	"note":             FieldNotes,
	"duration":         FieldDuration,
	"length":           FieldDuration,
}

func reservedKey(header string) string {
	h := strings.ToLower(strings.TrimSpace(header))
	h = strings.Join(strings.Fields(h), "_")
	return strings.ReplaceAll(h, "-", "_")
}

// Column is one classified header.
type Column struct {
	Index  int
	Header string
	Kind   ColumnKind
	// Field is set for reserved and ambiguous columns.
	Field string
	// Lang is the canonical language code for language and ambiguous columns.
	Lang string
	// Confirmed is true when the user opted an ambiguous column in as a language.
	Confirmed bool
}

// IsLanguage reports whether the column carries subtitle text.
func (c Column) IsLanguage() bool {
	return c.Kind == KindLanguage || (c.Kind == KindAmbiguous && c.Confirmed)
}

// IsStructural reports whether the column is read as a reserved field.
func (c Column) IsStructural() bool {
	return c.Kind == KindReserved || (c.Kind == KindAmbiguous && !c.Confirmed)
}

// Options tunes classification.
type Options struct {
	// ConfirmedAmbiguous lists headers the user explicitly confirmed as language columns.
	ConfirmedAmbiguous []string
}

func (o Options) confirmed(header string) bool {
	key := reservedKey(header)
	for _, h := range o.ConfirmedAmbiguous {
		if reservedKey(h) == key {
			return true
		}
	}
	return false
}

// HeaderResult is the classification of a header row against a main language.
type HeaderResult struct {
	Columns []Column
	// MainLanguage is the canonical code of the declared main language ("" if unknown).
	MainLanguage string
	// MainColumn is the index into Columns of the main-language column, -1 if none.
	MainColumn int
	// MainByFamily is true when the main column only matched by language family.
	MainByFamily bool
}

// ClassifyHeaders classifies every header. An ambiguous column that is not
// confirmed in opts never takes part in main-language detection.
func ClassifyHeaders(headers []string, mainLang string, opts Options) HeaderResult {
	res := HeaderResult{
		MainLanguage: language.Canonical(mainLang),
		MainColumn:   -1,
	}
	for i, h := range headers {
		col := Column{Index: i, Header: h}
		field, reserved := reservedHeaders[reservedKey(h)]
		lang := language.Canonical(h)
		switch {
		case reserved && lang != "":
			col.Kind = KindAmbiguous
			col.Field = field
			col.Lang = lang
			col.Confirmed = opts.confirmed(h)
		case reserved:
			col.Kind = KindReserved
			col.Field = field
		case lang != "":
			col.Kind = KindLanguage
			col.Lang = lang
		default:
			col.Kind = KindUnrecognized
		}
		res.Columns = append(res.Columns, col)
	}

	if res.MainLanguage == "" {
		return res
	}
	for i, c := range res.Columns {
		if c.IsLanguage() && c.Lang == res.MainLanguage {
			res.MainColumn = i
			return res
		}
	}
	for i, c := range res.Columns {
		if c.IsLanguage() && language.SameFamily(c.Lang, res.MainLanguage) {
			res.MainColumn = i
			res.MainByFamily = true
			return res
		}
	}
	return res
}

// Field returns the structural column mapped to field, if any. Reserved
// columns win over unconfirmed ambiguous ones; otherwise the first wins.
func (h HeaderResult) Field(field string) (Column, bool) {
	for _, c := range h.Columns {
		if c.Kind == KindReserved && c.Field == field {
			return c, true
		}
	}
	for _, c := range h.Columns {
		if c.IsStructural() && c.Field == field {
			return c, true
		}
	}
	return Column{}, false
}

// LanguageColumns returns the subtitle columns in header order.
func (h HeaderResult) LanguageColumns() []Column {
	var out []Column
	for _, c := range h.Columns {
		if c.IsLanguage() {
			out = append(out, c)
		}
	}
	return out
}

// Languages returns the canonical codes of all subtitle columns in header order.
func (h HeaderResult) Languages() []string {
	var out []string
	for _, c := range h.LanguageColumns() {
		out = append(out, c.Lang)
	}
	return out
}

// Ambiguous returns the ambiguous columns, confirmed or not.
func (h HeaderResult) Ambiguous() []Column {
	var out []Column
	for _, c := range h.Columns {
		if c.Kind == KindAmbiguous {
			out = append(out, c)
		}
	}
	return out
}

// Check returns the header-level issues. Blocking: missing start/end, unknown
// or undetected main language, duplicate language columns. A second column
// for a structural field is ignored with a warning.
func (h HeaderResult) Check(mainLang string) []Issue {
	var issues []Issue
	if _, ok := h.Field(FieldStart); !ok {
		issues = append(issues, headerError("missing required column %q", FieldStart))
	}
	if _, ok := h.Field(FieldEnd); !ok {
		issues = append(issues, headerError("missing required column %q", FieldEnd))
	}

	switch {
	case h.MainLanguage == "":
		issues = append(issues, headerError("unknown main language %q", mainLang))
	case h.MainColumn < 0:
		issues = append(issues, headerError("no column matches main language %q", h.MainLanguage))
	case h.MainByFamily:
		c := h.Columns[h.MainColumn]
		issues = append(issues, Issue{Severity: SeverityWarning, Column: c.Header,
			Message: fmt.Sprintf("main language %q matched regional column %q (%s)", h.MainLanguage, c.Header, c.Lang)})
	}

	seenLang := map[string]string{}
	for _, c := range h.Columns {
		shadowed := false
		switch {
		case c.IsLanguage():
			if prev, ok := seenLang[c.Lang]; ok {
				issues = append(issues, Issue{Severity: SeverityError, Column: c.Header,
					Message: fmt.Sprintf("columns %q and %q both map to language %q", prev, c.Header, c.Lang)})
				continue
			}
			seenLang[c.Lang] = c.Header
		case c.IsStructural():
			used, _ := h.Field(c.Field)
			shadowed = used.Index != c.Index
			// An unconfirmed ambiguous column behind a reserved one only gets
			// the confirmation warning below.
			if shadowed && (c.Kind == KindReserved || used.Kind == KindAmbiguous) {
				issues = append(issues, Issue{Severity: SeverityWarning, Column: c.Header,
					Message: fmt.Sprintf("columns %q and %q both map to field %q; %q is ignored", used.Header, c.Header, c.Field, c.Header)})
			}
		}
		if c.Kind == KindAmbiguous && !c.Confirmed {
			msg := fmt.Sprintf("column %q is read as %s; confirm it to treat it as %s subtitles", c.Header, c.Field, c.Lang)
			if shadowed {
				msg = fmt.Sprintf("column %q is ignored; confirm it to treat it as %s subtitles", c.Header, c.Lang)
			}
			issues = append(issues, Issue{Severity: SeverityWarning, Column: c.Header, Message: msg})
		}
		if c.Kind == KindUnrecognized {
			issues = append(issues, Issue{Severity: SeverityWarning, Column: c.Header,
				Message: fmt.Sprintf("column %q is not recognized and will be ignored", c.Header)})
		}
	}
	return issues
}

func headerError(format string, args ...any) Issue {
	return Issue{Severity: SeverityError, Message: fmt.Sprintf(format, args...)}
}
