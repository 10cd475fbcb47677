package csvimport

import (
	"fmt"
	"strings"

	"github.com/oukeidos/subdeck/internal/apperrors"
)

type Severity int

const (
	SeverityError Severity = iota
	SeverityWarning
)

func (s Severity) String() string {
	if s == SeverityWarning {
		return "warning"
	}
	return "error"
}

// Issue is one validation finding. Line is the 1-based file line (0 for header-level issues).
type Issue struct {
	Severity Severity
	Line     int
	Column   string
	Message  string
}

func (i Issue) String() string {
	var b strings.Builder
	b.WriteString(i.Severity.String())
	if i.Line > 0 {
		fmt.Fprintf(&b, " line %d", i.Line)
	}
	if i.Column != "" {
		fmt.Fprintf(&b, " [%s]", i.Column)
	}
	b.WriteString(": ")
	b.WriteString(i.Message)
	return b.String()
}

// Report collects validation issues in discovery order.
type Report struct {
	Issues []Issue
}

func (r *Report) add(issues ...Issue) {
	r.Issues = append(r.Issues, issues...)
}

func (r *Report) errorf(line int, column, format string, args ...any) {
	r.add(Issue{Severity: SeverityError, Line: line, Column: column, Message: fmt.Sprintf(format, args...)})
}

func (r *Report) warnf(line int, column, format string, args ...any) {
	r.add(Issue{Severity: SeverityWarning, Line: line, Column: column, Message: fmt.Sprintf(format, args...)})
}

func (r Report) filter(s Severity) []Issue {
	var out []Issue
	for _, i := range r.Issues {
		if i.Severity == s {
			out = append(out, i)
		}
	}
	return out
}

func (r Report) Errors() []Issue   { return r.filter(SeverityError) }
func (r Report) Warnings() []Issue { return r.filter(SeverityWarning) }

// OK reports whether the report has no blocking errors.
func (r Report) OK() bool { return len(r.Errors()) == 0 }

// Err returns a validation error summarizing blocking issues, or nil.
func (r Report) Err() error {
	errs := r.Errors()
	if len(errs) == 0 {
		return nil
	}
	lines := make([]string, 0, len(errs))
	for _, e := range errs {
		lines = append(lines, e.String())
	}
	shown := lines
	if len(shown) > 5 {
		shown = append(shown[:5:5], fmt.Sprintf("... and %d more", len(lines)-5))
	}
	msg := fmt.Sprintf("CSV validation failed with %d error(s): %s", len(errs), strings.Join(shown, "; "))
	return apperrors.New(apperrors.KindValidation, msg, fmt.Errorf("%s", strings.Join(lines, "; ")))
}
