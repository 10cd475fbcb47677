package prompt

import (
	"bytes"
	"strings"
	"testing"
)

func TestConfirmOverwrite_NonInteractive(t *testing.T) {
	c := Confirmer{
		In:            bytes.NewBufferString("y\n"),
		IsInteractive: func() bool { return false },
	}
	ok, err := c.ConfirmOverwrite("cards.csv", false)
	if err == nil {
		t.Fatalf("expected error for non-interactive confirm, got ok=%v", ok)
	}
}

func TestConfirmOverwrite_Force(t *testing.T) {
	c := Confirmer{
		In:            bytes.NewBufferString("n\n"),
		IsInteractive: func() bool { return false },
	}
	ok, err := c.ConfirmOverwrite("cards.csv", true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatalf("expected ok=true for forced overwrite")
	}
}

func TestConfirm_Interactive(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"y\n", true},
		{"YES\n", true},
		{"n\n", false},
		{"", false},
	}
	for _, tt := range tests {
		c := Confirmer{
			In:            bytes.NewBufferString(tt.input),
			IsInteractive: func() bool { return true },
		}
		ok, err := c.Confirm("Delete?", false)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if ok != tt.want {
			t.Errorf("Confirm(%q) = %v, want %v", tt.input, ok, tt.want)
		}
	}
}

func TestConfirmWarnings(t *testing.T) {
	var out bytes.Buffer
	c := Confirmer{
		In:            bytes.NewBufferString("y\n"),
		Out:           &out,
		IsInteractive: func() bool { return true },
	}
	ok, err := c.ConfirmWarnings([]string{"3 images unmatched"}, false)
	if err != nil || !ok {
		t.Fatalf("ConfirmWarnings = %v, %v", ok, err)
	}
	if !strings.Contains(out.String(), "- 3 images unmatched") {
		t.Fatalf("output = %q", out.String())
	}
	if ok, err := c.ConfirmWarnings(nil, false); !ok || err != nil {
		t.Fatal("no warnings should pass without asking")
	}
}
