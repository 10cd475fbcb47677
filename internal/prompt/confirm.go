package prompt

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// Confirmer asks yes/no questions on a terminal.
type Confirmer struct {
	In            io.Reader
	Out           io.Writer
	IsInteractive func() bool
}

func DefaultConfirmer() Confirmer {
	return Confirmer{
		In:  os.Stdin,
		Out: os.Stderr,
		IsInteractive: func() bool {
			return term.IsTerminal(int(os.Stdin.Fd()))
		},
	}
}

// Confirm asks question and returns true only for "y" or "yes". With
// assumeYes it returns true without asking; on a non-interactive stdin it
// fails and names the flag that skips the question.
func (c Confirmer) Confirm(question string, assumeYes bool) (bool, error) {
	if assumeYes {
		return true, nil
	}
	if c.IsInteractive == nil || !c.IsInteractive() {
		return false, fmt.Errorf("non-interactive stdin: use -y to confirm")
	}
	if c.Out != nil {
		fmt.Fprintf(c.Out, "%s (y/n): ", question)
	}
	reader := bufio.NewReader(c.In)
	response, err := reader.ReadString('\n')
	if err != nil && err != io.EOF {
		return false, err
	}
	response = strings.ToLower(strings.TrimSpace(response))
	return response == "y" || response == "yes", nil
}

// ConfirmOverwrite asks before replacing an existing output file.
func (c Confirmer) ConfirmOverwrite(path string, force bool) (bool, error) {
	return c.Confirm(fmt.Sprintf("Warning: Output file %s already exists. Overwrite?", path), force)
}

// ConfirmWarnings lists warnings and asks whether to continue anyway.
func (c Confirmer) ConfirmWarnings(warnings []string, assumeYes bool) (bool, error) {
	if len(warnings) == 0 {
		return true, nil
	}
	if c.Out != nil && !assumeYes {
		fmt.Fprintf(c.Out, "%d warning(s):\n", len(warnings))
		for _, w := range warnings {
			fmt.Fprintf(c.Out, "  - %s\n", w)
		}
	}
	return c.Confirm("Continue anyway?", assumeYes)
}
