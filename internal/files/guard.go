package files

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// RejectSymlinkPath fails when path, or any directory above it, is a
// symlink or a Windows reparse point. Components that do not exist yet
// are fine.
func RejectSymlinkPath(path string) error {
	if strings.TrimSpace(path) == "" {
		return fmt.Errorf("path is empty")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve absolute path: %w", err)
	}

	for p := abs; ; {
		info, err := os.Lstat(p)
		switch {
		case err == nil:
			if info.Mode()&os.ModeSymlink != 0 {
				return fmt.Errorf("refusing to write through symlink %s (target %s)", p, abs)
			}
			reparse, err := isReparsePoint(p)
			if err != nil {
				return fmt.Errorf("failed to check reparse point: %w", err)
			}
			if reparse {
				return fmt.Errorf("refusing to write through reparse point %s (target %s)", p, abs)
			}
		case !os.IsNotExist(err):
			return fmt.Errorf("failed to access %s: %w", p, err)
		}
		parent := filepath.Dir(p)
		if parent == p {
			return nil
		}
		p = parent
	}
}
