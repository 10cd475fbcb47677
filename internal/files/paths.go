package files

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

const maxNumbered = 9

// Derived names an output file after an input: "<input without ext><suffix><ext>".
// The result never points at an existing file; see FreePath.
func Derived(input, suffix, ext string) (string, error) {
	if input == "" {
		return "", fmt.Errorf("input path is empty")
	}
	base := strings.TrimSuffix(input, filepath.Ext(input))
	return FreePath(base + suffix + ext)
}

// FreePath returns path when nothing exists there. Otherwise it tries
// name_1..name_9 and finally a name with a UUID suffix.
func FreePath(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("path is empty")
	}
	for i := 0; i <= maxNumbered; i++ {
		candidate := numbered(path, i)
		taken, err := exists(candidate)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
	}
	suffix := uuid.NewString()[:8]
	if u, err := uuid.NewV7(); err == nil {
		suffix = u.String()
	}
	ext := filepath.Ext(path)
	return fmt.Sprintf("%s_%s%s", strings.TrimSuffix(path, ext), suffix, ext), nil
}

// numbered returns path for n == 0 and "name_n.ext" otherwise.
func numbered(path string, n int) string {
	if n == 0 {
		return path
	}
	ext := filepath.Ext(path)
	return fmt.Sprintf("%s_%d%s", strings.TrimSuffix(path, ext), n, ext)
}

func exists(path string) (bool, error) {
	_, err := os.Lstat(path)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, os.ErrNotExist):
		return false, nil
	default:
		return false, err
	}
}
