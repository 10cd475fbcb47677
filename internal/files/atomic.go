package files

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/oukeidos/subdeck/internal/logger"
)

// AtomicWrite replaces path with data via a synced temp file in the same
// directory, so readers see either the old or the new CSV, never half of one.
func AtomicWrite(path string, data []byte, perms os.FileMode) error {
	if err := RejectSymlinkPath(path); err != nil {
		return err
	}
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".subdeck-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	if err := tmp.Chmod(perms); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to set temp file permissions: %w", err)
	}
	if err := fill(tmp, data); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := replaceFile(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to move temp file into place: %w", err)
	}
	syncDir(dir)
	return nil
}

// AtomicWriteExclusive is AtomicWrite for files that must never be
// replaced, such as rollback journals. When path is taken the data goes
// to name_1..name_9 instead. It returns the path actually written.
func AtomicWriteExclusive(path string, data []byte, perms os.FileMode) (string, error) {
	if err := RejectSymlinkPath(path); err != nil {
		return "", err
	}
	dir := filepath.Dir(path)
	for i := 0; i <= maxNumbered; i++ {
		candidate := numbered(path, i)
		if taken, err := exists(candidate); err != nil {
			return "", err
		} else if taken {
			continue
		}

		tmpPath := candidate + ".tmp"
		tmp, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, perms)
		if errors.Is(err, os.ErrExist) {
			continue
		}
		if err != nil {
			return "", err
		}
		if err := fill(tmp, data); err != nil {
			os.Remove(tmpPath)
			return "", err
		}
		// Link fails when candidate appeared meanwhile; rename would clobber it.
		err = os.Link(tmpPath, candidate)
		if errors.Is(err, os.ErrExist) {
			os.Remove(tmpPath)
			continue
		}
		if err != nil {
			// No hard links on this filesystem.
			err = replaceFile(tmpPath, candidate)
		}
		os.Remove(tmpPath)
		if err != nil {
			return "", fmt.Errorf("failed to publish %s: %w", filepath.Base(candidate), err)
		}
		syncDir(dir)
		return candidate, nil
	}
	return "", fmt.Errorf("%s and its numbered alternatives already exist", path)
}

func fill(f *os.File, data []byte) error {
	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	return nil
}

func syncDir(dir string) {
	if runtime.GOOS == "windows" {
		return
	}
	f, err := os.Open(dir)
	if err != nil {
		logger.Warn("Failed to open directory for fsync", "path", dir, "error", err)
		return
	}
	defer f.Close()
	if err := f.Sync(); err != nil {
		logger.Warn("Directory fsync failed", "path", dir, "error", err)
	}
}
