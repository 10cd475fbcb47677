package media

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/oukeidos/subdeck/internal/csvimport"
)

type Kind string

const (
	KindImage Kind = "image"
	KindAudio Kind = "audio"
	KindVideo Kind = "video"
)

var extensions = map[string]struct {
	kind        Kind
	contentType string
}{
	".jpg":  {KindImage, "image/jpeg"},
	".jpeg": {KindImage, "image/jpeg"},
	".png":  {KindImage, "image/png"},
	".webp": {KindImage, "image/webp"},
	".gif":  {KindImage, "image/gif"},
	".avif": {KindImage, "image/avif"},
	".mp3":  {KindAudio, "audio/mpeg"},
	".wav":  {KindAudio, "audio/wav"},
	".ogg":  {KindAudio, "audio/ogg"},
	".opus": {KindAudio, "audio/opus"},
	".m4a":  {KindAudio, "audio/mp4"},
	".aac":  {KindAudio, "audio/aac"},
	".flac": {KindAudio, "audio/flac"},
	".mp4":  {KindVideo, "video/mp4"},
	".webm": {KindVideo, "video/webm"},
	".mkv":  {KindVideo, "video/x-matroska"},
	".mov":  {KindVideo, "video/quicktime"},
}

// KindOf classifies a file by extension.
func KindOf(path string) (Kind, bool) {
	e, ok := extensions[strings.ToLower(filepath.Ext(path))]
	return e.kind, ok
}

// ContentType returns the MIME type for a media file, or application/octet-stream.
func ContentType(path string) string {
	if e, ok := extensions[strings.ToLower(filepath.Ext(path))]; ok {
		return e.contentType
	}
	return "application/octet-stream"
}

// InferIndex returns the value of the last run of ASCII digits in the file
// name (extension excluded): "ep01_card_0042.jpg" -> 42.
func InferIndex(path string) (int, bool) {
	name := filepath.Base(path)
	name = strings.TrimSuffix(name, filepath.Ext(name))
	end := -1
	for i := len(name) - 1; i >= 0; i-- {
		if name[i] >= '0' && name[i] <= '9' {
			end = i + 1
			break
		}
	}
	if end < 0 {
		return 0, false
	}
	start := end
	for start > 0 && name[start-1] >= '0' && name[start-1] <= '9' {
		start--
	}
	n, err := strconv.Atoi(name[start:end])
	if err != nil {
		return 0, false
	}
	return n, true
}

// File is a local media file selected for upload.
type File struct {
	Path        string
	Kind        Kind
	ContentType string
	Size        int64
}

// Stat builds a File for path. Directories and unknown extensions are rejected.
func Stat(path string) (File, error) {
	kind, ok := KindOf(path)
	if !ok {
		return File{}, fmt.Errorf("unsupported media file %q", filepath.Base(path))
	}
	info, err := os.Stat(path)
	if err != nil {
		return File{}, err
	}
	if info.IsDir() {
		return File{}, fmt.Errorf("%q is a directory", path)
	}
	return File{Path: path, Kind: kind, ContentType: ContentType(path), Size: info.Size()}, nil
}

// ScanDir lists the media files of one kind directly inside dir, sorted by name.
func ScanDir(dir string, kind Kind) ([]File, error) {
	if dir == "" {
		return nil, nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read media directory: %w", err)
	}
	var out []File
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		if k, ok := KindOf(e.Name()); !ok || k != kind {
			continue
		}
		f, err := Stat(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

// Upload pairs a card index with the file to store for it.
type Upload struct {
	Index int
	File  File
}

// Plan is the set of card media uploads derived from CSV rows and local files.
type Plan struct {
	Images   []Upload
	Audio    []Upload
	Warnings []string
}

// Match assigns files to card rows. A row naming a file in its image/audio
// column gets that file; otherwise the file whose inferred index equals the
// row index is used.
func Match(rows []csvimport.CardRow, images, audio []File) Plan {
	var plan Plan
	plan.Images = matchKind(rows, images, func(r csvimport.CardRow) string { return r.ImageFile }, "image", &plan.Warnings)
	plan.Audio = matchKind(rows, audio, func(r csvimport.CardRow) string { return r.AudioFile }, "audio", &plan.Warnings)
	return plan
}

func matchKind(rows []csvimport.CardRow, files []File, explicit func(csvimport.CardRow) string, label string, warnings *[]string) []Upload {
	if len(files) == 0 {
		return nil
	}
	byName := make(map[string]File, len(files))
	byIndex := make(map[int]File, len(files))
	for _, f := range files {
		byName[strings.ToLower(filepath.Base(f.Path))] = f
		idx, ok := InferIndex(f.Path)
		if !ok {
			continue
		}
		if prev, dup := byIndex[idx]; dup {
			*warnings = append(*warnings, fmt.Sprintf("%s files %q and %q both infer index %d; using the first",
				label, filepath.Base(prev.Path), filepath.Base(f.Path), idx))
			continue
		}
		byIndex[idx] = f
	}

	used := make(map[string]bool, len(files))
	var uploads []Upload
	var missing []int
	for _, r := range rows {
		var (
			f  File
			ok bool
		)
		if name := explicit(r); name != "" {
			f, ok = byName[strings.ToLower(filepath.Base(name))]
			if !ok {
				*warnings = append(*warnings, fmt.Sprintf("line %d: %s file %q not found", r.Line, label, name))
				continue
			}
		} else {
			f, ok = byIndex[r.Index]
		}
		if !ok {
			missing = append(missing, r.Index)
			continue
		}
		used[f.Path] = true
		uploads = append(uploads, Upload{Index: r.Index, File: f})
	}

	if len(missing) > 0 {
		*warnings = append(*warnings, fmt.Sprintf("%d card(s) have no %s file (indexes %s)", len(missing), label, formatInts(missing, 10)))
	}
	var unmatched []string
	for _, f := range files {
		if !used[f.Path] {
			unmatched = append(unmatched, filepath.Base(f.Path))
		}
	}
	if len(unmatched) > 0 {
		*warnings = append(*warnings, fmt.Sprintf("%d %s file(s) match no card: %s", len(unmatched), label, strings.Join(limit(unmatched, 10), ", ")))
	}
	return uploads
}

func formatInts(vals []int, n int) string {
	parts := make([]string, 0, len(vals))
	for _, v := range vals {
		parts = append(parts, strconv.Itoa(v))
	}
	return strings.Join(limit(parts, n), ", ")
}

func limit(s []string, n int) []string {
	if len(s) <= n {
		return s
	}
	return append(s[:n:n], "...")
}
