package csvimport

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/oukeidos/subdeck/internal/files"
)

// MaxCSVBytes caps how much of a CSV file is read into memory.
const MaxCSVBytes = 32 << 20

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Sheet is a parsed CSV: the header row and the data records below it.
type Sheet struct {
	Headers []string
	Records [][]string
	// Lines holds the 1-based file line each record started on.
	Lines     []int
	Delimiter rune
}

// Line returns the file line of record i.
func (s *Sheet) Line(i int) int {
	if i >= 0 && i < len(s.Lines) {
		return s.Lines[i]
	}
	return i + 2
}

// Cell returns the trimmed value at record i, column col ("" when the row is short).
func (s *Sheet) Cell(i, col int) string {
	if i < 0 || i >= len(s.Records) || col < 0 || col >= len(s.Records[i]) {
		return ""
	}
	return strings.TrimSpace(s.Records[i][col])
}

// SetCell writes a value, padding short rows.
func (s *Sheet) SetCell(i, col int, v string) {
	if i < 0 || i >= len(s.Records) || col < 0 {
		return
	}
	for len(s.Records[i]) <= col {
		s.Records[i] = append(s.Records[i], "")
	}
	s.Records[i][col] = v
}

// ParseFile opens and parses a CSV file.
func ParseFile(path string) (*Sheet, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse reads a CSV document. A UTF-8 BOM is stripped and the delimiter
// (comma, semicolon or tab) is sniffed from the header line.
func Parse(r io.Reader) (*Sheet, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxCSVBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV: %w", err)
	}
	if len(data) > MaxCSVBytes {
		return nil, fmt.Errorf("CSV exceeds %d bytes", MaxCSVBytes)
	}
	data = bytes.TrimPrefix(data, utf8BOM)
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, errors.New("CSV file is empty or missing header")
	}

	delim := sniffDelimiter(data)
	reader := csv.NewReader(bytes.NewReader(data))
	reader.Comma = delim
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	sheet := &Sheet{Delimiter: delim}
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}
	for _, h := range header {
		sheet.Headers = append(sheet.Headers, strings.TrimSpace(h))
	}
	for {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV: %w", err)
		}
		line, _ := reader.FieldPos(0)
		sheet.Records = append(sheet.Records, rec)
		sheet.Lines = append(sheet.Lines, line)
	}
	return sheet, nil
}

// sniffDelimiter counts candidate separators outside quotes on the first line.
func sniffDelimiter(data []byte) rune {
	counts := map[rune]int{}
	inQuotes := false
	for _, c := range string(data) {
		if c == '"' {
			inQuotes = !inQuotes
			continue
		}
		if inQuotes {
			continue
		}
		if c == '\n' {
			break
		}
		if c == ',' || c == ';' || c == '\t' {
			counts[c]++
		}
	}
	best := ','
	for _, c := range []rune{';', '\t'} {
		if counts[c] > counts[best] {
			best = c
		}
	}
	return best
}

// Write encodes the sheet with its delimiter (comma when unset).
func (s *Sheet) Write(w io.Writer) error {
	cw := csv.NewWriter(w)
	if s.Delimiter != 0 {
		cw.Comma = s.Delimiter
	}
	if err := cw.Write(s.Headers); err != nil {
		return err
	}
	if err := cw.WriteAll(s.Records); err != nil {
		return err
	}
	return cw.Error()
}

// WriteFile atomically replaces path with the encoded sheet.
func (s *Sheet) WriteFile(path string) error {
	var buf bytes.Buffer
	if err := s.Write(&buf); err != nil {
		return fmt.Errorf("failed to encode CSV: %w", err)
	}
	return files.AtomicWrite(path, buf.Bytes(), 0644)
}
