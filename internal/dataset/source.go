package dataset

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ReadOptions controls how a tabular source is read.
type ReadOptions struct {
	// Delimiter for CSV. If 0, it is sniffed from the file name and header line.
	Delimiter rune
	// XLSX sheet selection. SheetName wins over SheetIndex (1-based).
	SheetName  string
	SheetIndex int
}

// Table is a header plus string rows, padded to the header width.
type Table struct {
	Name   string
	Header []string
	Rows   [][]string

	index map[string]int
}

// Column returns the index of the named column. Matching is case-insensitive
// and ignores unit annotations such as "Weight (kg)".
func (t *Table) Column(name string) (int, bool) {
	if t.index == nil {
		t.index = make(map[string]int, len(t.Header))
		for i, h := range t.Header {
			clean, _ := splitUnits(h)
			key := strings.ToLower(clean)
			if _, dup := t.index[key]; !dup {
				t.index[key] = i
			}
		}
	}
	i, ok := t.index[strings.ToLower(strings.TrimSpace(name))]
	return i, ok
}

// ReadTable loads a CSV/TSV or XLSX file depending on its extension.
func ReadTable(ctx context.Context, path string, opt ReadOptions) (*Table, error) {
	if strings.HasSuffix(strings.ToLower(path), ".xlsx") {
		return readXLSX(ctx, path, opt.SheetName, opt.SheetIndex)
	}
	return readCSV(ctx, path, opt.Delimiter)
}

func readCSV(ctx context.Context, path string, delim rune) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open csv: %w", err)
	}
	defer f.Close()
	if delim == 0 {
		delim = sniffDelimiter(path, f)
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			return nil, fmt.Errorf("rewind csv: %w", err)
		}
	}
	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true
	r.Comma = delim

	t := &Table{Name: filepath.Base(path)}
	header, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return t, nil
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	t.Header = trimAll(header)
	ncol := len(t.Header)
	for {
		if len(t.Rows)%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		rec, err := r.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("read row %d: %w", len(t.Rows)+1, err)
		}
		row := make([]string, ncol)
		copy(row, rec)
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

// sniffDelimiter prefers the extension and falls back to counting separators
// in the first line.
func sniffDelimiter(path string, r io.Reader) rune {
	if strings.HasSuffix(strings.ToLower(path), ".tsv") {
		return '\t'
	}
	buf := make([]byte, 4096)
	n, _ := io.ReadFull(r, buf)
	line := string(buf[:n])
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}
	best, bestCount := ',', strings.Count(line, ",")
	for _, c := range []rune{';', '\t'} {
		if k := strings.Count(line, string(c)); k > bestCount {
			best, bestCount = c, k
		}
	}
	return best
}

func trimAll(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.TrimSpace(strings.TrimPrefix(s, "\ufeff"))
	}
	return out
}

