package dataset

import (
	"archive/zip"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path"
	"path/filepath"
	"strconv"
	"strings"
)

type sheetRef struct {
	Name string `xml:"name,attr"`
	ID   int    `xml:"sheetId,attr"`
	RID  string `xml:"id,attr"`
}

type workbookXML struct {
	Sheets []sheetRef `xml:"sheets>sheet"`
}

type relationshipsXML struct {
	Items []struct {
		ID     string `xml:"Id,attr"`
		Target string `xml:"Target,attr"`
	} `xml:"Relationship"`
}

// richText is a shared or inline string: either plain text or a list of
// formatted runs whose texts are concatenated.
type richText struct {
	Plain string    `xml:"t"`
	Runs  []richRun `xml:"r"`
}

type richRun struct {
	Text string `xml:"t"`
}

func (r richText) String() string {
	if len(r.Runs) == 0 {
		return r.Plain
	}
	var b strings.Builder
	b.WriteString(r.Plain)
	for _, run := range r.Runs {
		b.WriteString(run.Text)
	}
	return b.String()
}

type sharedStringsXML struct {
	Items []richText `xml:"si"`
}

type cellXML struct {
	Ref    string    `xml:"r,attr"`
	Type   string    `xml:"t,attr"`
	Value  string    `xml:"v"`
	Inline *richText `xml:"is"`
}

type rowXML struct {
	Cells []cellXML `xml:"c"`
}

// readXLSX loads one worksheet of an .xlsx workbook into a Table. The first
// non-empty row is the header. If sheetName is empty the sheet is chosen by
// its 1-based sheetIndex (default 1).
func readXLSX(ctx context.Context, p string, sheetName string, sheetIndex int) (*Table, error) {
	zr, err := zip.OpenReader(p)
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}
	defer zr.Close()

	var wb workbookXML
	if err := decodeEntry(zr, "xl/workbook.xml", &wb); err != nil {
		return nil, err
	}
	var rels relationshipsXML
	if err := decodeEntry(zr, "xl/_rels/workbook.xml.rels", &rels); err != nil {
		return nil, err
	}
	var sst sharedStringsXML
	if err := decodeEntry(zr, "xl/sharedStrings.xml", &sst); err != nil {
		return nil, err
	}
	targets := make(map[string]string, len(rels.Items))
	for _, r := range rels.Items {
		targets[r.ID] = entryName(r.Target)
	}

	entry, err := pickSheet(wb.Sheets, targets, sheetName, sheetIndex)
	if err != nil {
		return nil, fmt.Errorf("%w in workbook %q", err, filepath.Base(p))
	}
	f, err := zr.Open(entry)
	if err != nil {
		return nil, fmt.Errorf("worksheet %s missing from workbook %q", entry, filepath.Base(p))
	}
	defer f.Close()

	t := &Table{Name: filepath.Base(p)}
	dec := xml.NewDecoder(f)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", entry, err)
		}
		se, ok := tok.(xml.StartElement)
		if !ok || se.Name.Local != "row" {
			continue
		}
		var row rowXML
		if err := dec.DecodeElement(&row, &se); err != nil {
			return nil, fmt.Errorf("parse %s: %w", entry, err)
		}
		values := row.values(sst.Items)
		if t.Header == nil {
			if !blank(values) {
				t.Header = trimAll(values)
			}
			continue
		}
		if len(t.Rows)%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		padded := make([]string, len(t.Header))
		copy(padded, values)
		t.Rows = append(t.Rows, padded)
	}
	return t, nil
}

// decodeEntry unmarshals a workbook part into v. A missing part leaves v
// untouched.
func decodeEntry(fsys fs.FS, name string, v any) error {
	b, err := fs.ReadFile(fsys, name)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", name, err)
	}
	if err := xml.Unmarshal(b, v); err != nil {
		return fmt.Errorf("parse %s: %w", name, err)
	}
	return nil
}

// pickSheet resolves the worksheet entry by name, or else by sheet id.
func pickSheet(sheets []sheetRef, targets map[string]string, name string, index int) (string, error) {
	if name != "" {
		names := make([]string, 0, len(sheets))
		for _, s := range sheets {
			if strings.EqualFold(s.Name, name) {
				if t, ok := targets[s.RID]; ok {
					return t, nil
				}
			}
			names = append(names, s.Name)
		}
		return "", fmt.Errorf("sheet %q not found (available: %s)", name, strings.Join(names, ", "))
	}
	if index <= 0 {
		index = 1
	}
	for _, s := range sheets {
		if s.ID == index {
			if t, ok := targets[s.RID]; ok {
				return t, nil
			}
		}
	}
	return path.Join("xl", "worksheets", fmt.Sprintf("sheet%d.xml", index)), nil
}

// values lays the row's cells out by column reference. Cells without a
// reference follow the previous one.
func (r rowXML) values(shared []richText) []string {
	var out []string
	for _, c := range r.Cells {
		col := columnIndex(c.Ref)
		if col < 0 {
			col = len(out)
		}
		for len(out) <= col {
			out = append(out, "")
		}
		out[col] = c.text(shared)
	}
	return out
}

func (c cellXML) text(shared []richText) string {
	switch {
	case c.Inline != nil:
		return c.Inline.String()
	case c.Type == "s":
		i, err := strconv.Atoi(strings.TrimSpace(c.Value))
		if err != nil || i < 0 || i >= len(shared) {
			return ""
		}
		return shared[i].String()
	default:
		return c.Value
	}
}

// columnIndex converts the letters of a cell reference ("C12") to a 0-based
// column. It returns -1 when there are none.
func columnIndex(ref string) int {
	n := 0
	for _, c := range strings.ToUpper(ref) {
		if c < 'A' || c > 'Z' {
			break
		}
		n = n*26 + int(c-'A'+1)
	}
	return n - 1
}

func blank(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// entryName converts a relationship target to a zip entry name.
func entryName(target string) string {
	target = strings.TrimPrefix(target, "/")
	if strings.HasPrefix(target, "xl/") {
		return target
	}
	return path.Join("xl", target)
}
