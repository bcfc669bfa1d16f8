// Package report renders exploration views as Markdown or JSON.
package report

import (
	"fmt"
	"math"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/KaramelBytes/vo2scope/internal/dataset"
	"github.com/KaramelBytes/vo2scope/internal/explore"
	"github.com/KaramelBytes/vo2scope/internal/utils"
)

// Meta describes where a view's records came from.
type Meta struct {
	MetadataPath     string            `json:"metadata_path"`
	MeasurementsPath string            `json:"measurements_path"`
	Session          string            `json:"session,omitempty"`
	Stats            dataset.JoinStats `json:"join"`
}

// Markdown renders v as a sectioned plain-text report.
func Markdown(v explore.View, meta Meta) string {
	var b strings.Builder
	writeDatasetSummary(&b, v, meta)

	b.WriteString("\n[FILTERS]\n")
	b.WriteString(fmt.Sprintf("- Genders: %s\n", v.Filter.Genders))
	b.WriteString(fmt.Sprintf("- Age: %s\n", FormatRange(v.Filter.Age)))
	b.WriteString(fmt.Sprintf("- Weight: %s\n", FormatRange(v.Filter.Weight)))
	b.WriteString(fmt.Sprintf("- Temperature: %s\n", FormatRange(v.Filter.Temp)))

	b.WriteString("\n[HISTOGRAM]\n")
	writeHistogram(&b, v.Histogram)

	b.WriteString("\n[SELECTION]\n")
	writeSelection(&b, v.Selection)

	if notes := Notes(v, meta); len(notes) > 0 {
		b.WriteString("\n[NOTES]\n")
		for _, n := range notes {
			b.WriteString("- ")
			b.WriteString(n)
			b.WriteString("\n")
		}
	}
	return b.String()
}

func writeDatasetSummary(b *strings.Builder, v explore.View, meta Meta) {
	st := meta.Stats
	b.WriteString("[DATASET SUMMARY]\n")
	if meta.Session != "" {
		b.WriteString(fmt.Sprintf("Session: %s\n", meta.Session))
	}
	if meta.MetadataPath != "" {
		b.WriteString(fmt.Sprintf("Metadata: %s\n", filepath.Base(meta.MetadataPath)))
	}
	if meta.MeasurementsPath != "" {
		b.WriteString(fmt.Sprintf("Measurements: %s\n", filepath.Base(meta.MeasurementsPath)))
	}
	b.WriteString(fmt.Sprintf("Subjects: %s\n", FormatCount(st.Subjects)))
	b.WriteString(fmt.Sprintf("Records: %s of %s measurement rows kept\n", FormatCount(st.Kept), FormatCount(st.MeasurementRows)))
	b.WriteString(fmt.Sprintf("Filtered: %s (male %s, female %s)\n",
		FormatCount(len(v.Filtered)), FormatCount(v.Counts[dataset.Male]), FormatCount(v.Counts[dataset.Female])))
}

func writeHistogram(b *strings.Builder, h explore.Histogram) {
	width := h.Domain.Width(h.BinCount)
	b.WriteString(fmt.Sprintf("Domain: %s, %d bins of width %s\n", formatInterval(h.Domain.Min, h.Domain.Max), h.BinCount, formatValue(width)))
	if len(h.Series) == 0 {
		b.WriteString("No active gender; nothing to display.\n")
		return
	}
	if h.Empty {
		b.WriteString("No records match the current filters.\n")
	}
	for _, s := range h.Series {
		b.WriteString(fmt.Sprintf("\n%s (n=%s)\n", s.Gender, FormatCount(s.Total)))
		b.WriteString("| Range | Count |\n")
		b.WriteString("| --- | --- |\n")
		for _, bin := range s.Bins {
			b.WriteString(fmt.Sprintf("| %s - %s | %s |\n", formatValue(bin.Lower), formatValue(bin.Upper), FormatCount(bin.Count())))
		}
	}
}

func writeSelection(b *strings.Builder, sel *explore.SelectionStats) {
	if sel == nil {
		b.WriteString("No range selected.\n")
		return
	}
	b.WriteString(fmt.Sprintf("Range: %s\n", formatInterval(sel.Range.Min, sel.Range.Max)))
	b.WriteString(fmt.Sprintf("Total: %s\n", FormatCount(sel.Total)))
	b.WriteString(fmt.Sprintf("Male: %s\n", FormatCount(sel.Male)))
	b.WriteString(fmt.Sprintf("Female: %s\n", FormatCount(sel.Female)))
	mean, ok := sel.MeanValue()
	if !ok {
		b.WriteString("Mean VO2: n/a\n")
		return
	}
	b.WriteString(fmt.Sprintf("Mean VO2: %s\n", formatValue(mean)))
	b.WriteString(fmt.Sprintf("Median VO2: %s\n", formatValue(sel.Median)))
	if sel.Total > 1 {
		b.WriteString(fmt.Sprintf("Std dev: %s\n", formatValue(sel.StdDev)))
	}
	if sel.Male > 0 {
		b.WriteString(fmt.Sprintf("Male mean: %s\n", formatValue(sel.MaleMean)))
	}
	if sel.Female > 0 {
		b.WriteString(fmt.Sprintf("Female mean: %s\n", formatValue(sel.FemaleMean)))
	}
}

// Notes lists data-quality remarks about the load and the current view.
func Notes(v explore.View, meta Meta) []string {
	st := meta.Stats
	var out []string
	if st.Unmatched > 0 {
		out = append(out, fmt.Sprintf("%s measurements had no matching subject and are never shown", FormatCount(st.Unmatched)))
	}
	if st.DroppedOutOfRange > 0 {
		out = append(out, fmt.Sprintf("%s measurements fell outside the valid VO2 range and were dropped", FormatCount(st.DroppedOutOfRange)))
	}
	if st.DroppedInvalid > 0 {
		out = append(out, fmt.Sprintf("%s measurements had no numeric VO2 and were dropped", FormatCount(st.DroppedInvalid)))
	}
	if st.DuplicateIDs > 0 {
		out = append(out, fmt.Sprintf("%s duplicate subject ids; the last row was used", FormatCount(st.DuplicateIDs)))
	}
	if st.SkippedEmptyIDs > 0 {
		out = append(out, fmt.Sprintf("%s metadata rows without an id were skipped", FormatCount(st.SkippedEmptyIDs)))
	}
	if n := v.Counts[dataset.Unknown]; n > 0 {
		out = append(out, fmt.Sprintf("%s filtered records have an unrecognized sex code", FormatCount(n)))
	}
	return out
}

// Document is the JSON form of a report.
type Document struct {
	Meta  Meta         `json:"meta"`
	View  explore.View `json:"view"`
	Notes []string     `json:"notes,omitempty"`
}

// JSON renders v as an indented JSON document.
func JSON(v explore.View, meta Meta) ([]byte, error) {
	return utils.PrettyJSON(Document{Meta: meta, View: v, Notes: Notes(v, meta)})
}

// FormatCount renders n with comma thousands separators.
func FormatCount(n int) string {
	s := strconv.Itoa(n)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	var b strings.Builder
	for i, c := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(c)
	}
	if neg {
		return "-" + b.String()
	}
	return b.String()
}

// FormatRange renders r with one decimal; open bounds print as "any".
func FormatRange(r explore.Range) string {
	lo, hi := "any", "any"
	if !math.IsInf(r.Min, 0) {
		lo = formatValue(r.Min)
	}
	if !math.IsInf(r.Max, 0) {
		hi = formatValue(r.Max)
	}
	if lo == "any" && hi == "any" {
		return "any"
	}
	return "[" + lo + ", " + hi + "]"
}

func formatInterval(lo, hi float64) string {
	return "[" + formatValue(lo) + ", " + formatValue(hi) + "]"
}

func formatValue(v float64) string { return strconv.FormatFloat(v, 'f', 1, 64) }
