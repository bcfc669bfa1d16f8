package report

import (
	"fmt"
	"strings"

	"github.com/KaramelBytes/vo2scope/internal/dataset"
	"github.com/montanaflynn/stats"
)

// GroupSummary describes the VO2 distribution of one gender.
type GroupSummary struct {
	Gender dataset.Gender `json:"gender"`
	N      int            `json:"n"`
	Min    float64        `json:"min"`
	Max    float64        `json:"max"`
	Mean   float64        `json:"mean"`
	Median float64        `json:"median"`
	StdDev float64        `json:"std_dev"`
	P25    float64        `json:"p25"`
	P75    float64        `json:"p75"`
}

// Summarize computes per-gender VO2 statistics in male, female, unknown
// order. Genders without records are omitted.
func Summarize(records []dataset.MeasurementRecord) []GroupSummary {
	by := map[dataset.Gender]stats.Float64Data{}
	for _, r := range records {
		by[r.Gender] = append(by[r.Gender], r.VO2)
	}
	var out []GroupSummary
	for _, g := range []dataset.Gender{dataset.Male, dataset.Female, dataset.Unknown} {
		data := by[g]
		if len(data) == 0 {
			continue
		}
		s := GroupSummary{Gender: g, N: len(data)}
		s.Min, _ = data.Min()
		s.Max, _ = data.Max()
		s.Mean, _ = data.Mean()
		s.Median, _ = data.Median()
		if len(data) > 1 {
			s.StdDev, _ = data.StandardDeviationSample()
		}
		s.P25, _ = data.PercentileNearestRank(25)
		s.P75, _ = data.PercentileNearestRank(75)
		out = append(out, s)
	}
	return out
}

// SummaryMarkdown renders the join statistics and per-gender summaries.
func SummaryMarkdown(meta Meta, groups []GroupSummary) string {
	st := meta.Stats
	var b strings.Builder
	b.WriteString("[DATASET SUMMARY]\n")
	if meta.MetadataPath != "" {
		b.WriteString(fmt.Sprintf("Metadata: %s (%s rows, %s subjects)\n", meta.MetadataPath, FormatCount(st.MetadataRows), FormatCount(st.Subjects)))
	}
	if meta.MeasurementsPath != "" {
		b.WriteString(fmt.Sprintf("Measurements: %s (%s rows)\n", meta.MeasurementsPath, FormatCount(st.MeasurementRows)))
	}
	b.WriteString("\n[JOIN]\n")
	b.WriteString(fmt.Sprintf("- Kept: %s\n", FormatCount(st.Kept)))
	b.WriteString(fmt.Sprintf("- Unmatched: %s\n", FormatCount(st.Unmatched)))
	b.WriteString(fmt.Sprintf("- Dropped out of range: %s\n", FormatCount(st.DroppedOutOfRange)))
	b.WriteString(fmt.Sprintf("- Dropped invalid: %s\n", FormatCount(st.DroppedInvalid)))
	b.WriteString(fmt.Sprintf("- Duplicate ids: %s\n", FormatCount(st.DuplicateIDs)))

	b.WriteString("\n[VO2 BY GENDER]\n")
	if len(groups) == 0 {
		b.WriteString("No records.\n")
		return b.String()
	}
	b.WriteString("| Gender | n | Min | P25 | Median | Mean | P75 | Max | Std dev |\n")
	b.WriteString("| --- | --- | --- | --- | --- | --- | --- | --- | --- |\n")
	for _, g := range groups {
		sd := "n/a"
		if g.N > 1 {
			sd = formatValue(g.StdDev)
		}
		b.WriteString(fmt.Sprintf("| %s | %s | %s | %s | %s | %s | %s | %s | %s |\n",
			g.Gender, FormatCount(g.N), formatValue(g.Min), formatValue(g.P25), formatValue(g.Median),
			formatValue(g.Mean), formatValue(g.P75), formatValue(g.Max), sd))
	}
	return b.String()
}
