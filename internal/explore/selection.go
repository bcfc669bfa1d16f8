package explore

import (
	"encoding/json"

	"github.com/KaramelBytes/vo2scope/internal/dataset"
	"github.com/montanaflynn/stats"
)

// SelectionStats summarizes the records inside a brushed VO2 range. When
// Empty is set the statistical fields are zero and must not be shown as
// values.
type SelectionStats struct {
	Range  Range
	Total  int
	Male   int
	Female int
	Empty  bool

	Mean       float64
	Median     float64
	StdDev     float64
	MaleMean   float64
	FemaleMean float64
}

// ComputeSelectionStats aggregates male and female records whose VO2 lies in
// sel (inclusive, bounds swapped if reversed). Records of other genders are
// ignored so Male+Female always equals Total.
func ComputeSelectionStats(records []dataset.MeasurementRecord, sel Range) SelectionStats {
	sel = sel.Normalized()
	out := SelectionStats{Range: sel}
	var all, male, female stats.Float64Data
	for _, r := range records {
		if !sel.Contains(r.VO2) {
			continue
		}
		switch r.Gender {
		case dataset.Male:
			male = append(male, r.VO2)
		case dataset.Female:
			female = append(female, r.VO2)
		default:
			continue
		}
		all = append(all, r.VO2)
	}
	out.Male, out.Female, out.Total = len(male), len(female), len(all)
	if out.Total == 0 {
		out.Empty = true
		return out
	}
	out.Mean, _ = stats.Mean(all)
	out.Median, _ = stats.Median(all)
	if len(all) > 1 {
		out.StdDev, _ = stats.StandardDeviationSample(all)
	}
	if len(male) > 0 {
		out.MaleMean, _ = stats.Mean(male)
	}
	if len(female) > 0 {
		out.FemaleMean, _ = stats.Mean(female)
	}
	return out
}

// MeanValue returns the mean and whether it is defined.
func (s SelectionStats) MeanValue() (float64, bool) {
	if s.Empty {
		return 0, false
	}
	return s.Mean, true
}

type selectionJSON struct {
	Range      Range    `json:"range"`
	Total      int      `json:"total"`
	Male       int      `json:"male"`
	Female     int      `json:"female"`
	Empty      bool     `json:"empty"`
	Mean       *float64 `json:"mean"`
	Median     *float64 `json:"median"`
	StdDev     *float64 `json:"std_dev"`
	MaleMean   *float64 `json:"male_mean"`
	FemaleMean *float64 `json:"female_mean"`
}

// MarshalJSON emits null statistics for an empty selection, and for
// per-gender means with no members.
func (s SelectionStats) MarshalJSON() ([]byte, error) {
	out := selectionJSON{Range: s.Range, Total: s.Total, Male: s.Male, Female: s.Female, Empty: s.Empty}
	if !s.Empty {
		out.Mean, out.Median = ptr(s.Mean), ptr(s.Median)
		if s.Total > 1 {
			out.StdDev = ptr(s.StdDev)
		}
		if s.Male > 0 {
			out.MaleMean = ptr(s.MaleMean)
		}
		if s.Female > 0 {
			out.FemaleMean = ptr(s.FemaleMean)
		}
	}
	return json.Marshal(out)
}

func ptr(v float64) *float64 { return &v }
