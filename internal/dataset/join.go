package dataset

import (
	"fmt"
	"math"
	"strings"
)

// Gender is the categorical group a subject belongs to.
type Gender string

const (
	Male    Gender = "male"
	Female  Gender = "female"
	Unknown Gender = "unknown"
)

// ParseGender accepts "male"/"m" and "female"/"f" case-insensitively.
func ParseGender(s string) (Gender, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "male", "m":
		return Male, nil
	case "female", "f":
		return Female, nil
	case "unknown":
		return Unknown, nil
	default:
		return Unknown, fmt.Errorf("unknown gender %q (use male or female)", s)
	}
}

// genderFromSex maps the metadata Sex code: "1" female, "0" male.
func genderFromSex(sex string) Gender {
	switch strings.TrimSpace(sex) {
	case "1":
		return Female
	case "0":
		return Male
	default:
		return Unknown
	}
}

// MetadataRow is one raw row of the subject metadata source.
type MetadataRow struct {
	ID          string
	Sex         string
	Age         string
	Weight      string
	Temperature string
}

// MeasurementRow is one raw row of the test measurement source.
type MeasurementRow struct {
	ID  string
	VO2 string
}

// SubjectMetadata is the normalized metadata of one subject.
type SubjectMetadata struct {
	ID          string
	Gender      Gender
	Age         float64
	Weight      float64
	Temperature float64
}

// MeasurementRecord is a measurement joined with its subject metadata.
// Unmatched records carry Gender Unknown and NaN for Age, Weight and
// Temperature.
type MeasurementRecord struct {
	SubjectID   string
	VO2         float64
	Gender      Gender
	Age         float64
	Weight      float64
	Temperature float64
	Matched     bool
}

// NormalizeOptions controls VO2 conversion and the physiological bounds.
type NormalizeOptions struct {
	// Scale divides the raw VO2 value.
	Scale float64
	// Min and Max bound the normalized VO2 (inclusive).
	Min, Max float64
	Numbers  NumberFormat
}

// DefaultNormalizeOptions returns the standard VO2 scale and bounds.
func DefaultNormalizeOptions() NormalizeOptions {
	return NormalizeOptions{Scale: 100, Min: 0, Max: 80}
}

// JoinStats summarizes what the join kept and dropped.
type JoinStats struct {
	MetadataRows      int `json:"metadata_rows"`
	Subjects          int `json:"subjects"`
	DuplicateIDs      int `json:"duplicate_ids"`
	SkippedEmptyIDs   int `json:"skipped_empty_ids"`
	MeasurementRows   int `json:"measurement_rows"`
	Kept              int `json:"kept"`
	DroppedOutOfRange int `json:"dropped_out_of_range"`
	DroppedInvalid    int `json:"dropped_invalid"`
	Unmatched         int `json:"unmatched"`
}

// SubjectIndex maps trimmed subject ids to metadata.
type SubjectIndex map[string]SubjectMetadata

// BuildSubjectIndex normalizes metadata rows into an index. Rows with an
// empty id are skipped; a repeated id replaces the earlier row.
func BuildSubjectIndex(rows []MetadataRow, nf NumberFormat) (SubjectIndex, JoinStats) {
	idx := make(SubjectIndex, len(rows))
	var st JoinStats
	st.MetadataRows = len(rows)
	for _, r := range rows {
		id := strings.TrimSpace(r.ID)
		if id == "" {
			st.SkippedEmptyIDs++
			continue
		}
		if _, ok := idx[id]; ok {
			st.DuplicateIDs++
		}
		idx[id] = SubjectMetadata{
			ID:          id,
			Gender:      genderFromSex(r.Sex),
			Age:         ParseNumber(r.Age, nf),
			Weight:      ParseNumber(r.Weight, nf),
			Temperature: ParseNumber(r.Temperature, nf),
		}
	}
	st.Subjects = len(idx)
	return idx, st
}

// Join produces one record per measurement row whose normalized VO2 lies
// within [opt.Min, opt.Max]. Input order is preserved. The returned stats
// extend the index stats passed in.
func Join(idx SubjectIndex, rows []MeasurementRow, opt NormalizeOptions, st JoinStats) ([]MeasurementRecord, JoinStats) {
	scale := opt.Scale
	if scale == 0 {
		scale = 1
	}
	st.MeasurementRows = len(rows)
	out := make([]MeasurementRecord, 0, len(rows))
	for _, r := range rows {
		raw := ParseNumber(r.VO2, opt.Numbers)
		if math.IsNaN(raw) {
			st.DroppedInvalid++
			continue
		}
		vo2 := raw / scale
		if vo2 < opt.Min || vo2 > opt.Max {
			st.DroppedOutOfRange++
			continue
		}
		id := strings.TrimSpace(r.ID)
		rec := MeasurementRecord{
			SubjectID:   id,
			VO2:         vo2,
			Gender:      Unknown,
			Age:         math.NaN(),
			Weight:      math.NaN(),
			Temperature: math.NaN(),
		}
		if m, ok := idx[id]; ok {
			rec.Gender = m.Gender
			rec.Age = m.Age
			rec.Weight = m.Weight
			rec.Temperature = m.Temperature
			rec.Matched = true
		} else {
			st.Unmatched++
		}
		out = append(out, rec)
	}
	st.Kept = len(out)
	return out, st
}
