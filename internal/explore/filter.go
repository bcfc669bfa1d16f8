package explore

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/KaramelBytes/vo2scope/internal/dataset"
)

// GenderSet is the set of active categories. Only Male and Female can be
// members.
type GenderSet uint8

const (
	maleBit GenderSet = 1 << iota
	femaleBit
)

// BothGenders is the set {male, female}.
const BothGenders = maleBit | femaleBit

func genderBit(g dataset.Gender) GenderSet {
	switch g {
	case dataset.Male:
		return maleBit
	case dataset.Female:
		return femaleBit
	default:
		return 0
	}
}

// NewGenderSet builds a set; Unknown is ignored.
func NewGenderSet(gs ...dataset.Gender) GenderSet {
	var s GenderSet
	for _, g := range gs {
		s |= genderBit(g)
	}
	return s
}

func (s GenderSet) Has(g dataset.Gender) bool {
	b := genderBit(g)
	return b != 0 && s&b != 0
}

func (s GenderSet) With(g dataset.Gender) GenderSet    { return s | genderBit(g) }
func (s GenderSet) Without(g dataset.Gender) GenderSet { return s &^ genderBit(g) }

// Toggle flips membership of g.
func (s GenderSet) Toggle(g dataset.Gender) GenderSet {
	if s.Has(g) {
		return s.Without(g)
	}
	return s.With(g)
}

func (s GenderSet) Empty() bool { return s&BothGenders == 0 }

// Members lists active genders in display order (male first).
func (s GenderSet) Members() []dataset.Gender {
	var out []dataset.Gender
	for _, g := range []dataset.Gender{dataset.Male, dataset.Female} {
		if s.Has(g) {
			out = append(out, g)
		}
	}
	return out
}

func (s GenderSet) String() string {
	m := s.Members()
	if len(m) == 0 {
		return "none"
	}
	parts := make([]string, len(m))
	for i, g := range m {
		parts[i] = string(g)
	}
	return strings.Join(parts, ",")
}

func (s GenderSet) MarshalJSON() ([]byte, error) {
	m := s.Members()
	if m == nil {
		m = []dataset.Gender{}
	}
	return json.Marshal(m)
}

func (s *GenderSet) UnmarshalJSON(b []byte) error {
	var names []string
	if err := json.Unmarshal(b, &names); err != nil {
		return err
	}
	var out GenderSet
	for _, n := range names {
		g, err := dataset.ParseGender(n)
		if err != nil {
			return err
		}
		out = out.With(g)
	}
	*s = out
	return nil
}

// ParseGenderSet parses a comma-separated list such as "male,female".
// "none" and the empty string yield the empty set; "both" and "all" yield
// both genders.
func ParseGenderSet(s string) (GenderSet, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return 0, nil
	case "both", "all":
		return BothGenders, nil
	}
	var out GenderSet
	for _, part := range strings.Split(s, ",") {
		g, err := dataset.ParseGender(part)
		if err != nil {
			return 0, err
		}
		if g == dataset.Unknown {
			return 0, fmt.Errorf("gender %q cannot be filtered on", part)
		}
		out = out.With(g)
	}
	return out, nil
}

// Range is a closed interval. Infinite bounds leave that side open, but NaN
// never falls inside any range.
type Range struct {
	Min float64
	Max float64
}

// Unbounded is (-Inf, +Inf); it still rejects NaN.
func Unbounded() Range { return Range{Min: math.Inf(-1), Max: math.Inf(1)} }

func (r Range) Contains(v float64) bool {
	return v >= r.Min && v <= r.Max
}

// Normalized swaps reversed bounds.
func (r Range) Normalized() Range {
	if r.Min > r.Max {
		return Range{Min: r.Max, Max: r.Min}
	}
	return r
}

func (r Range) String() string {
	return formatBound(r.Min) + ":" + formatBound(r.Max)
}

func formatBound(v float64) string {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

type rangeJSON struct {
	Min *float64 `json:"min"`
	Max *float64 `json:"max"`
}

func (r Range) MarshalJSON() ([]byte, error) {
	var out rangeJSON
	if !math.IsInf(r.Min, 0) && !math.IsNaN(r.Min) {
		v := r.Min
		out.Min = &v
	}
	if !math.IsInf(r.Max, 0) && !math.IsNaN(r.Max) {
		v := r.Max
		out.Max = &v
	}
	return json.Marshal(out)
}

func (r *Range) UnmarshalJSON(b []byte) error {
	var in rangeJSON
	if err := json.Unmarshal(b, &in); err != nil {
		return err
	}
	*r = Unbounded()
	if in.Min != nil {
		r.Min = *in.Min
	}
	if in.Max != nil {
		r.Max = *in.Max
	}
	return nil
}

// ParseRange reads "lo:hi", "lo:" or ":hi". A lone number is a single-point
// range. Reversed bounds are swapped.
func ParseRange(s string) (Range, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == ":" {
		return Unbounded(), nil
	}
	lo, hi, found := strings.Cut(s, ":")
	if !found {
		lo, hi, found = strings.Cut(s, ",")
	}
	if !found {
		v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return Range{}, fmt.Errorf("invalid range %q: %w", s, err)
		}
		return Range{Min: v, Max: v}, nil
	}
	r := Unbounded()
	if t := strings.TrimSpace(lo); t != "" {
		v, err := strconv.ParseFloat(t, 64)
		if err != nil {
			return Range{}, fmt.Errorf("invalid range lower bound %q: %w", t, err)
		}
		r.Min = v
	}
	if t := strings.TrimSpace(hi); t != "" {
		v, err := strconv.ParseFloat(t, 64)
		if err != nil {
			return Range{}, fmt.Errorf("invalid range upper bound %q: %w", t, err)
		}
		r.Max = v
	}
	return r.Normalized(), nil
}

// FilterState is the set of user-chosen inclusion constraints.
type FilterState struct {
	Genders GenderSet `json:"genders"`
	Age     Range     `json:"age"`
	Weight  Range     `json:"weight"`
	Temp    Range     `json:"temperature"`
}

// Admits reports whether rec passes every predicate of s.
func (s FilterState) Admits(rec dataset.MeasurementRecord) bool {
	return s.Genders.Has(rec.Gender) &&
		s.Age.Contains(rec.Age) &&
		s.Weight.Contains(rec.Weight) &&
		s.Temp.Contains(rec.Temperature)
}

// Filter returns, in input order, the records admitted by state. The input
// slice is never modified.
func Filter(records []dataset.MeasurementRecord, state FilterState) []dataset.MeasurementRecord {
	if state.Genders.Empty() {
		return []dataset.MeasurementRecord{}
	}
	out := make([]dataset.MeasurementRecord, 0, len(records))
	for _, r := range records {
		if state.Admits(r) {
			out = append(out, r)
		}
	}
	return out
}

// AttributeExtents holds observed [min,max] per auxiliary attribute.
type AttributeExtents struct {
	Age    Range `json:"age"`
	Weight Range `json:"weight"`
	Temp   Range `json:"temperature"`
}

// Extents scans matched records for the observed range of each attribute.
// An attribute with no valid value yields Unbounded.
func Extents(records []dataset.MeasurementRecord) AttributeExtents {
	age, weight, temp := emptyExtent(), emptyExtent(), emptyExtent()
	for _, r := range records {
		if !r.Matched {
			continue
		}
		widen(&age, r.Age)
		widen(&weight, r.Weight)
		widen(&temp, r.Temperature)
	}
	return AttributeExtents{Age: finish(age), Weight: finish(weight), Temp: finish(temp)}
}

func emptyExtent() Range { return Range{Min: math.Inf(1), Max: math.Inf(-1)} }

func widen(r *Range, v float64) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return
	}
	if v < r.Min {
		r.Min = v
	}
	if v > r.Max {
		r.Max = v
	}
}

func finish(r Range) Range {
	if r.Min > r.Max {
		return Unbounded()
	}
	return r
}

// DefaultFilterState enables both genders with every range set to the
// observed extent of the data.
func DefaultFilterState(records []dataset.MeasurementRecord) FilterState {
	ext := Extents(records)
	return FilterState{Genders: BothGenders, Age: ext.Age, Weight: ext.Weight, Temp: ext.Temp}
}

// CountByGender tallies records per gender, including unknown.
func CountByGender(records []dataset.MeasurementRecord) map[dataset.Gender]int {
	out := map[dataset.Gender]int{}
	for _, r := range records {
		out[r.Gender]++
	}
	return out
}
