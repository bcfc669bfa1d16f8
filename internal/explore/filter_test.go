package explore

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/KaramelBytes/vo2scope/internal/dataset"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rec(id string, vo2 float64, g dataset.Gender, age, weight, temp float64) dataset.MeasurementRecord {
	return dataset.MeasurementRecord{SubjectID: id, VO2: vo2, Gender: g, Age: age, Weight: weight, Temperature: temp, Matched: g != dataset.Unknown}
}

func unmatched(id string, vo2 float64) dataset.MeasurementRecord {
	nan := math.NaN()
	return dataset.MeasurementRecord{SubjectID: id, VO2: vo2, Gender: dataset.Unknown, Age: nan, Weight: nan, Temperature: nan}
}

func sampleRecords() []dataset.MeasurementRecord {
	return []dataset.MeasurementRecord{
		rec("m1", 42, dataset.Male, 25, 75, 36.8),
		rec("f1", 38, dataset.Female, 31, 58, 36.6),
		rec("m2", 51, dataset.Male, 45, 90, 37.0),
		rec("f2", 29, dataset.Female, 52, 64, 36.9),
		unmatched("u1", 33),
		rec("m3", 47, dataset.Male, math.NaN(), 80, 37.1),
	}
}

func openState(g GenderSet) FilterState {
	return FilterState{Genders: g, Age: Unbounded(), Weight: Unbounded(), Temp: Unbounded()}
}

func ids(recs []dataset.MeasurementRecord) []string {
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = r.SubjectID
	}
	return out
}

func TestFilter_EmptyGenderSetYieldsNothing(t *testing.T) {
	st := FilterState{Genders: 0, Age: Unbounded(), Weight: Unbounded(), Temp: Unbounded()}
	out := Filter(sampleRecords(), st)
	require.NotNil(t, out)
	assert.Len(t, out, 0)
}

func TestFilter_GenderAndRanges(t *testing.T) {
	recs := sampleRecords()
	assert.Equal(t, []string{"m1", "f1", "m2", "f2"}, ids(Filter(recs, openState(BothGenders))),
		"NaN age and unknown subjects fail even open ranges")
	assert.Equal(t, []string{"m1", "m2"}, ids(Filter(recs, openState(NewGenderSet(dataset.Male)))))

	st := openState(BothGenders)
	st.Age = Range{Min: 25, Max: 45}
	assert.Equal(t, []string{"m1", "f1", "m2"}, ids(Filter(recs, st)), "bounds are inclusive")

	st.Weight = Range{Min: 60, Max: 100}
	assert.Equal(t, []string{"m1", "m2"}, ids(Filter(recs, st)))

	st.Temp = Range{Min: 36.9, Max: 37.5}
	assert.Equal(t, []string{"m2"}, ids(Filter(recs, st)))
}

func TestFilter_UnmatchedExcludedByRanges(t *testing.T) {
	recs := []dataset.MeasurementRecord{unmatched("x", 40)}
	st := openState(BothGenders)
	assert.Empty(t, Filter(recs, st))
	assert.False(t, Range{Min: 0, Max: 100}.Contains(math.NaN()))
}

func TestFilter_SubsetIdempotentAndPure(t *testing.T) {
	recs := sampleRecords()
	before := ids(recs)
	st := openState(BothGenders)
	st.Weight = Range{Min: 55, Max: 80}
	once := Filter(recs, st)
	twice := Filter(once, st)
	assert.Equal(t, ids(once), ids(twice))
	assert.Subset(t, ids(recs), ids(once))
	assert.Equal(t, before, ids(recs))
}

func TestGenderSet(t *testing.T) {
	var s GenderSet
	assert.True(t, s.Empty())
	s = s.Toggle(dataset.Male)
	assert.True(t, s.Has(dataset.Male))
	assert.False(t, s.Has(dataset.Female))
	s = s.With(dataset.Unknown)
	assert.False(t, s.Has(dataset.Unknown))
	s = s.Toggle(dataset.Female).Toggle(dataset.Male)
	assert.Equal(t, []dataset.Gender{dataset.Female}, s.Members())
	assert.Equal(t, "female", s.String())

	b, err := json.Marshal(BothGenders)
	require.NoError(t, err)
	assert.JSONEq(t, `["male","female"]`, string(b))
	var back GenderSet
	require.NoError(t, json.Unmarshal([]byte(`["female"]`), &back))
	assert.Equal(t, NewGenderSet(dataset.Female), back)

	parsed, err := ParseGenderSet("male, female")
	require.NoError(t, err)
	assert.Equal(t, BothGenders, parsed)
	parsed, err = ParseGenderSet("none")
	require.NoError(t, err)
	assert.True(t, parsed.Empty())
	_, err = ParseGenderSet("unknown")
	assert.Error(t, err)
}

func TestParseRange(t *testing.T) {
	r, err := ParseRange("20:40")
	require.NoError(t, err)
	assert.Equal(t, Range{Min: 20, Max: 40}, r)

	r, err = ParseRange("40:20")
	require.NoError(t, err)
	assert.Equal(t, Range{Min: 20, Max: 40}, r)

	r, err = ParseRange("36.5:")
	require.NoError(t, err)
	assert.Equal(t, 36.5, r.Min)
	assert.True(t, math.IsInf(r.Max, 1))

	r, err = ParseRange(":-1")
	require.NoError(t, err)
	assert.True(t, math.IsInf(r.Min, -1))
	assert.Equal(t, -1.0, r.Max)

	r, err = ParseRange("42")
	require.NoError(t, err)
	assert.Equal(t, Range{Min: 42, Max: 42}, r)

	_, err = ParseRange("a:b")
	assert.Error(t, err)
}

func TestRangeJSONOpenBounds(t *testing.T) {
	b, err := json.Marshal(Range{Min: 10, Max: math.Inf(1)})
	require.NoError(t, err)
	assert.JSONEq(t, `{"min":10,"max":null}`, string(b))

	var r Range
	require.NoError(t, json.Unmarshal([]byte(`{"min":null,"max":5}`), &r))
	assert.True(t, math.IsInf(r.Min, -1))
	assert.Equal(t, 5.0, r.Max)
}

func TestDefaultFilterStateUsesExtents(t *testing.T) {
	st := DefaultFilterState(sampleRecords())
	assert.Equal(t, BothGenders, st.Genders)
	assert.Equal(t, Range{Min: 25, Max: 52}, st.Age)
	assert.Equal(t, Range{Min: 58, Max: 90}, st.Weight)
	assert.Equal(t, Range{Min: 36.6, Max: 37.1}, st.Temp)

	empty := DefaultFilterState(nil)
	assert.True(t, math.IsInf(empty.Age.Min, -1))
}
