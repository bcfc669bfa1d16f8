package explore

import (
	"encoding/json"
	"testing"

	"github.com/KaramelBytes/vo2scope/internal/dataset"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeSelectionStats(t *testing.T) {
	recs := append(vo2s(dataset.Male, 30, 40, 50), vo2s(dataset.Female, 35, 45)...)
	recs = append(recs, unmatched("u", 42))

	s := ComputeSelectionStats(recs, Range{Min: 35, Max: 45})
	assert.False(t, s.Empty)
	assert.Equal(t, 3, s.Total)
	assert.Equal(t, 1, s.Male)
	assert.Equal(t, 2, s.Female)
	assert.Equal(t, s.Total, s.Male+s.Female, "unknown records are not counted")
	assert.InDelta(t, 40.0, s.Mean, 1e-9)
	assert.InDelta(t, 40.0, s.Median, 1e-9)
	assert.InDelta(t, 5.0, s.StdDev, 1e-9)
	assert.InDelta(t, 40.0, s.MaleMean, 1e-9)
	assert.InDelta(t, 40.0, s.FemaleMean, 1e-9)

	m, ok := s.MeanValue()
	assert.True(t, ok)
	assert.InDelta(t, 40.0, m, 1e-9)
}

func TestComputeSelectionStats_ReversedAndInclusive(t *testing.T) {
	recs := vo2s(dataset.Female, 20, 25, 30)
	s := ComputeSelectionStats(recs, Range{Min: 30, Max: 20})
	assert.Equal(t, Range{Min: 20, Max: 30}, s.Range)
	assert.Equal(t, 3, s.Total)
}

func TestComputeSelectionStats_Empty(t *testing.T) {
	s := ComputeSelectionStats(vo2s(dataset.Male, 10, 70), Range{Min: 30, Max: 40})
	assert.True(t, s.Empty)
	assert.Zero(t, s.Total)
	_, ok := s.MeanValue()
	assert.False(t, ok)

	b, err := json.Marshal(s)
	require.NoError(t, err)
	var got map[string]any
	require.NoError(t, json.Unmarshal(b, &got))
	assert.Equal(t, true, got["empty"])
	assert.Nil(t, got["mean"])
	assert.Nil(t, got["median"])
	assert.Nil(t, got["std_dev"])

	assert.True(t, ComputeSelectionStats(nil, Range{Min: 0, Max: 80}).Empty)
}

func TestSelectionStatsJSON_PartialNulls(t *testing.T) {
	s := ComputeSelectionStats(vo2s(dataset.Female, 33), Range{Min: 30, Max: 40})
	b, err := json.Marshal(s)
	require.NoError(t, err)
	var got map[string]any
	require.NoError(t, json.Unmarshal(b, &got))
	assert.Equal(t, 33.0, got["mean"])
	assert.Nil(t, got["std_dev"], "single value has no sample deviation")
	assert.Nil(t, got["male_mean"])
	assert.Equal(t, 33.0, got["female_mean"])
	assert.Equal(t, map[string]any{"min": 30.0, "max": 40.0}, got["range"])
}
