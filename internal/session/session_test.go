package session

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/KaramelBytes/vo2scope/internal/dataset"
	"github.com/KaramelBytes/vo2scope/internal/explore"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlug(t *testing.T) {
	assert.Equal(t, "treadmill-study-2024", Slug("  Treadmill Study 2024! "))
	assert.Equal(t, "session", Slug("***"))
}

func TestSaveLoadRoundTrip(t *testing.T) {
	root := t.TempDir()
	s := New("Spring Cohort", "/data/subject-info.csv", "/data/test_measure.csv", root)
	_, err := uuid.Parse(s.ID)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "spring-cohort"), s.RootDir())

	f := explore.FilterState{
		Genders: explore.NewGenderSet(dataset.Female),
		Age:     explore.Range{Min: 20, Max: 40},
		Weight:  explore.Range{Min: 50, Max: math.Inf(1)},
		Temp:    explore.Unbounded(),
	}
	s.Filter = &f
	s.Bins = 12
	s.Brush = &explore.Range{Min: 30, Max: 45}
	require.NoError(t, s.Save())

	got, err := LoadByName(root, "spring cohort")
	require.NoError(t, err)
	assert.Equal(t, s.ID, got.ID)
	assert.Equal(t, "/data/test_measure.csv", got.MeasurementsPath)
	require.NotNil(t, got.Filter)
	assert.Equal(t, f.Genders, got.Filter.Genders)
	assert.Equal(t, f.Age, got.Filter.Age)
	assert.True(t, math.IsInf(got.Filter.Weight.Max, 1), "open bound survives the round trip")
	assert.True(t, math.IsInf(got.Filter.Temp.Min, -1))
	assert.Equal(t, 12, got.Bins)
	assert.Equal(t, explore.Range{Min: 30, Max: 45}, *got.Brush)

	_, err = os.Stat(filepath.Join(s.RootDir(), sessionFileName+".tmp"))
	assert.True(t, os.IsNotExist(err))
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(t.TempDir())
	assert.ErrorContains(t, err, "session not found")

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, sessionFileName), []byte("{"), 0o644))
	_, err = Load(dir)
	assert.ErrorContains(t, err, "parse session")

	_, err = LoadByName(t.TempDir(), " ")
	assert.Error(t, err)
}

func TestList(t *testing.T) {
	root := t.TempDir()
	sessions, err := List(filepath.Join(root, "missing"))
	require.NoError(t, err)
	assert.Empty(t, sessions)

	require.NoError(t, New("beta", "m.csv", "v.csv", root).Save())
	require.NoError(t, New("alpha", "m.csv", "v.csv", root).Save())
	require.NoError(t, os.MkdirAll(filepath.Join(root, "stray"), 0o755))

	sessions, err = List(root)
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, "alpha", sessions[0].Name)
	assert.Equal(t, "beta", sessions[1].Name)
}

func TestCaptureApply(t *testing.T) {
	nan := math.NaN()
	recs := []dataset.MeasurementRecord{
		{SubjectID: "1", VO2: 40, Gender: dataset.Male, Age: 30, Weight: 80, Temperature: 37, Matched: true},
		{SubjectID: "2", VO2: 35, Gender: dataset.Female, Age: 25, Weight: 60, Temperature: 36.8, Matched: true},
		{SubjectID: "3", VO2: 20, Gender: dataset.Unknown, Age: nan, Weight: nan, Temperature: nan},
	}
	src := explore.New(recs, explore.Options{Bins: 30})
	_, err := src.ToggleGender(dataset.Male)
	require.NoError(t, err)
	_, err = src.SetBins(8)
	require.NoError(t, err)
	src.SelectRange(explore.Range{Min: 30, Max: 50})

	s := New("x", "", "", t.TempDir())
	s.Capture(src)
	require.NoError(t, s.Save())
	loaded, err := Load(s.RootDir())
	require.NoError(t, err)

	dst := explore.New(recs, explore.Options{Bins: 30})
	require.NoError(t, loaded.Apply(dst))
	v := dst.View()
	assert.Equal(t, 8, dst.Bins())
	assert.Equal(t, explore.NewGenderSet(dataset.Female), v.Filter.Genders)
	require.NotNil(t, v.Selection)
	assert.Equal(t, 1, v.Selection.Total)
	assert.Equal(t, src.View().Filter, v.Filter)
}
