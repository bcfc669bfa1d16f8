package dataset

import (
	"context"
	"fmt"
	"strings"

	"github.com/KaramelBytes/vo2scope/internal/logging"
)

// Column names expected in each source. Extra columns are ignored.
var (
	MetadataColumns    = []string{"ID", "Sex", "Age", "Weight", "Temperature"}
	MeasurementColumns = []string{"ID", "VO2"}
)

// Sources names the two inputs and how to read them.
type Sources struct {
	MetadataPath     string
	MeasurementsPath string
	Read             ReadOptions
	Normalize        NormalizeOptions
}

// Dataset is the joined, immutable input to the explorer.
type Dataset struct {
	Subjects SubjectIndex
	Records  []MeasurementRecord
	Stats    JoinStats
}

// Load reads metadata first and measurements second, then joins them. Any
// read or schema failure is returned as a *LoadError.
func Load(ctx context.Context, src Sources) (*Dataset, error) {
	meta, err := ReadTable(ctx, src.MetadataPath, src.Read)
	if err != nil {
		return nil, &LoadError{Source: "metadata", Path: src.MetadataPath, Err: err}
	}
	metaRows, err := MetadataRowsFromTable(meta)
	if err != nil {
		return nil, &LoadError{Source: "metadata", Path: src.MetadataPath, Err: err}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	meas, err := ReadTable(ctx, src.MeasurementsPath, src.Read)
	if err != nil {
		return nil, &LoadError{Source: "measurements", Path: src.MeasurementsPath, Err: err}
	}
	measRows, err := MeasurementRowsFromTable(meas)
	if err != nil {
		return nil, &LoadError{Source: "measurements", Path: src.MeasurementsPath, Err: err}
	}
	log := logging.Default().Named("dataset")
	log.Debug("read metadata", logging.String("path", src.MetadataPath), logging.Int("rows", len(metaRows)))
	log.Debug("read measurements", logging.String("path", src.MeasurementsPath), logging.Int("rows", len(measRows)))
	idx, st := BuildSubjectIndex(metaRows, src.Normalize.Numbers)
	recs, st := Join(idx, measRows, src.Normalize, st)
	return &Dataset{Subjects: idx, Records: recs, Stats: st}, nil
}

// MetadataRowsFromTable projects the metadata columns out of a table.
func MetadataRowsFromTable(t *Table) ([]MetadataRow, error) {
	cols, err := requireColumns(t, MetadataColumns)
	if err != nil {
		return nil, err
	}
	out := make([]MetadataRow, len(t.Rows))
	for i, r := range t.Rows {
		out[i] = MetadataRow{
			ID:          r[cols[0]],
			Sex:         r[cols[1]],
			Age:         r[cols[2]],
			Weight:      r[cols[3]],
			Temperature: r[cols[4]],
		}
	}
	return out, nil
}

// MeasurementRowsFromTable projects the measurement columns out of a table.
func MeasurementRowsFromTable(t *Table) ([]MeasurementRow, error) {
	cols, err := requireColumns(t, MeasurementColumns)
	if err != nil {
		return nil, err
	}
	out := make([]MeasurementRow, len(t.Rows))
	for i, r := range t.Rows {
		out[i] = MeasurementRow{ID: r[cols[0]], VO2: r[cols[1]]}
	}
	return out, nil
}

func requireColumns(t *Table, names []string) ([]int, error) {
	cols := make([]int, len(names))
	var missing []string
	for i, n := range names {
		j, ok := t.Column(n)
		if !ok {
			missing = append(missing, n)
			continue
		}
		cols[i] = j
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s (header: %s)", ErrMissingColumn,
			strings.Join(missing, ", "), strings.Join(t.Header, ", "))
	}
	return cols, nil
}
