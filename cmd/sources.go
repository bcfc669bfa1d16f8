package cmd

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	cfgpkg "github.com/KaramelBytes/vo2scope/internal/config"
	"github.com/KaramelBytes/vo2scope/internal/dataset"
	"github.com/KaramelBytes/vo2scope/internal/logging"
	"github.com/KaramelBytes/vo2scope/internal/report"
	"github.com/KaramelBytes/vo2scope/internal/session"
	"github.com/KaramelBytes/vo2scope/internal/utils"
	"github.com/spf13/cobra"
)

// sourceFlags are the input selection flags shared by every command that
// loads data.
type sourceFlags struct {
	metadata     string
	measurements string
	delimiter    string
	decimal      string
	thousands    string
	sheetName    string
	sheetIndex   int
}

func (f *sourceFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.metadata, "metadata", "", "subject metadata file (CSV/TSV/XLSX with ID, Sex, Age, Weight, Temperature)")
	cmd.Flags().StringVar(&f.measurements, "measurements", "", "measurement file (CSV/TSV/XLSX with ID, VO2)")
	cmd.Flags().StringVar(&f.delimiter, "delimiter", "", "CSV delimiter: ',' | ';' | 'tab' (sniffed if omitted)")
	cmd.Flags().StringVar(&f.decimal, "decimal", "", "decimal separator: '.'|'comma' (auto-detect if omitted)")
	cmd.Flags().StringVar(&f.thousands, "thousands", "", "thousands separator: ','|'.'|'space' (auto-detect if omitted)")
	cmd.Flags().StringVar(&f.sheetName, "sheet-name", "", "XLSX: sheet name to read")
	cmd.Flags().IntVar(&f.sheetIndex, "sheet-index", 1, "XLSX: 1-based sheet index (used if --sheet-name not provided)")
}

// settings returns the loaded configuration, or the defaults when loading
// was skipped.
func settings() *cfgpkg.Global {
	if cfg != nil {
		return cfg
	}
	d := cfgpkg.Defaults()
	return &d
}

// sources resolves input paths and parsing options. Flags win over the
// session, which wins over config.
func (f *sourceFlags) sources(sess *session.Session) (dataset.Sources, error) {
	c := settings()
	var src dataset.Sources

	src.MetadataPath = firstNonEmpty(f.metadata, sessionField(sess, func(s *session.Session) string { return s.MetadataPath }), c.MetadataPath)
	src.MeasurementsPath = firstNonEmpty(f.measurements, sessionField(sess, func(s *session.Session) string { return s.MeasurementsPath }), c.MeasurementsPath)
	if src.MetadataPath == "" {
		return src, errors.New("metadata file is required (--metadata, a session, or config metadata_path)")
	}
	if src.MeasurementsPath == "" {
		return src, errors.New("measurements file is required (--measurements, a session, or config measurements_path)")
	}
	for _, p := range []*string{&src.MetadataPath, &src.MeasurementsPath} {
		expanded, err := utils.ExpandHome(*p)
		if err != nil {
			return src, err
		}
		abs, err := filepath.Abs(expanded)
		if err != nil {
			return src, fmt.Errorf("resolve %s: %w", *p, err)
		}
		*p = abs
	}

	src.Read = c.ReadOptions()
	if f.delimiter != "" {
		d, err := parseDelimiter(f.delimiter)
		if err != nil {
			return src, err
		}
		src.Read.Delimiter = d
	}
	if f.sheetName != "" {
		src.Read.SheetName = f.sheetName
	}
	src.Read.SheetIndex = f.sheetIndex

	src.Normalize = c.NormalizeOptions()
	switch strings.ToLower(strings.TrimSpace(f.decimal)) {
	case ",", "comma":
		src.Normalize.Numbers.DecimalSeparator = ','
	case ".", "dot":
		src.Normalize.Numbers.DecimalSeparator = '.'
	case "":
	default:
		return src, fmt.Errorf("unsupported --decimal: %s (use '.'|'comma')", f.decimal)
	}
	switch strings.ToLower(strings.TrimSpace(f.thousands)) {
	case ",":
		src.Normalize.Numbers.ThousandsSeparator = ','
	case ".":
		src.Normalize.Numbers.ThousandsSeparator = '.'
	case "space", " ":
		src.Normalize.Numbers.ThousandsSeparator = ' '
	case "":
	default:
		return src, fmt.Errorf("unsupported --thousands: %s (use ','|'.'|'space')", f.thousands)
	}
	return src, nil
}

func parseDelimiter(s string) (rune, error) {
	switch s {
	case ",":
		return ',', nil
	case "\t", "tab", `\t`:
		return '\t', nil
	case ";":
		return ';', nil
	case "|":
		return '|', nil
	default:
		return 0, fmt.Errorf("unsupported --delimiter: %s", s)
	}
}

func sessionField(s *session.Session, get func(*session.Session) string) string {
	if s == nil {
		return ""
	}
	return get(s)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// loadDataset reads and joins both sources, logging what was kept.
func loadDataset(ctx context.Context, src dataset.Sources) (*dataset.Dataset, error) {
	l := logger.Named("load")
	start := time.Now()
	l.Debug("loading sources",
		logging.String("metadata", src.MetadataPath),
		logging.String("measurements", src.MeasurementsPath))
	ds, err := dataset.Load(ctx, src)
	if err != nil {
		l.Error("load failed", logging.Err(err))
		return nil, err
	}
	st := ds.Stats
	l.Info("loaded dataset",
		logging.Int("subjects", st.Subjects),
		logging.Int("kept", st.Kept),
		logging.Int("unmatched", st.Unmatched),
		logging.Int("dropped_out_of_range", st.DroppedOutOfRange),
		logging.Int("dropped_invalid", st.DroppedInvalid),
		logging.Duration("elapsed", time.Since(start)))
	if st.Kept == 0 {
		l.Warn("no measurement survived normalization", logging.Int("rows", st.MeasurementRows))
	}
	if st.DuplicateIDs > 0 {
		l.Warn("duplicate subject ids in metadata; last row wins", logging.Int("duplicates", st.DuplicateIDs))
	}
	return ds, nil
}

func reportMeta(src dataset.Sources, ds *dataset.Dataset, sess *session.Session) report.Meta {
	m := report.Meta{MetadataPath: src.MetadataPath, MeasurementsPath: src.MeasurementsPath, Stats: ds.Stats}
	if sess != nil {
		m.Session = sess.Name
	}
	return m
}

// sessionsDir resolves and creates the configured sessions root.
func sessionsDir() (string, error) {
	dir := settings().SessionsDir
	if dir == "" {
		base, err := cfgpkg.Dir()
		if err != nil {
			return "", err
		}
		dir = filepath.Join(base, "sessions")
	}
	dir, err := utils.ExpandHome(dir)
	if err != nil {
		return "", err
	}
	if err := utils.EnsureDir(dir); err != nil {
		return "", err
	}
	return dir, nil
}

// loadSession returns nil when name is empty.
func loadSession(name string) (*session.Session, error) {
	if name == "" {
		return nil, nil
	}
	root, err := sessionsDir()
	if err != nil {
		return nil, err
	}
	return session.LoadByName(root, name)
}
