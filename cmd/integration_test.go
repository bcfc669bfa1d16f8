package cmd

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/KaramelBytes/vo2scope/internal/dataset"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// resetFlags restores every flag to its default so state does not leak
// between invocations of the shared command tree.
func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

// execCmd runs the root command with args and returns what it wrote.
func execCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

// runCmd is execCmd for invocations that must succeed.
func runCmd(t *testing.T, args ...string) string {
	t.Helper()
	out, err := execCmd(t, args...)
	if err != nil {
		t.Fatalf("command %v failed: %v", args, err)
	}
	return out
}

// writeFixtures creates a small metadata/measurement pair and isolates HOME.
func writeFixtures(t *testing.T) (home, meta, meas string) {
	t.Helper()
	home = t.TempDir()
	t.Setenv("HOME", home)
	meta = filepath.Join(home, "subject-info.csv")
	meas = filepath.Join(home, "test_measure.csv")
	metaCSV := "ID,Sex,Age,Weight,Temperature\n1,0,25,75,36.8\n2,1,31,58,36.6\n3,0,45,90,37.0\n4,1,52,64,36.9\n"
	measCSV := "ID,VO2\n1,4250\n2,3800\n3,5100\n4,2900\n5,3300\n6,9000\n"
	if err := os.WriteFile(meta, []byte(metaCSV), 0o644); err != nil {
		t.Fatalf("write metadata: %v", err)
	}
	if err := os.WriteFile(meas, []byte(measCSV), 0o644); err != nil {
		t.Fatalf("write measurements: %v", err)
	}
	return home, meta, meas
}

func TestCLI_HistogramMarkdown(t *testing.T) {
	_, meta, meas := writeFixtures(t)
	out := runCmd(t, "histogram", "--metadata", meta, "--measurements", meas)
	for _, want := range []string{
		"[DATASET SUMMARY]",
		"Records: 5 of 6 measurement rows kept",
		"Filtered: 4 (male 2, female 2)",
		"[HISTOGRAM]",
		"Domain: [28.0, 52.0], 30 bins of width 0.8",
		"No range selected.",
		"1 measurements had no matching subject",
		"1 measurements fell outside the valid VO2 range",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in output:\n%s", want, out)
		}
	}
}

func TestCLI_HistogramJSONWithFiltersAndBrush(t *testing.T) {
	_, meta, meas := writeFixtures(t)
	out := runCmd(t, "histogram", "--metadata", meta, "--measurements", meas,
		"--gender", "female", "--age", "30:", "--bins", "5", "--brush", "35:45", "--format", "json")

	var doc struct {
		View struct {
			Histogram struct {
				BinCount int               `json:"bin_count"`
				Series   []json.RawMessage `json:"series"`
			} `json:"histogram"`
			Selection struct {
				Total  int `json:"total"`
				Male   int `json:"male"`
				Female int `json:"female"`
			} `json:"selection"`
		} `json:"view"`
	}
	if err := json.Unmarshal([]byte(out), &doc); err != nil {
		t.Fatalf("decode json: %v\n%s", err, out)
	}
	if doc.View.Histogram.BinCount != 5 || len(doc.View.Histogram.Series) != 1 {
		t.Fatalf("unexpected histogram: %+v", doc.View.Histogram)
	}
	sel := doc.View.Selection
	if sel.Total != 1 || sel.Female != 1 || sel.Male != 0 {
		t.Fatalf("unexpected selection: %+v", sel)
	}
}

func TestCLI_HistogramNoGenderAndOutputFile(t *testing.T) {
	home, meta, meas := writeFixtures(t)
	path := filepath.Join(home, "report.md")
	out := runCmd(t, "histogram", "--metadata", meta, "--measurements", meas, "--gender", "none", "-o", path)
	if !strings.Contains(out, "✓ Wrote histogram to") {
		t.Fatalf("unexpected output: %s", out)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	if !strings.Contains(string(b), "Domain: [0.0, 60.0]") || !strings.Contains(string(b), "No active gender") {
		t.Fatalf("expected empty fallback histogram:\n%s", b)
	}
}

func TestCLI_Summary(t *testing.T) {
	_, meta, meas := writeFixtures(t)
	out := runCmd(t, "summary", "--metadata", meta, "--measurements", meas)
	if !strings.Contains(out, "[VO2 BY GENDER]") || !strings.Contains(out, "| male | 2 |") {
		t.Fatalf("unexpected summary:\n%s", out)
	}
	if !strings.Contains(out, "- Unmatched: 1") {
		t.Fatalf("missing join stats:\n%s", out)
	}
}

func TestCLI_LoadFailure(t *testing.T) {
	home, _, meas := writeFixtures(t)
	_, err := execCmd(t, "histogram", "--metadata", filepath.Join(home, "missing.csv"), "--measurements", meas)
	var le *dataset.LoadError
	if !errors.As(err, &le) || le.Source != "metadata" {
		t.Fatalf("expected metadata LoadError, got %v", err)
	}

	if _, err := execCmd(t, "histogram", "--measurements", meas); err == nil {
		t.Fatal("expected an error without a metadata file")
	}
	_, meta, _ := writeFixtures(t)
	if _, err := execCmd(t, "histogram", "--metadata", meta, "--measurements", meas, "--age", "x:y"); err == nil {
		t.Fatal("expected an error for a malformed range")
	}
}

func TestCLI_SessionExploreRoundTrip(t *testing.T) {
	_, meta, meas := writeFixtures(t)
	out := runCmd(t, "session", "new", "Spring Cohort", "--metadata", meta, "--measurements", meas, "--check")
	if !strings.Contains(out, "✓ Session created:") {
		t.Fatalf("unexpected output: %s", out)
	}
	if _, err := execCmd(t, "session", "new", "spring cohort", "--metadata", meta, "--measurements", meas); err == nil {
		t.Fatal("expected duplicate session to be refused")
	}

	out = runCmd(t, "explore", "--session", "spring-cohort", "--exec", "female; brush 35:45; save; quit; male")
	if !strings.Contains(out, "genders male") || !strings.Contains(out, "selection [35.0, 45.0]: 1 (male 1, female 0), mean 42.5") {
		t.Fatalf("unexpected explore output:\n%s", out)
	}
	if !strings.Contains(out, "✓ Saved session") {
		t.Fatalf("session not saved:\n%s", out)
	}

	out = runCmd(t, "session", "list")
	if !strings.Contains(out, "- Spring Cohort") {
		t.Fatalf("session missing from list:\n%s", out)
	}
	out = runCmd(t, "session", "show", "Spring Cohort")
	if !strings.Contains(out, `"brush"`) || !strings.Contains(out, `"male"`) {
		t.Fatalf("saved state missing:\n%s", out)
	}

	out = runCmd(t, "histogram", "--session", "spring cohort")
	if !strings.Contains(out, "Session: Spring Cohort") || !strings.Contains(out, "- Genders: male") {
		t.Fatalf("session state not applied:\n%s", out)
	}
	if !strings.Contains(out, "Mean VO2: 42.5") {
		t.Fatalf("saved brush not applied:\n%s", out)
	}
}

// chdir switches the working directory for the rest of the test.
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(prev) })
}

func TestCLI_SessionStoresAbsolutePaths(t *testing.T) {
	home, meta, _ := writeFixtures(t)
	chdir(t, home)
	runCmd(t, "session", "new", "relative", "--metadata", "subject-info.csv", "--measurements", "./test_measure.csv")

	out := runCmd(t, "session", "show", "relative")
	var s struct {
		MetadataPath string `json:"metadata_path"`
	}
	if err := json.Unmarshal([]byte(out), &s); err != nil {
		t.Fatalf("decode session: %v\n%s", err, out)
	}
	if !filepath.IsAbs(s.MetadataPath) || filepath.Base(s.MetadataPath) != filepath.Base(meta) {
		t.Fatalf("metadata path not absolute: %q", s.MetadataPath)
	}

	chdir(t, t.TempDir())
	out = runCmd(t, "histogram", "--session", "relative")
	if !strings.Contains(out, "Records: 5 of 6 measurement rows kept") {
		t.Fatalf("session did not resolve from another directory:\n%s", out)
	}
}

func TestCLI_ExploreUnknownCommand(t *testing.T) {
	_, meta, meas := writeFixtures(t)
	if _, err := execCmd(t, "explore", "--metadata", meta, "--measurements", meas, "--exec", "frobnicate"); err == nil {
		t.Fatal("expected unknown explore command to fail")
	}
}

func TestCLI_ConfigSetShow(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	cfgPath := filepath.Join(home, "vo2scope.yaml")

	runCmd(t, "--config", cfgPath, "config", "set", "bin_count", "12")
	runCmd(t, "--config", cfgPath, "config", "set", "delimiter", ";")
	out := runCmd(t, "--config", cfgPath, "config", "show")
	if !strings.Contains(out, "bin_count: 12") || !strings.Contains(out, "delimiter: ;") {
		t.Fatalf("unexpected config:\n%s", out)
	}
	if _, err := execCmd(t, "--config", cfgPath, "config", "set", "bin_count", "0"); err == nil {
		t.Fatal("expected invalid bin_count to be rejected")
	}
	if _, err := execCmd(t, "--config", cfgPath, "config", "set", "nope", "1"); err == nil {
		t.Fatal("expected unknown key to be rejected")
	}
}

func TestCLI_InvalidConfigFallsBackToDefaults(t *testing.T) {
	home, meta, meas := writeFixtures(t)
	cfgPath := filepath.Join(home, "broken.yaml")
	if err := os.WriteFile(cfgPath, []byte("vo2_scale: 0\nbin_count: -4\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	out := runCmd(t, "--config", cfgPath, "histogram", "--metadata", meta, "--measurements", meas)
	if !strings.Contains(out, "Records: 5 of 6 measurement rows kept") || !strings.Contains(out, "30 bins") {
		t.Fatalf("invalid config was not replaced by defaults:\n%s", out)
	}
}
