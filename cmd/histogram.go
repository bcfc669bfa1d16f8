package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/KaramelBytes/vo2scope/internal/explore"
	"github.com/KaramelBytes/vo2scope/internal/report"
	"github.com/spf13/cobra"
)

var (
	histSrc     sourceFlags
	histGender  string
	histAge     string
	histWeight  string
	histTemp    string
	histBins    int
	histBrush   string
	histNice    bool
	histFormat  string
	histOutput  string
	histSession string
)

var histogramCmd = &cobra.Command{
	Use:   "histogram",
	Short: "Filter the joined records and print per-gender VO2 histograms",
	Long: `Filter the joined records and print per-gender VO2 histograms.

Ranges use lo:hi, lo: or :hi. Unset ranges default to the full extent of the
data, or to the filter stored in --session.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, err := loadSession(histSession)
		if err != nil {
			return err
		}
		src, err := histSrc.sources(sess)
		if err != nil {
			return err
		}
		ds, err := loadDataset(cmd.Context(), src)
		if err != nil {
			return err
		}

		c := settings()
		opt := explore.Options{Bins: c.BinCount, Nice: c.NiceDomain}
		if cmd.Flags().Changed("nice") {
			opt.Nice = histNice
		}
		e := explore.New(ds.Records, opt)
		if sess != nil {
			if err := sess.Apply(e); err != nil {
				return err
			}
		}
		if err := applyFilterFlags(cmd, e, filterFlags{
			gender: histGender, age: histAge, weight: histWeight, temp: histTemp,
			bins: histBins, brush: histBrush,
		}); err != nil {
			return err
		}

		meta := reportMeta(src, ds, sess)
		var out string
		switch strings.ToLower(histFormat) {
		case "md", "markdown", "":
			out = report.Markdown(e.View(), meta)
		case "json":
			b, err := report.JSON(e.View(), meta)
			if err != nil {
				return err
			}
			out = string(b) + "\n"
		default:
			return fmt.Errorf("unsupported --format: %s (use md|json)", histFormat)
		}
		return emit(cmd, out, histOutput, "histogram")
	},
}

// filterFlags carries the raw filter flag values of one invocation.
type filterFlags struct {
	gender, age, weight, temp string
	bins                      int
	brush                     string
}

// applyFilterFlags applies the flags that were set on the command line.
func applyFilterFlags(cmd *cobra.Command, e *explore.Explorer, f filterFlags) error {
	fl := cmd.Flags()
	if fl.Changed("bins") {
		if _, err := e.SetBins(f.bins); err != nil {
			return err
		}
	}
	if fl.Changed("gender") {
		g, err := explore.ParseGenderSet(f.gender)
		if err != nil {
			return fmt.Errorf("--gender: %w", err)
		}
		e.SetGenders(g)
	}
	ranges := []struct {
		flag, val string
		set       func(explore.Range) explore.View
	}{
		{"age", f.age, e.SetAgeRange},
		{"weight", f.weight, e.SetWeightRange},
		{"temp", f.temp, e.SetTempRange},
		{"brush", f.brush, e.SelectRange},
	}
	for _, r := range ranges {
		if !fl.Changed(r.flag) {
			continue
		}
		rg, err := explore.ParseRange(r.val)
		if err != nil {
			return fmt.Errorf("--%s: %w", r.flag, err)
		}
		r.set(rg)
	}
	return nil
}

// emit writes out to path, or to the command's stdout when path is empty.
func emit(cmd *cobra.Command, out, path, what string) error {
	if path == "" {
		fmt.Fprint(cmd.OutOrStdout(), out)
		return nil
	}
	if err := os.WriteFile(path, []byte(out), 0o644); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ Wrote %s to %s\n", what, path)
	return nil
}

func init() {
	rootCmd.AddCommand(histogramCmd)
	histSrc.register(histogramCmd)
	histogramCmd.Flags().StringVarP(&histGender, "gender", "g", "both", "active genders: male|female|both|none or a comma list")
	histogramCmd.Flags().StringVar(&histAge, "age", "", "age range lo:hi")
	histogramCmd.Flags().StringVar(&histWeight, "weight", "", "weight range lo:hi")
	histogramCmd.Flags().StringVar(&histTemp, "temp", "", "temperature range lo:hi")
	histogramCmd.Flags().IntVarP(&histBins, "bins", "k", 30, "number of histogram bins (overrides config)")
	histogramCmd.Flags().StringVar(&histBrush, "brush", "", "selected VO2 range lo:hi for selection statistics")
	histogramCmd.Flags().BoolVar(&histNice, "nice", true, "round the histogram domain to nice values (overrides config)")
	histogramCmd.Flags().StringVarP(&histFormat, "format", "f", "md", "output format: md|json")
	histogramCmd.Flags().StringVarP(&histOutput, "output", "o", "", "write the report to a file instead of stdout")
	histogramCmd.Flags().StringVarP(&histSession, "session", "s", "", "start from a saved session")
}
