package cmd

import (
	"fmt"
	"strings"

	"github.com/KaramelBytes/vo2scope/internal/report"
	"github.com/KaramelBytes/vo2scope/internal/utils"
	"github.com/spf13/cobra"
)

var (
	sumSrc     sourceFlags
	sumFormat  string
	sumOutput  string
	sumSession string
)

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Load and join the sources and summarize VO2 by gender",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, err := loadSession(sumSession)
		if err != nil {
			return err
		}
		src, err := sumSrc.sources(sess)
		if err != nil {
			return err
		}
		ds, err := loadDataset(cmd.Context(), src)
		if err != nil {
			return err
		}
		meta := reportMeta(src, ds, sess)
		groups := report.Summarize(ds.Records)

		var out string
		switch strings.ToLower(sumFormat) {
		case "md", "markdown", "":
			out = report.SummaryMarkdown(meta, groups)
		case "json":
			b, err := utils.PrettyJSON(struct {
				Meta   report.Meta           `json:"meta"`
				Groups []report.GroupSummary `json:"groups"`
			}{meta, groups})
			if err != nil {
				return err
			}
			out = string(b) + "\n"
		default:
			return fmt.Errorf("unsupported --format: %s (use md|json)", sumFormat)
		}
		return emit(cmd, out, sumOutput, "summary")
	},
}

func init() {
	rootCmd.AddCommand(summaryCmd)
	sumSrc.register(summaryCmd)
	summaryCmd.Flags().StringVarP(&sumFormat, "format", "f", "md", "output format: md|json")
	summaryCmd.Flags().StringVarP(&sumOutput, "output", "o", "", "write the summary to a file instead of stdout")
	summaryCmd.Flags().StringVarP(&sumSession, "session", "s", "", "read input paths from a saved session")
}
