package cmd

import (
	"fmt"
	"os"

	"github.com/KaramelBytes/vo2scope/internal/session"
	"github.com/KaramelBytes/vo2scope/internal/utils"
	"github.com/spf13/cobra"
)

var (
	sessSrc  sourceFlags
	sessLoad bool
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Manage saved exploration sessions",
}

var sessionNewCmd = &cobra.Command{
	Use:   "new <name>",
	Short: "Create a session bound to a metadata and a measurement file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		root, err := sessionsDir()
		if err != nil {
			return err
		}
		src, err := sessSrc.sources(nil)
		if err != nil {
			return err
		}
		s := session.New(name, src.MetadataPath, src.MeasurementsPath, root)
		// Refuse to overwrite an existing session.
		if session.Exists(s.RootDir()) {
			return fmt.Errorf("session already exists at %s", s.RootDir())
		}
		if sessLoad {
			// Validate the inputs up front so a broken session is never saved.
			if _, err := loadDataset(cmd.Context(), src); err != nil {
				return err
			}
		} else {
			for _, p := range []string{src.MetadataPath, src.MeasurementsPath} {
				if _, err := os.Stat(p); err != nil {
					return fmt.Errorf("input file: %w", err)
				}
			}
		}
		if err := s.Save(); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Session created: %s\n", s.RootDir())
		return nil
	},
}

var sessionListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved sessions",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		root, err := sessionsDir()
		if err != nil {
			return err
		}
		sessions, err := session.List(root)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if len(sessions) == 0 {
			fmt.Fprintf(out, "No sessions in %s\n", root)
			return nil
		}
		for _, s := range sessions {
			fmt.Fprintf(out, "- %s (updated %s)\n", s.Name, s.UpdatedAt.Format("2006-01-02 15:04"))
			fmt.Fprintf(out, "  metadata: %s\n  measurements: %s\n", s.MetadataPath, s.MeasurementsPath)
		}
		return nil
	},
}

var sessionShowCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Print a session as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := loadSession(args[0])
		if err != nil {
			return err
		}
		b, err := utils.PrettyJSON(s)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(b))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sessionCmd)
	sessionCmd.AddCommand(sessionNewCmd)
	sessionCmd.AddCommand(sessionListCmd)
	sessionCmd.AddCommand(sessionShowCmd)
	sessSrc.register(sessionNewCmd)
	sessionNewCmd.Flags().BoolVar(&sessLoad, "check", false, "load and join the files before saving the session")
}
