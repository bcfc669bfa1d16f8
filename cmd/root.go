package cmd

import (
	"fmt"
	"os"

	cfgpkg "github.com/KaramelBytes/vo2scope/internal/config"
	"github.com/KaramelBytes/vo2scope/internal/logging"
	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile  string
	debug    bool
	logLevel string

	// Loaded configuration
	cfg *cfgpkg.Global
	logger logging.Logger = logging.NewNopLogger()
)

var rootCmd = &cobra.Command{
	Use:   "vo2scope",
	Short: "Explore VO2 max distributions by gender, age, weight and temperature",
	Long: `vo2scope joins subject metadata with treadmill VO2 measurements, filters the
joined records and renders per-gender VO2 histograms with range selection
statistics. Run it one-shot (summary, histogram) or interactively (explore).`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute is the entry point called by main.main()
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "✗ Error:", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(loadConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ~/.vo2scope/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug|info|warn|error (overrides config)")
}

func loadConfig() {
	c, err := cfgpkg.Load(cfgFile)
	if err != nil {
		// Non-fatal: fall back to built-in defaults
		fmt.Fprintf(os.Stderr, "⚠ Warning: failed to load config: %v\n", err)
		d := cfgpkg.Defaults()
		c = &d
	}
	cfg = c

	lc := cfg.LogConfig()
	if rootCmd.PersistentFlags().Changed("log-level") && logLevel != "" {
		lc.Level = logLevel
	}
	if debug {
		lc.Level = "debug"
	}
	l, err := logging.NewLogger(lc)
	if err != nil {
		fmt.Fprintf(os.Stderr, "⚠ Warning: logging disabled: %v\n", err)
		l = logging.NewNopLogger()
	}
	logger = l.Named("vo2scope")
	logging.SetDefault(logger)
}
