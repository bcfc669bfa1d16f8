package cmd

import (
	"fmt"
	"strconv"

	cfgpkg "github.com/KaramelBytes/vo2scope/internal/config"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or set vo2scope configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		c := settings()
		out := cmd.OutOrStdout()
		if c.MetadataPath != "" {
			fmt.Fprintf(out, "metadata_path: %s\n", c.MetadataPath)
		}
		if c.MeasurementsPath != "" {
			fmt.Fprintf(out, "measurements_path: %s\n", c.MeasurementsPath)
		}
		fmt.Fprintf(out, "delimiter: %s\n", orAuto(c.Delimiter))
		fmt.Fprintf(out, "decimal_separator: %s\n", orAuto(c.DecimalSeparator))
		fmt.Fprintf(out, "thousands_separator: %s\n", orAuto(c.ThousandsSeparator))
		if c.Sheet != "" {
			fmt.Fprintf(out, "sheet: %s\n", c.Sheet)
		}
		fmt.Fprintf(out, "bin_count: %d\n", c.BinCount)
		fmt.Fprintf(out, "nice_domain: %t\n", c.NiceDomain)
		fmt.Fprintf(out, "vo2_scale: %g\n", c.VO2Scale)
		fmt.Fprintf(out, "vo2_min: %g\n", c.VO2Min)
		fmt.Fprintf(out, "vo2_max: %g\n", c.VO2Max)
		fmt.Fprintf(out, "sessions_dir: %s\n", c.SessionsDir)
		fmt.Fprintf(out, "log_level: %s\n", c.LogLevel)
		fmt.Fprintf(out, "log_format: %s\n", c.LogFormat)
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a config value and save to disk",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, val := args[0], args[1]
		if cfg == nil {
			c, err := cfgpkg.Load(cfgFile)
			if err != nil {
				return err
			}
			cfg = c
		}
		next := *cfg
		switch key {
		case "metadata_path":
			next.MetadataPath = val
		case "measurements_path":
			next.MeasurementsPath = val
		case "delimiter":
			next.Delimiter = val
		case "decimal_separator":
			next.DecimalSeparator = val
		case "thousands_separator":
			next.ThousandsSeparator = val
		case "sheet":
			next.Sheet = val
		case "bin_count":
			i, err := strconv.Atoi(val)
			if err != nil {
				return fmt.Errorf("invalid int for bin_count: %w", err)
			}
			next.BinCount = i
		case "nice_domain":
			b, err := strconv.ParseBool(val)
			if err != nil {
				return fmt.Errorf("invalid bool for nice_domain: %w", err)
			}
			next.NiceDomain = b
		case "vo2_scale", "vo2_min", "vo2_max":
			f, err := strconv.ParseFloat(val, 64)
			if err != nil {
				return fmt.Errorf("invalid float for %s: %w", key, err)
			}
			switch key {
			case "vo2_scale":
				next.VO2Scale = f
			case "vo2_min":
				next.VO2Min = f
			default:
				next.VO2Max = f
			}
		case "sessions_dir":
			next.SessionsDir = val
		case "log_level":
			switch val {
			case "debug", "info", "warn", "error":
				next.LogLevel = val
			default:
				return fmt.Errorf("invalid log_level: %s (use debug|info|warn|error)", val)
			}
		case "log_format":
			switch val {
			case "console", "json":
				next.LogFormat = val
			default:
				return fmt.Errorf("invalid log_format: %s (use console|json)", val)
			}
		default:
			return fmt.Errorf("unknown key: %s", key)
		}
		if err := next.Validate(); err != nil {
			return err
		}
		if err := cfgpkg.Save(&next, cfgFile); err != nil {
			return err
		}
		cfg = &next
		fmt.Fprintln(cmd.OutOrStdout(), "Saved config")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}

func orAuto(s string) string {
	if s == "" {
		return "(auto)"
	}
	return s
}
