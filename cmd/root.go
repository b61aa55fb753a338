package cmd

import (
	"github.com/spf13/cobra"

	"github.com/bnema/xsplit/internal/logger"
	"github.com/bnema/xsplit/internal/settings"
)

var (
	// Version is set during build
	Version = "0.1.0-dev"

	settingsPath string

	rootCmd = &cobra.Command{
		Use:   "xsplit",
		Short: "xsplit - split one display into virtual monitors",
		Long: `xsplit partitions a physical display into independent virtual monitors.
It drives xrandr monitor objects for the X server side and maintains the
binary split config consumed by the interception library, so the window
manager treats each region as a real monitor.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if settingsPath != "" {
				settings.SetPath(settingsPath)
			}
			if err := settings.Init(); err != nil {
				return err
			}
			if lvl := settings.Get().Logging.LogLevel; lvl != "" {
				logger.SetLevel(lvl)
			}
			return nil
		},
	}
)

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.Version = Version
	rootCmd.SetVersionTemplate(`{{with .Name}}{{printf "%s " .}}{{end}}{{printf "version %s\n" .Version}}`)
	rootCmd.PersistentFlags().StringVar(&settingsPath, "settings", "", "Settings file path (default ~/.config/xsplit/xsplit.toml)")
}
