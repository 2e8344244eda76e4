package commands

import (
	"fmt"
	"os"

	"github.com/bryanchriswhite/winshift/internal/config"
	"github.com/bryanchriswhite/winshift/internal/logger"
	"github.com/spf13/cobra"
)

var (
	cfgFile string
	rootCmd = &cobra.Command{
		Use:   "winshift",
		Short: "winshift - follow the focused window across X11, Windows and macOS",
		Long: `winshift watches which window has input focus and reports every change
of the focused window's title.

Features:
  • X11 (EWMH), Win32 (WinEvent hooks) and macOS (NSWorkspace) backends
  • Consecutive duplicate titles are collapsed
  • Optional D-Bus signal on every change
  • REST API and WebSocket stream for integration
  • Persistent configuration with live log level reload`,
		SilenceUsage: true,
	}
)

// flagKeys maps command-line flags onto configuration keys
var flagKeys = map[string]string{
	"log-level": "log_level",
	"pretty":    "log_pretty",
	"port":      "server_port",
	"display":   "x11.display",
	"dbus":      "dbus.enabled",
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/winshift/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level (trace, debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("pretty", true, "human-readable console logs instead of JSON")
}

// loadConfig loads the config file, applies flags the user set for this run
// without saving them, and initializes logging.
func loadConfig(cmd *cobra.Command) (*config.Manager, error) {
	configMgr, err := config.NewManager(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	for flag, key := range flagKeys {
		f := cmd.Flags().Lookup(flag)
		if f == nil || !f.Changed {
			continue
		}
		if err := configMgr.Set(key, f.Value.String()); err != nil {
			return nil, fmt.Errorf("--%s: %w", flag, err)
		}
	}

	cfg := configMgr.Get()
	logger.Init(cfg.LogLevel, cfg.LogPretty)
	return configMgr, nil
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// GetConfigFile returns the config file path
func GetConfigFile() string {
	return cfgFile
}
