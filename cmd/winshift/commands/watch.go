package commands

import (
	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Log every change of the focused window",
	Long: `Watch window focus and log each change of the focused window's title.

Empty titles are logged as warnings. With --dbus every change is also
published as io.github.winshift.Focus.Changed on the session bus.`,
	Example: `  # Watch with the configured settings
  winshift watch

  # Watch another X display and publish on D-Bus
  winshift watch --display :1 --dbus

  # Watch with debug logging
  winshift watch --log-level debug`,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
	addRunFlags(watchCmd)
}

// addRunFlags adds the flags shared by commands that run the hook
func addRunFlags(cmd *cobra.Command) {
	cmd.Flags().String("display", "", "X display to watch (default is $DISPLAY)")
	cmd.Flags().Bool("dbus", false, "publish focus changes on the D-Bus session bus")
}

func runWatch(cmd *cobra.Command, args []string) error {
	configMgr, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	return runHook(cmd.Context(), configMgr)
}
