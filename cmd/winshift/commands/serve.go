package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/bryanchriswhite/winshift/internal/api"
	"github.com/bryanchriswhite/winshift/internal/logger"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Watch window focus and serve it over HTTP",
	Long: `Watch window focus and start the winshift HTTP server.

The server exposes the current focused window, a WebSocket stream of focus
changes and a small status page.`,
	Example: `  # Start server on default port (8686)
  winshift serve

  # Start server on custom port
  winshift serve --port 9090

  # Start with specific config file
  winshift serve --config /path/to/config.yaml`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	addRunFlags(serveCmd)
	serveCmd.Flags().Int("port", 0, "server port (default is 8686)")
}

func runServe(cmd *cobra.Command, args []string) error {
	configMgr, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	cfg := configMgr.Get()
	log := logger.WithComponent("cli")

	hub := api.NewHub(cfg.Stream.Buffer)
	server := api.NewServer(hub, Version)

	runCtx, cancelRun := context.WithCancel(cmd.Context())
	defer cancelRun()

	serverErr := make(chan error, 1)
	go func() {
		err := server.Start(cfg.ServerPort)
		if err != nil {
			log.Error().Err(err).Msg("Server error, stopping")
			cancelRun()
		}
		serverErr <- err
	}()

	log.Info().
		Str("config", configMgr.GetConfigPath()).
		Str("web_ui", fmt.Sprintf("http://localhost:%d", cfg.ServerPort)).
		Msg("winshift is running")

	runErr := runHook(runCtx, configMgr, hub)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Warn().Err(err).Msg("Server shutdown error")
	}
	if err := <-serverErr; err != nil && runErr == nil {
		return fmt.Errorf("server error: %w", err)
	}
	return runErr
}
