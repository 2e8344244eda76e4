package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/bryanchriswhite/winshift/focus"
	"github.com/bryanchriswhite/winshift/hook"
	"github.com/bryanchriswhite/winshift/internal/config"
	"github.com/bryanchriswhite/winshift/internal/logger"
	"github.com/bryanchriswhite/winshift/internal/notify"
	"github.com/bryanchriswhite/winshift/internal/tracker"
)

// observers returns the D-Bus publisher when enabled, plus its cleanup.
func observers(cfg *config.Config, downstream ...focus.Observer) ([]focus.Observer, func(), error) {
	if !cfg.DBus.Enabled {
		return downstream, func() {}, nil
	}

	publisher, err := notify.NewPublisher()
	if err != nil {
		return nil, nil, err
	}
	closePublisher := func() {
		if err := publisher.Close(); err != nil {
			logger.WithComponent("cli").Warn().Err(err).Msg("Failed to close D-Bus connection")
		}
	}
	return append(downstream, publisher), closePublisher, nil
}

// runHook blocks on the current goroutine, delivering focus changes to a
// tracker, until SIGINT, SIGTERM or ctx is done.
func runHook(ctx context.Context, configMgr *config.Manager, downstream ...focus.Observer) error {
	log := logger.WithComponent("cli")
	cfg := configMgr.Get()

	configMgr.Watch(func(updated *config.Config) {
		logger.SetLevel(updated.LogLevel)
		log.Info().Str("log_level", updated.LogLevel).Msg("Config reloaded")
	})

	all, cleanup, err := observers(cfg, downstream...)
	if err != nil {
		return err
	}
	defer cleanup()

	h := hook.New(tracker.New(all...), hook.WithPlatformOptions(hook.PlatformOptions{
		X11Display: cfg.X11.Display,
	}))

	// The first signal stops the hook; cancellation is delivered once.
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info().Msg("Watching window focus, press Ctrl+C to stop")
	if err := h.RunContext(ctx); err != nil {
		return err
	}
	log.Info().Msg("Shutting down gracefully...")
	return nil
}
