package commands

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/tabcoach/tabcoach/internal/config"
	"github.com/tabcoach/tabcoach/internal/event"
	"github.com/tabcoach/tabcoach/internal/logging"
	"github.com/tabcoach/tabcoach/internal/provider"
	"github.com/tabcoach/tabcoach/internal/server"
	"github.com/tabcoach/tabcoach/internal/session"
	"github.com/tabcoach/tabcoach/internal/settings"
	"github.com/tabcoach/tabcoach/internal/storage"
	"github.com/tabcoach/tabcoach/internal/tabstate"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the tabcoach coordinator",
	Long: `Start the coordinator: the HTTP bus, the streaming chat channel,
and the observer back-channel. Observers and UIs connect to this process.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "Port to listen on (overrides config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if servePort != 0 {
		cfg.Port = servePort
	}

	if err := config.GetPaths().EnsurePaths(); err != nil {
		return err
	}
	stateDir := cfg.StoragePath()
	if err := os.MkdirAll(stateDir, 0755); err != nil {
		return err
	}

	logging.Info().Str("version", Version).Str("stateDir", stateDir).Msg("starting coordinator")

	store := storage.New(stateDir)
	bus := event.NewBus()
	defer bus.Close()

	settingsSvc := settings.NewService(store, bus)
	tabs := tabstate.NewService(store, bus)
	providers := provider.NewRegistry()
	sessions := session.NewManager(tabs, settingsSvc, providers, bus)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if watcher, err := settings.NewWatcher(settingsSvc, bus, stateDir); err != nil {
		logging.Warn().Err(err).Msg("settings watcher unavailable")
	} else {
		go watcher.Run(ctx)
	}

	serverConfig := server.DefaultConfig()
	serverConfig.Port = cfg.Port
	srv := server.New(serverConfig, settingsSvc, tabs, sessions, bus)

	go func() {
		logging.Info().Int("port", cfg.Port).Msg("coordinator listening")
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			logging.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logging.Info().Msg("shutting down")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelShutdown()

	return srv.Shutdown(shutdownCtx)
}
