package commands

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/tabcoach/tabcoach/internal/logging"
	"github.com/tabcoach/tabcoach/internal/observer"
)

var (
	observeCoordinator string
	observeInterval    time.Duration
	observeHeadless    bool
	observeRemote      string
)

var observeCmd = &cobra.Command{
	Use:   "observe <url>",
	Short: "Attach an observer to a problem page",
	Long: `Open (or attach to) a browser tab on the given URL and feed the
coordinator with the page's problem context and editor content.`,
	Args: cobra.ExactArgs(1),
	RunE: runObserve,
}

func init() {
	observeCmd.Flags().StringVar(&observeCoordinator, "coordinator", "", "Coordinator base URL (overrides config)")
	observeCmd.Flags().DurationVar(&observeInterval, "interval", 0, "Scan interval (overrides config)")
	observeCmd.Flags().BoolVar(&observeHeadless, "headless", false, "Run the browser headless")
	observeCmd.Flags().StringVar(&observeRemote, "remote", "", "Attach to a running browser's devtools URL")
}

func runObserve(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	coordinator := cfg.CoordinatorURL
	if observeCoordinator != "" {
		coordinator = observeCoordinator
	}
	interval := time.Duration(cfg.ScanInterval)
	if observeInterval > 0 {
		interval = observeInterval
	}
	headless := cfg.Headless || observeHeadless
	remote := cfg.RemoteBrowserURL
	if observeRemote != "" {
		remote = observeRemote
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		cancel()
	}()

	page, closePage, err := observer.NewPage(ctx, observer.PageOptions{
		URL:       args[0],
		RemoteURL: remote,
		Headless:  headless,
	})
	if err != nil {
		return err
	}
	defer closePage()

	obs := observer.New(page, observer.NewClient(coordinator), interval)
	logging.Info().
		Str("tabId", obs.TabID()).
		Str("url", args[0]).
		Str("coordinator", coordinator).
		Msg("observer attached")

	if err := obs.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
