package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rileyhilliard/rackwatch/internal/api"
	"github.com/rileyhilliard/rackwatch/internal/config"
	"github.com/rileyhilliard/rackwatch/internal/logger"
	"github.com/rileyhilliard/rackwatch/internal/poller"
)

var serveListen string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Poll hosts in the background and serve metrics over HTTP",
	Long: `Keep every host connected and expose the latest readings as JSON and
Prometheus metrics.

Edits to the config file are picked up without a restart. On Unix,
SIGUSR2 disconnects every host and SIGUSR1 reconnects them.

Examples:
  rackwatch serve
  rackwatch serve --listen :9273
  curl localhost:9273/api/hosts`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		return serveCommand(ctx)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveListen, "listen", "", "address to listen on (default: serve.listen from config)")
}

func serveCommand(ctx context.Context) error {
	cfg, path, err := loadConfig()
	if err != nil {
		return err
	}
	listen := serveListen
	if listen == "" {
		listen = cfg.Serve.Listen
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	log := logger.NewEnvLogger("[config]")
	a := newApp(cfg, path, nil)
	a.sync(ctx, cfg.Hosts)
	defer a.shutdown()

	events := make(chan poller.Event, 1)
	stopEvents := notifyLifecycle(events)
	defer stopEvents()
	go a.registry.Run(ctx, events)

	events <- poller.Foreground

	if path != "" {
		err := config.Watch(path, func(next *config.Config) {
			log.Info("config changed, %d hosts", len(next.Hosts))
			a.sync(ctx, next.Hosts)
			select {
			case events <- poller.Foreground:
			default:
			}
		}, func(err error) {
			log.Warn("ignoring config change: %v", err)
		})
		if err != nil {
			log.Warn("not watching %s: %v", path, err)
		}
	}

	return api.NewServer(a.registry, api.Options{
		Listen:  listen,
		History: a.history,
		Logger:  logger.NewEnvLogger("[api]"),
		Debug:   debugFlag,
	}).Run(ctx)
}
