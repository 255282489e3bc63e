package cli

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/rileyhilliard/rackwatch/internal/dashboard"
	"github.com/rileyhilliard/rackwatch/internal/logger"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Open the live dashboard",
	Long: `Connect to every configured host and show live gauges.

Keys:
  r  poll every host now
  c  connect all hosts
  d  disconnect all hosts
  t  toggle °F / °C
  q  quit

Hosts disconnect while the terminal loses focus and reconnect when it
comes back. Logs go to --log-file while the dashboard is open.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return watchCommand(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func watchCommand(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, path, err := loadConfig()
	if err != nil {
		return err
	}
	if err := requireHosts(cfg.Hosts); err != nil {
		return err
	}

	notifier := &dashboard.Notifier{}
	a := newApp(cfg, path, notifier.OnTick)
	hosts, err := a.promptSecrets(cfg.Hosts, os.Stdin, os.Stderr)
	if err != nil {
		return err
	}
	a.sync(ctx, hosts)
	defer a.shutdown()

	logger.SetOutput(tuiLogOutput())
	defer logger.SetOutput(cliLogOutput())

	model := dashboard.New(ctx, a.registry, dashboard.Options{
		Temperature: cfg.Display.Temperature,
		History:     a.history,
	})
	return dashboard.Run(model, notifier, nil, nil)
}
