package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/rileyhilliard/rackwatch/internal/api"
	"github.com/rileyhilliard/rackwatch/internal/config"
	"github.com/rileyhilliard/rackwatch/internal/errors"
	"github.com/rileyhilliard/rackwatch/internal/metrics"
	"github.com/rileyhilliard/rackwatch/internal/poller"
	"github.com/rileyhilliard/rackwatch/internal/store"
	"github.com/rileyhilliard/rackwatch/internal/ui"
)

var (
	snapshotJSON bool
	snapshotHost string
)

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Poll every host once and print the results",
	Long: `Connect, run one poll on each host, print the readings, and disconnect.

Examples:
  rackwatch snapshot
  rackwatch snapshot --host nas
  rackwatch snapshot --json | jq '.[].metrics.cpuUsage'`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		return snapshotCommand(ctx, os.Stdout)
	},
}

func init() {
	rootCmd.AddCommand(snapshotCmd)
	snapshotCmd.Flags().BoolVar(&snapshotJSON, "json", false, "print JSON instead of a table")
	snapshotCmd.Flags().StringVar(&snapshotHost, "host", "", "only poll this host (id or name)")
}

func snapshotCommand(ctx context.Context, out io.Writer) error {
	cfg, path, err := loadConfig()
	if err != nil {
		return err
	}
	hosts, err := selectHosts(cfg, snapshotHost)
	if err != nil {
		return err
	}
	if err := requireHosts(hosts); err != nil {
		return err
	}

	// One tick per connect; the interval only has to outlast the wait.
	cfg.Poll.Interval = time.Hour
	ticks := make(chan poller.TickResult, len(hosts))
	a := newApp(cfg, path, func(r poller.TickResult) {
		select {
		case ticks <- r:
		default:
		}
	})
	hosts, err = a.promptSecrets(hosts, os.Stdin, os.Stderr)
	if err != nil {
		return err
	}
	a.sync(ctx, hosts)
	defer a.shutdown()

	connectErr := a.registry.ConnectAll(ctx)
	waitForTicks(ctx, a.registry, ticks, cfg.Poll.ConnectTimeout+time.Minute)

	if err := printSnapshot(out, a, snapshotJSON); err != nil {
		return err
	}
	if connectErr != nil {
		return errors.WrapWithCode(connectErr, errors.ErrConnect,
			"Some hosts could not be reached",
			"The readings above cover the hosts that answered.")
	}
	return nil
}

// waitForTicks waits until every active poller has reported its first
// tick, or until timeout.
func waitForTicks(ctx context.Context, reg *poller.Registry, ticks <-chan poller.TickResult, timeout time.Duration) {
	want := 0
	for _, p := range reg.Pollers() {
		if p.State() == poller.Active {
			want++
		}
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	seen := make(map[string]bool, want)
	for len(seen) < want {
		select {
		case <-ctx.Done():
			return
		case r := <-ticks:
			seen[r.HostID] = true
		}
	}
}

func printSnapshot(out io.Writer, a *app, asJSON bool) error {
	pollers := a.registry.Pollers()

	if asJSON {
		details := make([]api.HostDetail, 0, len(pollers))
		for _, p := range pollers {
			d := api.HostDetail{HostView: api.NewHostView(p, a.history)}
			if e, ok := a.store.Get(p.ID()); ok {
				d.Metrics = &e
			}
			details = append(details, d)
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(details)
	}

	unit := a.cfg.Display.Temperature
	rows := make([][]string, 0, len(pollers))
	for _, p := range pollers {
		e, _ := a.store.Get(p.ID())
		rows = append(rows, snapshotRow(p, e, unit))
	}
	fmt.Fprintln(out, ui.RenderSimpleTable([]ui.TableColumn{
		{Title: "HOST"}, {Title: "STATE"}, {Title: "CPU"}, {Title: "LOAD"},
		{Title: "MEM"}, {Title: "SWAP"}, {Title: "TEMP"}, {Title: "TASKS"},
	}, rows))

	for _, p := range pollers {
		if err := p.LastError(); err != nil {
			fmt.Fprintf(out, "%s %s: %s\n", ui.ErrorStyle.Render(ui.SymbolFail), p.Host().Label(), errors.Brief(err))
		}
	}
	return nil
}

func snapshotRow(p *poller.Poller, e store.Entry, unit string) []string {
	state := p.State().String()
	if p.State() == poller.Active && !p.Loaded() {
		state = "partial"
	}

	load := "-"
	if l, ok := e.Load.Get(); ok {
		load = fmt.Sprintf("%.2f %.2f %.2f", l[0], l[1], l[2])
	}
	tasks := "-"
	if t, ok := e.Tasks.Get(); ok && t.Total > 0 {
		tasks = fmt.Sprintf("%d", t.Total)
	}

	return []string{
		p.Host().Label(),
		state,
		percentCell(e.CPUUsage, 1),
		load,
		percentCell(e.MemoryUsed, metrics.PercentScale/100),
		percentCell(e.SwapUsed, metrics.PercentScale/100),
		temperatureCell(e, unit),
		tasks,
	}
}

// percentCell formats a stored percentage, dividing by scale. Unobserved
// fields and the Epsilon sentinel print as "-".
func percentCell(o store.Opt[float64], scale float64) string {
	v, ok := o.Get()
	if !ok || v == metrics.Epsilon {
		return "-"
	}
	return fmt.Sprintf("%.1f%%", v/scale)
}

func temperatureCell(e store.Entry, unit string) string {
	if unit == config.UnitCelsius {
		if c, ok := e.Celsius.Get(); ok && c != 0 {
			return fmt.Sprintf("%d°C", c)
		}
		return "-"
	}
	if f, ok := e.Fahrenheit.Get(); ok && f != 0 {
		return fmt.Sprintf("%d°F", f)
	}
	return "-"
}
