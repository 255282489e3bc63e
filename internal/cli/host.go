package cli

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/rileyhilliard/rackwatch/internal/config"
	"github.com/rileyhilliard/rackwatch/internal/errors"
	"github.com/rileyhilliard/rackwatch/internal/ui"
	"github.com/rileyhilliard/rackwatch/pkg/sshutil"
)

// hostAddOptions holds the host add flags.
type hostAddOptions struct {
	Name        string
	Address     string
	Port        int
	User        string
	PasswordEnv string
	Order       int
	Hidden      bool
}

var (
	hostAddOpts   hostAddOptions
	hostRemoveYes bool
)

var hostCmd = &cobra.Command{
	Use:   "host",
	Short: "Manage the host directory",
	Long:  `Add, list, and remove the hosts rackwatch polls.`,
}

var hostAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a host",
	Long: `Add a host to the config file.

Without --address, offers the aliases in ~/.ssh/config and then asks for
the remaining fields.

Examples:
  rackwatch host add
  rackwatch host add --address 10.0.0.5 --user admin --name nas --password-env NAS_PW`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return hostAdd(cmd.OutOrStdout(), hostAddOpts)
	},
}

var hostListCmd = &cobra.Command{
	Use:   "list",
	Short: "List configured hosts",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return hostList(cmd.OutOrStdout())
	},
}

var hostRemoveCmd = &cobra.Command{
	Use:   "remove [id|name]",
	Short: "Remove a host",
	Long: `Remove a host from the config file. Without an argument, pick one
from a list.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ref := ""
		if len(args) > 0 {
			ref = args[0]
		}
		return hostRemove(cmd.OutOrStdout(), ref, hostRemoveYes)
	},
}

func init() {
	rootCmd.AddCommand(hostCmd)
	hostCmd.AddCommand(hostAddCmd, hostListCmd, hostRemoveCmd)

	f := hostAddCmd.Flags()
	f.StringVar(&hostAddOpts.Name, "name", "", "label shown in the dashboard")
	f.StringVar(&hostAddOpts.Address, "address", "", "hostname, IP, or SSH config alias")
	f.IntVar(&hostAddOpts.Port, "port", 0, "SSH port (default 22)")
	f.StringVar(&hostAddOpts.User, "user", "", "login name on the host")
	f.StringVar(&hostAddOpts.PasswordEnv, "password-env", "", "environment variable holding the password")
	f.IntVar(&hostAddOpts.Order, "order", 0, "sort position, lowest first")
	f.BoolVar(&hostAddOpts.Hidden, "hidden", false, "poll the host but leave it off the dashboard")

	hostRemoveCmd.Flags().BoolVarP(&hostRemoveYes, "yes", "y", false, "skip the confirmation")
}

// writablePath is the config file host edits go to: --config, the file
// already in use, or the global path for a first host.
func writablePath() (string, error) {
	if configFlag != "" {
		return configFlag, nil
	}
	path, err := config.Find("")
	if err != nil {
		return "", err
	}
	if path != "" {
		return path, nil
	}
	if global := config.GlobalPath(); global != "" {
		return global, nil
	}
	return "", errors.New(errors.ErrConfig,
		"Couldn't decide where to write the config",
		"Pass --config with a file path.")
}

func hostAdd(out io.Writer, opts hostAddOptions) error {
	if opts.Address == "" {
		if !term.IsTerminal(int(os.Stdin.Fd())) {
			return errors.New(errors.ErrConfig,
				"An address is required",
				"Pass --address and --user, or run in a terminal.")
		}
		if err := promptHost(&opts); err != nil {
			return err
		}
	}

	h := newHost(opts)
	check := config.DefaultConfig()
	check.Hosts = []config.Host{h}
	if err := config.Validate(check); err != nil {
		return err
	}

	path, err := writablePath()
	if err != nil {
		return err
	}
	if err := config.AddHost(path, h); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			"Couldn't add host to "+path,
			"Check the file is valid YAML and writable.")
	}

	fmt.Fprintf(out, "%s Added host '%s' (%s)\n", ui.SymbolSuccess, h.Label(), h.ID)
	if h.Secret() == "" {
		fmt.Fprintln(out, ui.MutedStyle.Render("  No password configured; watch and snapshot will prompt for it."))
	}
	return nil
}

// newHost builds the config entry for opts with a fresh id.
func newHost(opts hostAddOptions) config.Host {
	h := config.Host{
		ID:          uuid.NewString(),
		Name:        strings.TrimSpace(opts.Name),
		Address:     strings.TrimSpace(opts.Address),
		Port:        opts.Port,
		User:        strings.TrimSpace(opts.User),
		PasswordEnv: strings.TrimSpace(opts.PasswordEnv),
		Order:       opts.Order,
	}
	if opts.Hidden {
		hidden := false
		h.Display = &hidden
	}
	return h
}

// promptHost fills opts interactively, starting from an ~/.ssh/config alias
// when the user picks one.
func promptHost(opts *hostAddOptions) error {
	entries, err := sshutil.ParseSSHConfig()
	if err != nil {
		entries = nil
	}
	picked, cancelled, err := ui.PickSSHHost(entries, os.Stdin, os.Stderr)
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			"Couldn't show the SSH host picker",
			"Pass --address instead.")
	}
	if cancelled {
		return errors.New(errors.ErrConfig, "Cancelled", "Nothing was added.")
	}
	if picked != nil {
		opts.Address = picked.Alias
		if opts.Name == "" {
			opts.Name = picked.Alias
		}
		if opts.User == "" {
			opts.User = picked.User
		}
		if opts.Port == 0 {
			opts.Port = picked.Port
		}
	}

	required := func(field string) func(string) error {
		return func(s string) error {
			if strings.TrimSpace(s) == "" {
				return fmt.Errorf("%s is required", field)
			}
			return nil
		}
	}

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Address").
				Description("Hostname, IP, or SSH config alias").
				Placeholder("192.168.1.20").
				Value(&opts.Address).
				Validate(required("address")),
			huh.NewInput().
				Title("User").
				Description("Login name on the host").
				Value(&opts.User).
				Validate(required("user")),
			huh.NewInput().
				Title("Name").
				Description("Label shown in the dashboard (optional)").
				Value(&opts.Name),
			huh.NewInput().
				Title("Password environment variable").
				Description("Leave empty to be prompted when connecting").
				Placeholder("NAS_PASSWORD").
				Value(&opts.PasswordEnv),
		),
	)
	if err := form.Run(); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			"Couldn't get your input",
			"Try again or pass the fields as flags.")
	}
	return nil
}

func hostList(out io.Writer) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	if len(cfg.Hosts) == 0 {
		fmt.Fprintln(out, "No hosts configured. Add one with: rackwatch host add")
		return nil
	}

	rows := make([][]string, 0, len(cfg.Hosts))
	for _, h := range cfg.Hosts {
		address := h.Address
		if h.Port != 0 {
			address = fmt.Sprintf("%s:%d", h.Address, h.Port)
		}
		display := "yes"
		if !h.Visible() {
			display = "no"
		}
		rows = append(rows, []string{h.ID, h.Label(), address, h.User, strconv.Itoa(h.Order), display})
	}
	fmt.Fprintln(out, ui.RenderSimpleTable([]ui.TableColumn{
		{Title: "ID"}, {Title: "NAME"}, {Title: "ADDRESS"},
		{Title: "USER"}, {Title: "ORDER"}, {Title: "DISPLAY"},
	}, rows))
	return nil
}

func hostRemove(out io.Writer, ref string, yes bool) error {
	cfg, path, err := loadConfig()
	if err != nil {
		return err
	}
	if path == "" || len(cfg.Hosts) == 0 {
		return errors.New(errors.ErrConfig,
			"No hosts configured",
			"Nothing to remove.")
	}

	if ref == "" {
		options := make([]huh.Option[string], len(cfg.Hosts))
		for i, h := range cfg.Hosts {
			options[i] = huh.NewOption(fmt.Sprintf("%s - %s@%s", h.Label(), h.User, h.Address), h.ID)
		}
		form := huh.NewForm(
			huh.NewGroup(
				huh.NewSelect[string]().
					Title("Select host to remove").
					Options(options...).
					Value(&ref),
			),
		)
		if err := form.Run(); err != nil {
			return errors.WrapWithCode(err, errors.ErrConfig,
				"Couldn't get your selection",
				"Try again or use: rackwatch host remove <id>")
		}
	}

	h, ok := cfg.FindHost(ref)
	if !ok {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("Host '%s' not found", ref),
			"List hosts with: rackwatch host list")
	}

	if !yes {
		confirm := false
		form := huh.NewForm(
			huh.NewGroup(
				huh.NewConfirm().
					Title(fmt.Sprintf("Remove host '%s'?", h.Label())).
					Description("Its metrics stop being collected").
					Value(&confirm),
			),
		)
		if err := form.Run(); err != nil {
			return errors.WrapWithCode(err, errors.ErrConfig,
				"Couldn't get your input",
				"Pass --yes to skip the confirmation.")
		}
		if !confirm {
			fmt.Fprintln(out, "Cancelled.")
			return nil
		}
	}

	if err := config.RemoveHost(path, h.ID); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			"Couldn't remove host from "+path,
			"Check the file is valid YAML and writable.")
	}
	fmt.Fprintf(out, "%s Removed host '%s'\n", ui.SymbolSuccess, h.Label())
	return nil
}
