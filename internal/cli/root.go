// Package cli wires rackwatch's cobra command tree to the config, poller,
// dashboard and API packages.
package cli

import (
	stderrors "errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/rileyhilliard/rackwatch/internal/errors"
	"github.com/rileyhilliard/rackwatch/internal/logger"
	"github.com/rileyhilliard/rackwatch/internal/ui"
)

// Global flags
var (
	configFlag  string
	debugFlag   bool
	logFileFlag string
	noColorFlag bool
)

// logFile is the open --log-file, closed after the command finishes.
var logFile *os.File

var rootCmd = &cobra.Command{
	Use:   "rackwatch",
	Short: "Live metrics for Linux hosts over SSH",
	Long: `rackwatch polls remote Linux hosts over SSH, parses the output of top,
df and /proc reads, and shows CPU, memory, swap, network and disk activity.

Examples:
  rackwatch host add
  rackwatch watch
  rackwatch snapshot --json
  rackwatch serve --listen :9273`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setupGlobals,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logFile != nil {
			logFile.Close()
			logFile = nil
		}
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configFlag, "config", "", "config file (default: ./rackwatch.yaml, then ~/.config/rackwatch/config.yaml)")
	pf.BoolVar(&debugFlag, "debug", false, "enable debug logging")
	pf.StringVar(&logFileFlag, "log-file", "", "append logs to this file instead of stderr")
	pf.BoolVar(&noColorFlag, "no-color", false, "disable colored output")
}

func setupGlobals(cmd *cobra.Command, args []string) error {
	logger.EnableDebug(debugFlag)

	if noColorFlag || os.Getenv("NO_COLOR") != "" || !term.IsTerminal(int(os.Stdout.Fd())) {
		ui.DisableColors()
	}

	if logFileFlag != "" {
		f, err := os.OpenFile(logFileFlag, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return errors.WrapWithCode(err, errors.ErrConfig,
				"Couldn't open log file "+logFileFlag,
				"Check the directory exists and is writable.")
		}
		logFile = f
		logger.SetOutput(f)
	}
	return nil
}

// tuiLogOutput is where logs go while a full-screen program owns the
// terminal: the --log-file if one is open, otherwise nowhere.
func tuiLogOutput() io.Writer {
	if logFile != nil {
		return logFile
	}
	return io.Discard
}

// cliLogOutput is where logs go otherwise.
func cliLogOutput() io.Writer {
	if logFile != nil {
		return logFile
	}
	return os.Stderr
}

// Execute runs the root command and exits non-zero on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprint(os.Stderr, formatError(err))
		os.Exit(1)
	}
}

// formatError renders structured errors as-is and gives plain ones the
// same leading symbol.
func formatError(err error) string {
	var rwErr *errors.Error
	if stderrors.As(err, &rwErr) {
		return err.Error()
	}
	return fmt.Sprintf("%s %v\n", ui.SymbolFail, err)
}
