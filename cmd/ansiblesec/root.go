package ansiblesec

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var version = "0.1.0"

type globalOptions struct {
	verbose    int
	noColor    bool
	configFile string
}

// exitError carries a non-zero process status without an error message.
type exitError struct{ code int }

func (e exitError) Error() string { return fmt.Sprintf("exit status %d", e.code) }

// NewRootCmd builds the command tree. Each call returns independent flag state.
func NewRootCmd() *cobra.Command {
	g := &globalOptions{}
	root := &cobra.Command{
		Use:           "ansiblesec",
		Short:         "Find secrets and policy violations in Ansible content",
		Long:          "ansiblesec scans playbooks, roles and inventories for hardcoded secrets and evaluates configurable security policies against them.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			setupLogging(cmd.ErrOrStderr(), g.verbose)
		},
	}
	root.PersistentFlags().CountVarP(&g.verbose, "verbose", "v", "increase log verbosity (-v debug, -vv trace)")
	root.PersistentFlags().BoolVar(&g.noColor, "no-color", false, "disable colorized output")
	root.PersistentFlags().StringVarP(&g.configFile, "config", "c", "", "configuration file (overrides local and global config)")

	root.AddCommand(
		newScanCmd(g),
		newRulesCmd(),
		newCacheCmd(g),
		newConfigCmd(),
		newReportCmd(g),
		newBaselineCmd(g),
		newIgnoreCmd(),
		newHistoryCmd(),
		newCompletionCmd(root),
		newGendocsCmd(),
		newVersionCmd(),
	)
	return root
}

func setupLogging(w io.Writer, verbose int) {
	output := zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	log.Logger = zerolog.New(output).With().Timestamp().Logger()
	switch {
	case verbose >= 2:
		zerolog.SetGlobalLevel(zerolog.TraceLevel)
	case verbose == 1:
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
		log.Debug().Msg("Verbose log output enabled")
	default:
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	}
}

// Execute runs the CLI. It should be called by the main package. Scan
// findings at or above the fail threshold exit with 1, or 2 when critical
// findings are present; usage and runtime errors exit with 3.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		var ee exitError
		if errors.As(err, &ee) {
			os.Exit(ee.code)
		}
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(3)
	}
}
