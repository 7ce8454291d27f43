package ansiblesec

import (
	"fmt"
	"runtime/debug"

	"github.com/blang/semver/v4"
	"github.com/spf13/cobra"

	"github.com/ansiblesec/ansiblesec/internal/rules"
)

// buildVersion prefers the module version stamped by go install.
func buildVersion() string {
	v := version
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
		v = info.Main.Version
	}
	if sv, err := semver.ParseTolerant(v); err == nil {
		return sv.String()
	}
	return v
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "ansiblesec %s (rule schema v%d)\n", buildVersion(), rules.SupportedMajor)
		},
	}
}
