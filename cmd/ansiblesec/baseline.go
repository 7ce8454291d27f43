package ansiblesec

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ansiblesec/ansiblesec/internal/engine"
	"github.com/ansiblesec/ansiblesec/internal/report"
)

func newBaselineCmd(g *globalOptions) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "baseline",
		Short: "Manage baselines",
	}

	update := &cobra.Command{
		Use:   "update [PATH...]",
		Short: "Record the current findings so later scans only report new ones",
		RunE: func(cmd *cobra.Command, args []string) error {
			roots := args
			if len(roots) == 0 {
				roots = []string{"."}
			}
			s, err := loadSettings(g, configRoot(roots), emptyLayer())
			if err != nil {
				return err
			}
			cfg, err := engineConfig(s, roots)
			if err != nil {
				return err
			}
			res, err := engine.ScanWithStats(cmdContext(cmd), cfg)
			if err != nil {
				return err
			}
			if err := report.SaveBaseline(file, res.Findings); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Baseline updated.")
			return nil
		},
	}
	update.Flags().StringVar(&file, "file", defaultBaseline, "baseline file to write")

	cmd.AddCommand(update)
	return cmd
}
