package ansiblesec

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ansiblesec/ansiblesec/internal/cache"
	"github.com/ansiblesec/ansiblesec/internal/report"
)

func newReportCmd(g *globalOptions) *cobra.Command {
	var (
		format      string
		output      string
		showNotices bool
	)
	cmd := &cobra.Command{
		Use:   "report [PATH]",
		Short: "Re-render the results of the last scan of PATH without rescanning",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := parseFormat(format)
			if err != nil {
				return err
			}
			p, err := cachePathFor(g, args)
			if err != nil {
				return err
			}
			last, err := cache.LoadResults(p)
			if errors.Is(err, os.ErrNotExist) {
				return fmt.Errorf("no stored results next to %s; run 'ansiblesec scan' first", p)
			}
			if err != nil {
				return fmt.Errorf("load results: %w", err)
			}
			w, closeOut, err := openOutput(cmd, output)
			if err != nil {
				return err
			}
			err = render(w, f, last.Findings, renderMeta{
				filesScanned: last.FilesScanned,
				noColor:      g.noColor || output != "" || !report.ColorEnabled(os.Stdout),
				showNotices:  showNotices,
			})
			if cerr := closeOut(); err == nil && cerr != nil {
				err = fmt.Errorf("write report: %w", cerr)
			}
			return err
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "table", "output format: table | text | json | sarif")
	cmd.Flags().StringVarP(&output, "output", "o", "", "write the report to this file instead of stdout")
	cmd.Flags().BoolVar(&showNotices, "show-notices", false, "list skipped files and parse notices in text output")
	return cmd
}
