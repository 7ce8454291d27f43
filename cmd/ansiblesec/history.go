package ansiblesec

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/ansiblesec/ansiblesec/internal/audit"
)

func newHistoryCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history [PATH]",
		Short: "Show runs recorded with 'scan --audit'",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root := "."
			if len(args) == 1 {
				root = args[0]
			}
			h := audit.For(root)
			runs, err := h.Recent(limit)
			if errors.Is(err, os.ErrNotExist) {
				fmt.Fprintf(cmd.OutOrStdout(), "No audit history at %s\n", h.Path())
				return nil
			}
			if err != nil {
				return err
			}
			return printHistory(cmd.OutOrStdout(), runs)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of runs to show (0 for all)")
	return cmd
}

func printHistory(w io.Writer, runs []audit.Run) error {
	table := tablewriter.NewWriter(w)
	table.Header([]string{"WHEN", "COMMIT", "FILES", "FINDINGS", "NEW", "CRITICAL", "HIGH", "EXIT"})
	rows := make([][]string, 0, len(runs))
	for _, r := range runs {
		commit := r.Git.Commit
		if len(commit) > 8 {
			commit = commit[:8]
		}
		rows = append(rows, []string{
			r.StartedAt.Local().Format("2006-01-02 15:04:05"),
			commit,
			strconv.Itoa(r.Files),
			strconv.Itoa(r.Total),
			strconv.Itoa(r.New),
			strconv.Itoa(r.Summary.Critical),
			strconv.Itoa(r.Summary.High),
			strconv.Itoa(r.ExitCode),
		})
	}
	if err := table.Bulk(rows); err != nil {
		return err
	}
	return table.Render()
}
