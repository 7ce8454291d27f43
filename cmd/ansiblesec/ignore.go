package ansiblesec

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ansiblesec/ansiblesec/internal/ignore"
)

func newIgnoreCmd() *cobra.Command {
	var (
		root     string
		defaults bool
	)
	cmd := &cobra.Command{Use: "ignore", Short: "Manage " + ignore.FileName}

	add := &cobra.Command{
		Use:   "add [PATTERN...]",
		Short: "Append exclude patterns to " + ignore.FileName,
		RunE: func(cmd *cobra.Command, args []string) error {
			patterns := args
			if defaults {
				patterns = append(ignore.DefaultPatterns(), patterns...)
			}
			if len(patterns) == 0 {
				return fmt.Errorf("no patterns given (pass PATTERN or --defaults)")
			}
			for _, p := range patterns {
				changed, err := ignore.Append(root, p)
				if err != nil {
					return err
				}
				if changed {
					fmt.Fprintln(cmd.OutOrStdout(), "Added", p)
				}
			}
			return nil
		},
	}
	add.Flags().StringVar(&root, "root", ".", "directory holding the ignore file")
	add.Flags().BoolVar(&defaults, "defaults", false, "also add common virtualenv and collection directories")

	cmd.AddCommand(add)
	return cmd
}
