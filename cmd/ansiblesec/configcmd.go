package ansiblesec

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ansiblesec/ansiblesec/internal/config"
)

func newConfigCmd() *cobra.Command {
	var (
		output string
		force  bool
		global bool
	)
	cfgCmd := &cobra.Command{Use: "config", Short: "Configuration helpers"}

	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a configuration file populated with the defaults",
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := output
			if global {
				p, err := config.GlobalPath()
				if err != nil {
					return err
				}
				path = p
			}
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			} else if err != nil && !errors.Is(err, os.ErrNotExist) {
				return err
			}
			if err := config.Save(path, config.Default()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Wrote", path)
			return nil
		},
	}
	initCmd.Flags().StringVarP(&output, "output", "o", config.LocalNames[0], "output file path")
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	initCmd.Flags().BoolVar(&global, "global", false, "write the global config file instead")

	cfgCmd.AddCommand(initCmd)
	return cfgCmd
}
