package ansiblesec

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ansiblesec/ansiblesec/internal/cache"
	"github.com/ansiblesec/ansiblesec/internal/engine"
)

func newCacheCmd(g *globalOptions) *cobra.Command {
	cmd := &cobra.Command{Use: "cache", Short: "Inspect and clear the scan cache"}

	path := &cobra.Command{
		Use:   "path [PATH]",
		Short: "Print the cache file used for a scan of PATH",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := cachePathFor(g, args)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), p)
			return nil
		},
	}

	clearCmd := &cobra.Command{
		Use:   "clear [PATH]",
		Short: "Delete the cache and stored results for a scan of PATH",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := cachePathFor(g, args)
			if err != nil {
				return err
			}
			if err := cache.Clear(p); err != nil {
				return err
			}
			if err := cache.Clear(cache.ResultsPath(p)); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Cache cleared:", p)
			return nil
		},
	}

	cmd.AddCommand(path, clearCmd)
	return cmd
}

func cachePathFor(g *globalOptions, args []string) (string, error) {
	roots := args
	if len(roots) == 0 {
		roots = []string{"."}
	}
	s, err := loadSettings(g, configRoot(roots), emptyLayer())
	if err != nil {
		return "", err
	}
	cfg := engine.Config{Roots: roots}
	if s.CacheDir != "" {
		cfg.CachePath = cacheFile(s.CacheDir)
	}
	return engine.CachePathFor(cfg), nil
}
