package ansiblesec

import (
	"fmt"
	"io"
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/ansiblesec/ansiblesec/internal/rules"
	"github.com/ansiblesec/ansiblesec/internal/types"
)

func newRulesCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "rules", Short: "Validate and list detection rules"}

	validate := &cobra.Command{
		Use:   "validate FILE...",
		Short: "Check rule files for syntax and structural errors",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, p := range args {
				layout, n, err := validateRuleFile(p)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "✓ %s: %d %s rules valid\n", p, n, layout)
			}
			return nil
		},
	}

	list := &cobra.Command{
		Use:   "list [FILE]",
		Short: "List built-in rules or the rules in FILE",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			secrets, policies := rules.DefaultSecrets(), rules.DefaultPolicies()
			if len(args) == 1 {
				b, err := os.ReadFile(args[0])
				if err != nil {
					return err
				}
				layout, err := rules.DetectLayout(b)
				if err != nil {
					return fmt.Errorf("%s: %w", args[0], err)
				}
				secrets, policies = nil, nil
				if layout == rules.LayoutSecrets {
					secrets, err = rules.ParseSecrets(b)
				} else {
					policies, err = rules.ParsePolicies(b)
				}
				if err != nil {
					return fmt.Errorf("%s: %w", args[0], err)
				}
			}
			return listRules(cmd.OutOrStdout(), secrets, policies)
		},
	}

	cmd.AddCommand(validate, list)
	return cmd
}

func validateRuleFile(path string) (string, int, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", 0, err
	}
	layout, err := rules.DetectLayout(b)
	if err != nil {
		return "", 0, fmt.Errorf("%s: %w", path, err)
	}
	if layout == rules.LayoutSecrets {
		ps, err := rules.ParseSecrets(b)
		if err != nil {
			return "", 0, fmt.Errorf("%s: %w", path, err)
		}
		return layout, len(ps), nil
	}
	rs, err := rules.ParsePolicies(b)
	if err != nil {
		return "", 0, fmt.Errorf("%s: %w", path, err)
	}
	return layout, len(rs), nil
}

func enabledMark(on bool) string {
	if on {
		return "✓"
	}
	return "✗"
}

func listRules(w io.Writer, secrets []rules.SecretPattern, policies []rules.PolicyRule) error {
	table := tablewriter.NewWriter(w)
	table.Header([]string{"ON", "ID", "KIND", "SEVERITY", "NAME"})
	var rows [][]string
	for _, p := range secrets {
		rows = append(rows, []string{enabledMark(p.Enabled), p.ID, "secret", string(p.Severity), p.Name})
	}
	for _, r := range policies {
		rows = append(rows, []string{enabledMark(r.Enabled), r.ID, string(r.Params.Kind()), string(r.Severity), r.Name})
	}
	if err := table.Bulk(rows); err != nil {
		return err
	}
	if err := table.Render(); err != nil {
		return err
	}
	fmt.Fprintf(w, "%d secret patterns, %d policies (entropy findings use rule %s)\n", len(secrets), len(policies), types.RuleHighEntropy)
	return nil
}
