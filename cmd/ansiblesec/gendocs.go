package ansiblesec

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ansiblesec/ansiblesec/internal/rules"
	"github.com/ansiblesec/ansiblesec/internal/types"
)

const (
	docsBegin = "<!-- BEGIN:RULES -->"
	docsEnd   = "<!-- END:RULES -->"
)

// newGendocsCmd regenerates the built-in rules section of a markdown file
// between the BEGIN:RULES and END:RULES markers.
func newGendocsCmd() *cobra.Command {
	var path string
	cmd := &cobra.Command{
		Use:    "gendocs",
		Short:  "Regenerate the README built-in rules section",
		Hidden: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			b, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			out, err := spliceRulesDoc(b)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			if err := os.WriteFile(path, out, 0o644); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Updated", path)
			return nil
		},
	}
	cmd.Flags().StringVar(&path, "file", "README.md", "markdown file to update")
	return cmd
}

func spliceRulesDoc(b []byte) ([]byte, error) {
	i := bytes.Index(b, []byte(docsBegin))
	j := bytes.Index(b, []byte(docsEnd))
	if i < 0 || j < 0 || j <= i {
		return nil, fmt.Errorf("markers not found")
	}
	var sb strings.Builder
	sb.WriteString(docsBegin + "\n\n")
	sb.WriteString("| ID | Kind | Severity | Description |\n|---|---|---|---|\n")
	for _, p := range rules.DefaultSecrets() {
		fmt.Fprintf(&sb, "| `%s` | secret | %s | %s |\n", p.ID, p.Severity, p.Name)
	}
	fmt.Fprintf(&sb, "| `%s` | secret | configurable | High entropy string |\n", types.RuleHighEntropy)
	for _, r := range rules.DefaultPolicies() {
		fmt.Fprintf(&sb, "| `%s` | %s | %s | %s |\n", r.ID, r.Params.Kind(), r.Severity, r.Name)
	}
	sb.WriteString("\n")
	out := append([]byte{}, b[:i]...)
	out = append(out, sb.String()...)
	return append(out, b[j:]...), nil
}
