package core_test

import (
	"context"
	"fmt"
	"os"

	"github.com/ansiblesec/ansiblesec/pkg/core"
)

// ExampleScan demonstrates how to scan a directory of playbooks.
func ExampleScan() {
	cfg := core.DefaultConfig(".")
	cfg.Threads = 4
	cfg.MaxFileSize = 1 << 20

	res, err := core.Scan(context.Background(), cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Scan failed: %v\n", err)
		return
	}
	if len(res.Findings) == 0 {
		fmt.Println("No issues found.")
		return
	}
	fmt.Printf("Found %d issues in %d files.\n", len(res.Findings), res.FilesScanned)
	_ = core.MarshalResult(os.Stdout, res)
}
