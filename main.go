package main

import (
	"go.uber.org/automaxprocs/maxprocs"

	"github.com/ansiblesec/ansiblesec/cmd/ansiblesec"
)

func main() {
	// Respect container CPU quotas for the default worker count.
	_, _ = maxprocs.Set()
	ansiblesec.Execute()
}
