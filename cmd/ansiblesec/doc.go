// Package ansiblesec provides the command-line interface for the ansiblesec
// scanner. It configures subcommands (scan, rules, cache, config, report,
// baseline, ignore, history), parses flags, and executes the selected command.
//
// Typical usage from a main package:
//
//	package main
//	import "github.com/ansiblesec/ansiblesec/cmd/ansiblesec"
//	func main() { ansiblesec.Execute() }
package ansiblesec
