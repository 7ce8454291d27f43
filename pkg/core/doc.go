// Package core provides a small, stable facade over the internal scan engine
// for programs that embed ansiblesec. It re-exports a narrow API surface so
// integrations can depend on a stable import path without importing internal
// packages.
//
// Example:
//
//	cfg := core.DefaultConfig("playbooks")
//	res, err := core.Scan(ctx, cfg)
//	if err != nil { /* handle */ }
//	_ = core.MarshalResult(os.Stdout, res)
package core
