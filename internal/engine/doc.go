// Package engine contains the core scanning pipeline. It enumerates eligible
// files, skips unchanged ones through the content-addressed cache, runs the
// secrets detector and policy engine on a bounded worker pool, and merges the
// per-file findings into one deterministic Result. External consumers should
// use the stable facade in pkg/core.
package engine
