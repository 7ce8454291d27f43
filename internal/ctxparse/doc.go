// Package ctxparse turns YAML playbooks into a tree of nodes that keeps the
// source line and column of every key and value, so policy checks can resolve
// dotted key paths and report precise locations.
package ctxparse
