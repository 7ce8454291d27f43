// Package config loads ansiblesec configuration from local and global YAML
// files with precedence rules. CLI code maps flags and the resolved settings
// into engine configuration.
package config
