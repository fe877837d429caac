// Package config loads, validates, and defaults the TOML configuration for
// the experiment server and CLI.
package config
