// Package config handles configuration management for fls.
// Values come, lowest precedence first, from the embedded defaults, the
// user's config.toml, FLS_* environment variables and command-line flags.
package config
