// Package config loads, normalizes, and validates karaokeprep configuration.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, loads a .env file from the working directory,
// and honours environment fallbacks for secrets such as object storage keys
// and notification endpoints. The Config value is passed explicitly into every
// component constructor; nothing in the repository reads configuration from
// package-level state.
package config
