// Package config loads, normalizes, and validates mixsplit configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// ACRCLOUD_ACCESS_KEY and ACOUSTID_API_KEY. The Config type is built once at
// startup and handed explicitly to the pipeline; nothing in the repository
// reads configuration from package-level state.
package config
