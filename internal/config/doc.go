// Package config loads, normalizes, and validates alfalfa configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours the ALFALFA_CATALOG and
// ALFALFA_LOG_LEVEL environment fallbacks.
package config
