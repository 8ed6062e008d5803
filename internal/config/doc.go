// Package config loads, normalizes, and validates radreport configuration.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks for archive
// passwords. The Config type centralizes every knob the CLI needs: the
// registry database location, export staging directory, source and destination
// archive endpoints, and the eligibility-engine settings.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
