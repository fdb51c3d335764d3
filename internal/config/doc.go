// Package config loads, normalizes, and validates contentflow configuration.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// CONTENTFLOW_DATA_DIR and CONTENTFLOW_ML_API_KEY. The Config type centralizes
// every knob the processor, clustering engine, and CLI need.
//
// Always obtain settings through this package so downstream code receives
// expanded paths, canonical log formats, and clear validation errors.
package config
