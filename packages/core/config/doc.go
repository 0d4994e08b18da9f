// Package config handles configuration loading and management for apicheck.
//
// It provides functionality for:
//   - Loading configuration from .apicheck.json or apicheck.config.json
//   - Default configuration values
//   - Merging file settings with command-line overrides
package config
