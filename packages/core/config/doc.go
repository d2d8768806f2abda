// Package config handles configuration loading and management for testclient.
//
// It provides functionality for:
//   - Loading configuration from .testclient.yaml or testclient.yaml files
//   - Expanding ${VAR} references from the environment
//   - Default configuration values and merging of overrides
package config
