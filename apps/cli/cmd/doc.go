// Package cmd implements the testclient CLI commands using Cobra.
//
// Available commands:
//   - request: Send one request over HTTP or in-process against fixtures
//   - mock: Serve fixture files as an HTTP application
//   - version: Show testclient version information
package cmd
