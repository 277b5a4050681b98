// Package cmd implements the command-line interface for the sqlock
// distributed lock service. It provides a hierarchical command structure
// with operations for running the lock server and interacting with it as
// a client.
//
// The package is organized into several subpackages:
//
//   - lock: Commands for lock operations (acquire, release, status)
//   - serve: Commands for starting and configuring the lock server
//   - bench: Performance testing tool for lock servers
//   - util: Shared utilities for command-line processing and configuration (internal use)
//
// See sqlock -help for a list of all commands.
package cmd
