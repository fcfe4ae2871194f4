// Package cmd provides the command-line interface for testbed.
//
// This package contains the root command and delegates to subcommand packages:
//   - env: whole-environment lifecycle (create, destroy, snapshot, restore, logs, info, apply-config)
//   - app: software install and update
//   - cert: development certificate authority
//
// The init and run commands live in this package.
package cmd
