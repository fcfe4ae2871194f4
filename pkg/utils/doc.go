// Package utils provides small packages shared across testbed.
//
//   - envvar: Environment variable expansion
//   - logging: Logrus logger construction
//   - notify: Formatted status messages and parallel progress groups
//   - runner: Host command execution
//   - timer: Execution time tracking for multi-stage operations
package utils
