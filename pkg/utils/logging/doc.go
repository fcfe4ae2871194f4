// Package logging configures the logrus logger used for diagnostic output.
//
// Operator-facing messages go through pkg/utils/notify; this package only
// covers the structured log stream enabled with --log-level.
package logging
