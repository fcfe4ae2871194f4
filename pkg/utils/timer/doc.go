// Package timer tracks total and per-stage elapsed time for CLI commands.
//
// A command starts the timer once, calls NewStage at every stage boundary and
// reads GetTiming when printing a success message.
package timer
