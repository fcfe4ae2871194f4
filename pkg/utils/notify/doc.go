// Package notify writes operator-facing messages for the testbed CLI.
//
// This package includes:
//   - [WriteMessage] for formatted messages with type-specific symbols and colors
//   - [ProgressGroup] for bounded parallel per-node work with live progress lines
//   - [StageSeparatingWriter] for blank lines between CLI stages
//
// Message types are success (✔), error (✗), warning (⚠), info (ℹ), activity (►),
// generate (✚) and titles with a custom emoji. Warnings and errors may carry a
// Detail block (typically captured stderr) that is word-wrapped and indented
// beneath the message line.
package notify
