// Package confirm provides confirmation prompt utilities for destructive operations.
package confirm

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/devantler-tech/testbed/pkg/apis/testbed/v1alpha1"
	"github.com/devantler-tech/testbed/pkg/utils/notify"
	"golang.org/x/term"
)

// ErrDeletionCancelled is returned when the user cancels a deletion operation.
var ErrDeletionCancelled = errors.New("deletion cancelled")

// DeletionPreview lists what destroying an environment removes.
type DeletionPreview struct {
	Workspace string
	Backend   v1alpha1.BackendKind
	// Nodes are destroyed on the backend.
	Nodes []string
	// Remote nodes are only forgotten; the hosts are left alone.
	Remote []string
}

// Test override variables with mutexes for thread safety.
var (
	//nolint:gochecknoglobals // dependency injection for tests
	stdinReaderMu sync.RWMutex
	//nolint:gochecknoglobals // dependency injection for tests
	stdinReaderOverride io.Reader

	//nolint:gochecknoglobals // dependency injection for tests
	ttyCheckerMu sync.RWMutex
	//nolint:gochecknoglobals // dependency injection for tests
	ttyCheckerOverride func() bool
)

// SetStdinReaderForTests overrides the stdin reader for testing.
// Returns a restore function that should be called to reset the override.
func SetStdinReaderForTests(reader io.Reader) func() {
	stdinReaderMu.Lock()

	previous := stdinReaderOverride
	stdinReaderOverride = reader

	stdinReaderMu.Unlock()

	return func() {
		stdinReaderMu.Lock()

		stdinReaderOverride = previous

		stdinReaderMu.Unlock()
	}
}

// SetTTYCheckerForTests overrides the TTY checker for testing.
// Returns a restore function that should be called to reset the override.
func SetTTYCheckerForTests(checker func() bool) func() {
	ttyCheckerMu.Lock()

	previous := ttyCheckerOverride
	ttyCheckerOverride = checker

	ttyCheckerMu.Unlock()

	return func() {
		ttyCheckerMu.Lock()

		ttyCheckerOverride = previous

		ttyCheckerMu.Unlock()
	}
}

// getStdinReader returns the stdin reader to use, respecting test overrides.
func getStdinReader() io.Reader {
	stdinReaderMu.RLock()
	defer stdinReaderMu.RUnlock()

	if stdinReaderOverride != nil {
		return stdinReaderOverride
	}

	return os.Stdin
}

// IsTTY returns true if stdin is connected to a terminal.
// This is used to skip confirmation prompts in non-interactive environments (CI/pipelines).
func IsTTY() bool {
	ttyCheckerMu.RLock()

	override := ttyCheckerOverride

	ttyCheckerMu.RUnlock()

	if override != nil {
		return override()
	}

	return term.IsTerminal(int(os.Stdin.Fd()))
}

// ShouldSkipPrompt returns true if the confirmation prompt should be skipped.
// This happens when:
// - force flag is set, OR
// - stdin is not a TTY (non-interactive environment)
func ShouldSkipPrompt(force bool) bool {
	return force || !IsTTY()
}

// ShowDeletionPreview displays what will be deleted and asks for confirmation.
func ShowDeletionPreview(writer io.Writer, preview *DeletionPreview) {
	notify.WriteMessage(notify.Message{
		Type:    notify.WarningType,
		Content: "The following resources will be deleted:",
		Writer:  writer,
	})

	var previewText strings.Builder

	previewText.WriteString(fmt.Sprintf("  Workspace: %s\n", preview.Workspace))
	previewText.WriteString(fmt.Sprintf("  Backend:   %s", preview.Backend))

	if len(preview.Nodes) > 0 {
		previewText.WriteString("\n  Nodes:")

		for _, node := range preview.Nodes {
			previewText.WriteString(fmt.Sprintf("\n    - %s", node))
		}
	}

	if len(preview.Remote) > 0 {
		previewText.WriteString("\n  Remote nodes (hosts are kept):")

		for _, node := range preview.Remote {
			previewText.WriteString(fmt.Sprintf("\n    - %s", node))
		}
	}

	notify.WriteMessage(notify.Message{
		Type:    notify.InfoType,
		Content: previewText.String(),
		Writer:  writer,
	})

	notify.WriteMessage(notify.Message{
		Type:    notify.WarningType,
		Content: `Type "yes" to confirm deletion: `,
		Writer:  writer,
	})
}

// PromptForConfirmation reads one line and returns true only if it is
// "yes" (case-insensitive).
func PromptForConfirmation(_ io.Writer) bool {
	reader := bufio.NewReader(getStdinReader())

	input, err := reader.ReadString('\n')
	if err != nil {
		return false
	}

	input = strings.TrimSpace(input)

	return strings.EqualFold(input, "yes")
}
