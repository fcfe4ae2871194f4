package notify

import (
	"fmt"
	"io"
	"os"
	"sync"
	"unicode"
	"unicode/utf8"

	"golang.org/x/term"
)

// StageSeparatingWriter puts a blank line before every stage title
// ("🚀 Create environment...", "📦 Install software...") except the first
// thing written. Commands install it with cmd.SetOut so titles printed by
// Titlef and ProgressGroup are separated from the previous stage's output.
type StageSeparatingWriter struct {
	mu         sync.Mutex
	underlying io.Writer
	started    bool
}

// NewStageSeparatingWriter wraps underlying.
func NewStageSeparatingWriter(underlying io.Writer) *StageSeparatingWriter {
	return &StageSeparatingWriter{underlying: underlying}
}

// Write forwards data, prefixed with a newline when data opens a new stage.
func (w *StageSeparatingWriter) Write(data []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if len(data) == 0 {
		return 0, nil
	}

	if w.started && isStageTitle(data) {
		_, err := w.underlying.Write([]byte{'\n'})
		if err != nil {
			return 0, fmt.Errorf("write stage separator: %w", err)
		}
	}

	written, err := w.underlying.Write(data)
	if written > 0 {
		w.started = true
	}

	if err != nil {
		return written, fmt.Errorf("write output: %w", err)
	}

	return written, nil
}

// Fd returns the descriptor of the wrapped file so terminal detection sees
// through the writer. It returns an invalid descriptor for other writers.
func (w *StageSeparatingWriter) Fd() uintptr {
	if file, ok := w.underlying.(*os.File); ok {
		return file.Fd()
	}

	return ^uintptr(0)
}

// IsTerminal reports whether writer is a terminal, looking through wrappers
// that expose the descriptor of the file they write to.
func IsTerminal(writer io.Writer) bool {
	file, ok := writer.(interface{ Fd() uintptr })
	if !ok {
		return false
	}

	return term.IsTerminal(int(file.Fd()))
}

// isStageTitle reports whether data starts with a pictographic emoji. The
// message symbols and the detail gutter are symbols too but never open a stage.
func isStageTitle(data []byte) bool {
	first, _ := utf8.DecodeRune(data)

	switch first {
	case utf8.RuneError, '►', '✔', '✗', '⚠', 'ℹ', '✚', '⏲', '│':
		return false
	}

	return unicode.Is(unicode.So, first)
}
