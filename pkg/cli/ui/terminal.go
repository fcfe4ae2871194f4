// Package ui holds terminal presentation helpers shared by commands.
package ui

import (
	"fmt"
	"io"

	"github.com/devantler-tech/testbed/pkg/utils/notify"
)

// WriteTerminalTitle writes the ANSI sequence that sets the window title.
func WriteTerminalTitle(writer io.Writer, title string) {
	// ESC ] 0 ; title BEL sets both icon name and window title.
	_, _ = fmt.Fprintf(writer, "\033]0;%s\007", title)
}

// SetTerminalTitle sets the window title when writer is a terminal and
// does nothing otherwise, so captured output stays free of escape codes.
func SetTerminalTitle(writer io.Writer, title string) {
	if !notify.IsTerminal(writer) {
		return
	}

	WriteTerminalTitle(writer, title)
}
