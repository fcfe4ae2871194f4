package fsutil

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// WriteOutcome says what WriteFile did with an output path.
type WriteOutcome int

const (
	// Created means the file did not exist and was written.
	Created WriteOutcome = iota
	// Overwrote means an existing file was replaced because force was set.
	Overwrote
	// Skipped means the file existed and force was not set.
	Skipped
)

// String returns the verb used in scaffolding messages.
func (o WriteOutcome) String() string {
	switch o {
	case Created:
		return "created"
	case Overwrote:
		return "overwrote"
	case Skipped:
		return "skipped"
	default:
		return fmt.Sprintf("WriteOutcome(%d)", int(o))
	}
}

// WriteFile writes content to output, creating parent directories. An
// existing file is left alone unless force is set.
func WriteFile(output string, content []byte, force bool) (WriteOutcome, error) {
	if output == "" {
		return Skipped, ErrEmptyOutputPath
	}

	output = filepath.Clean(output)

	outcome := Created

	_, err := os.Stat(output)

	switch {
	case err == nil && !force:
		return Skipped, nil
	case err == nil:
		outcome = Overwrote
	case !errors.Is(err, os.ErrNotExist):
		return Skipped, fmt.Errorf("check %s: %w", output, err)
	}

	dir := filepath.Dir(output)

	err = os.MkdirAll(dir, dirPermUserGroupRX)
	if err != nil {
		return Skipped, fmt.Errorf("create directory %s: %w", dir, err)
	}

	err = os.WriteFile(output, content, filePermUserRW)
	if err != nil {
		return Skipped, fmt.Errorf("write %s: %w", output, err)
	}

	return outcome, nil
}
