package fsutil

import (
	"fmt"
	"os/user"
	"path/filepath"
	"strings"

	"github.com/devantler-tech/testbed/pkg/utils/envvar"
)

// Path expansion operations.

// ExpandHomePath expands a path beginning with ~/ to the user's home directory
// and converts relative paths to absolute paths.
//
// Parameters:
//   - path: The path to expand (e.g., "~/config.yaml", "./config.yaml", or "/absolute/path")
//
// Returns:
//   - string: The expanded and absolute path
//   - error: Error if unable to get current user information or convert to absolute path
func ExpandHomePath(path string) (string, error) {
	path, err := expandHome(path)
	if err != nil {
		return "", err
	}

	// Convert relative paths to absolute paths
	if !filepath.IsAbs(path) {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return "", fmt.Errorf("failed to convert to absolute path: %w", err)
		}

		return absPath, nil
	}

	return path, nil
}

// ResolvePath expands ${VAR} placeholders and a leading ~/ in path, then
// joins relative results onto base. An empty path stays empty.
func ResolvePath(base, path string) (string, error) {
	path = envvar.Expand(path)
	if path == "" {
		return "", nil
	}

	path, err := expandHome(path)
	if err != nil {
		return "", err
	}

	if filepath.IsAbs(path) {
		return filepath.Clean(path), nil
	}

	if base == "" {
		return "", fmt.Errorf("%w: resolving %s", ErrBasePath, path)
	}

	return filepath.Join(base, path), nil
}

// JoinWithin joins name onto base and rejects results outside base.
func JoinWithin(base, name string) (string, error) {
	if base == "" {
		return "", ErrBasePath
	}

	joined := filepath.Join(base, name)

	rel, err := filepath.Rel(base, joined)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrPathOutsideBase, name)
	}

	return joined, nil
}

func expandHome(path string) (string, error) {
	if !strings.HasPrefix(path, "~/") {
		return path, nil
	}

	usr, err := user.Current()
	if err != nil {
		return "", fmt.Errorf("failed to get current user: %w", err)
	}

	return filepath.Join(usr.HomeDir, path[2:]), nil
}
