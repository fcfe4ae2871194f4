// Package envvar expands environment references in settings values.
package envvar

import (
	"os"
	"regexp"
)

// reference matches ${NAME} and ${NAME:-fallback}.
var reference = regexp.MustCompile(`\$\{([a-zA-Z_][a-zA-Z0-9_]*)(:-([^}]*))?\}`)

// Expand replaces ${NAME} references with values from the process
// environment. ${NAME:-fallback} uses fallback when NAME is unset or empty;
// a plain reference to an unset variable becomes the empty string.
func Expand(value string) string {
	return ExpandFunc(value, os.Getenv)
}

// ExpandFunc is Expand with lookup in place of os.Getenv.
func ExpandFunc(value string, lookup func(string) string) string {
	if value == "" {
		return value
	}

	return reference.ReplaceAllStringFunc(value, func(match string) string {
		groups := reference.FindStringSubmatch(match)

		resolved := lookup(groups[1])
		if resolved == "" && groups[2] != "" {
			return groups[3]
		}

		return resolved
	})
}
