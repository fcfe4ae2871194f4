// Package template substitutes {{identifier.attribute}} references in command strings.
//
// There is no escaping: any "{{" that does not open a well-formed reference
// is an error, never passed through.
package template

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrMalformedTemplate is returned when "{{" does not start a well-formed reference.
var ErrMalformedTemplate = errors.New("malformed template reference")

const openDelim = "{{"

// token matches a reference anchored at the start of the remaining text.
var token = regexp.MustCompile(`^\{\{([A-Za-z0-9_-]+)\.([A-Za-z0-9_-]+)\}\}`)

// Reference is one {{identifier.attribute}} occurrence.
type Reference struct {
	Identifier string
	Attribute  string
}

// String renders the reference in template syntax.
func (r Reference) String() string {
	return openDelim + r.Identifier + "." + r.Attribute + "}}"
}

// LookupFunc returns the value of an attribute of an identifier.
type LookupFunc func(identifier, attribute string) (string, error)

// Render replaces every reference in text with the value returned by lookup.
// Text without "{{" is returned unchanged. The first lookup error aborts rendering.
func Render(text string, lookup LookupFunc) (string, error) {
	if !strings.Contains(text, openDelim) {
		return text, nil
	}

	var builder strings.Builder

	err := scan(text, func(literal string, ref *Reference) error {
		builder.WriteString(literal)

		if ref == nil {
			return nil
		}

		value, lookupErr := lookup(ref.Identifier, ref.Attribute)
		if lookupErr != nil {
			return fmt.Errorf("resolve %s: %w", ref, lookupErr)
		}

		builder.WriteString(value)

		return nil
	})
	if err != nil {
		return "", err
	}

	return builder.String(), nil
}

// References returns every reference in text, in order of appearance.
func References(text string) ([]Reference, error) {
	var refs []Reference

	err := scan(text, func(_ string, ref *Reference) error {
		if ref != nil {
			refs = append(refs, *ref)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return refs, nil
}

// scan walks text and calls visit with each literal run and the reference following it.
func scan(text string, visit func(literal string, ref *Reference) error) error {
	offset := 0

	for {
		idx := strings.Index(text[offset:], openDelim)
		if idx < 0 {
			return visit(text[offset:], nil)
		}

		start := offset + idx

		match := token.FindStringSubmatch(text[start:])
		if match == nil {
			return fmt.Errorf("%w at offset %d: %q", ErrMalformedTemplate, start, excerpt(text[start:]))
		}

		err := visit(text[offset:start], &Reference{Identifier: match[1], Attribute: match[2]})
		if err != nil {
			return err
		}

		offset = start + len(match[0])
	}
}

func excerpt(text string) string {
	const maxExcerpt = 24

	if len(text) <= maxExcerpt {
		return text
	}

	return text[:maxExcerpt] + "..."
}
