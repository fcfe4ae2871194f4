package resolver

import (
	"context"
	"fmt"
	"maps"

	"github.com/devantler-tech/testbed/pkg/apis/testbed/v1alpha1"
	"github.com/devantler-tech/testbed/pkg/svc/template"
)

// Context is an immutable set of scopes a template is rendered against:
// resolved nodes, at most one component, and the system scope.
type Context struct {
	scopes   map[string]Attributes
	declared func(identifier string) bool
}

// ContextOptions selects what goes into a Context.
type ContextOptions struct {
	// Nodes are resolved before the context is built. Nodes already in the
	// cache are always included.
	Nodes []string
	// Component names the component scope, if any.
	Component string
	// Params are the component's instance parameters.
	Params v1alpha1.AppParams
}

// Context builds a Context from the cache, the requested nodes, the optional
// component scope and the system scope.
func (r *Resolver) Context(ctx context.Context, options ContextOptions) (*Context, error) {
	for _, nodeID := range options.Nodes {
		_, err := r.Resolve(ctx, nodeID)
		if err != nil {
			return nil, err
		}
	}

	scopes := r.Cached()
	scopes[v1alpha1.SystemScope] = r.System()

	if options.Component != "" {
		params, err := flattenParams(options.Component, options.Params)
		if err != nil {
			return nil, err
		}

		scopes[options.Component] = params
	}

	return &Context{
		scopes: scopes,
		declared: func(identifier string) bool {
			_, ok := r.graph.Node(identifier)

			return ok
		},
	}, nil
}

// NewContext builds a Context from explicit scopes, mostly for tests and
// callers without a Resolver.
func NewContext(scopes map[string]Attributes) *Context {
	cloned := make(map[string]Attributes, len(scopes))
	for identifier, attrs := range scopes {
		cloned[identifier] = maps.Clone(attrs)
	}

	return &Context{scopes: cloned, declared: func(string) bool { return false }}
}

// Scope returns a copy of one scope.
func (c *Context) Scope(identifier string) (Attributes, bool) {
	attrs, ok := c.scopes[identifier]

	return maps.Clone(attrs), ok
}

// Lookup returns one attribute from the context.
func (c *Context) Lookup(identifier, attribute string) (string, error) {
	attrs, ok := c.scopes[identifier]
	if !ok {
		if c.declared(identifier) {
			return "", fmt.Errorf("%w: %s", ErrNodeNotCreated, identifier)
		}

		return "", fmt.Errorf("%w: %q", ErrUnknownNode, identifier)
	}

	return lookupScope(identifier, attrs, attribute)
}

// Render substitutes every reference in text from the context.
func (c *Context) Render(text string) (string, error) {
	rendered, err := template.Render(text, c.Lookup)
	if err != nil {
		return "", fmt.Errorf("render %q: %w", text, err)
	}

	return rendered, nil
}

// RenderAll renders each text in order, stopping at the first failure.
func (c *Context) RenderAll(texts []string) ([]string, error) {
	rendered := make([]string, 0, len(texts))

	for _, text := range texts {
		value, err := c.Render(text)
		if err != nil {
			return nil, err
		}

		rendered = append(rendered, value)
	}

	return rendered, nil
}

// flattenParams decodes the declared params to strings.
func flattenParams(component string, params v1alpha1.AppParams) (Attributes, error) {
	flat, err := params.Strings()
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidParams, component, err)
	}

	return Attributes(flat), nil
}
