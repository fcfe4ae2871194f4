package nodegraph

import (
	"errors"
	"fmt"
	"regexp"
	"slices"

	"github.com/devantler-tech/testbed/pkg/apis/testbed/v1alpha1"
	"github.com/devantler-tech/testbed/pkg/svc/template"
)

var identifierPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// ComponentSource gives the validator access to catalog components.
type ComponentSource interface {
	Get(name string) (*v1alpha1.Component, error)
	Has(name string) bool
}

// Validate checks the graph against the catalog. All issues are reported
// together, joined in a deterministic order.
func Validate(graph *v1alpha1.NodeGraph, components ComponentSource) error {
	issues := validateOrder(graph)
	if len(issues) > 0 {
		return errors.Join(issues...)
	}

	deps := newDependencies()

	for position, node := range graph.Ordered() {
		deps.addNode(node.Name)
		issues = append(issues, validateNode(graph, components, node, position, deps)...)
	}

	if len(issues) == 0 {
		return nil
	}

	for i, issue := range issues {
		if errors.Is(issue, ErrForwardReference) {
			if hint := deps.explain(graph.InstanceOrder); hint != "" {
				issues[i] = fmt.Errorf("%w (%s)", issue, hint)
			}

			break
		}
	}

	return errors.Join(issues...)
}

func validateOrder(graph *v1alpha1.NodeGraph) []error {
	var issues []error

	seen := map[string]bool{}

	for _, name := range graph.InstanceOrder {
		if seen[name] {
			issues = append(issues, fmt.Errorf("%w: node %q appears twice in instance_order", ErrInvalidGraph, name))
		}

		seen[name] = true

		if _, ok := graph.Nodes[name]; !ok {
			issues = append(issues, fmt.Errorf("%w: instance_order names undeclared node %q", ErrInvalidGraph, name))
		}
	}

	names := make([]string, 0, len(graph.Nodes))
	for name := range graph.Nodes {
		names = append(names, name)
	}

	slices.Sort(names)

	for _, name := range names {
		if !seen[name] {
			issues = append(issues, fmt.Errorf("%w: node %q is missing from instance_order", ErrInvalidGraph, name))
		}
	}

	return issues
}

func validateNode(
	graph *v1alpha1.NodeGraph,
	components ComponentSource,
	node *v1alpha1.Node,
	position int,
	deps *dependencies,
) []error {
	var issues []error

	fail := func(format string, args ...any) {
		issues = append(issues, fmt.Errorf("%w: node %q: "+format, append([]any{ErrInvalidGraph, node.Name}, args...)...))
	}

	if !identifierPattern.MatchString(node.Name) {
		fail("identifier must match %s", identifierPattern)
	}

	if node.Name == v1alpha1.SystemScope {
		fail("%q is a reserved identifier", v1alpha1.SystemScope)
	}

	if !node.UsesBackend() && (node.Remote == nil || node.Remote.Host == "") {
		fail("declares neither vm_params/vm_template nor remote.host")
	}

	if node.UsesBackend() && node.Remote != nil {
		fail("declares both backend parameters and a remote target")
	}

	for _, generator := range node.ConfigGenerators {
		if (generator.Command == "") == (len(generator.Args) == 0) {
			fail("config generator must set exactly one of command or args")
		}
	}

	check := newReferenceChecker(graph, node, position, deps)

	for _, name := range node.ComponentNames() {
		if _, clash := graph.Nodes[name]; clash {
			fail("component %q has the same name as a node", name)
		}

		_, err := node.Apps[name].Strings()
		if err != nil {
			fail("component %q: %v", name, err)
		}

		component, err := components.Get(name)
		if err != nil {
			issues = append(issues, fmt.Errorf("%w: node %q: %w", ErrInvalidGraph, node.Name, err))

			continue
		}

		for _, stage := range v1alpha1.ValidStages() {
			for _, command := range component.CommandsFor(stage) {
				issues = append(issues, check.command(fmt.Sprintf("component %s %s", name, stage), command, name)...)
			}
		}
	}

	for _, command := range node.InitCommands {
		issues = append(issues, check.command("init command", command, "")...)
	}

	for _, command := range node.InstanceCommands {
		issues = append(issues, check.command("instance command", command, "")...)
	}

	for _, generator := range node.ConfigGenerators {
		for _, text := range append([]string{generator.Command}, generator.Args...) {
			issues = append(issues, check.command("config generator", text, "")...)
		}
	}

	return issues
}

type referenceChecker struct {
	graph    *v1alpha1.NodeGraph
	node     *v1alpha1.Node
	position int
	deps     *dependencies
}

func newReferenceChecker(
	graph *v1alpha1.NodeGraph,
	node *v1alpha1.Node,
	position int,
	deps *dependencies,
) *referenceChecker {
	return &referenceChecker{graph: graph, node: node, position: position, deps: deps}
}

// command checks every reference of one command. component is the scope of
// the invoking component, or empty for node-level commands.
func (c *referenceChecker) command(where, text, component string) []error {
	refs, err := template.References(text)
	if err != nil {
		return []error{fmt.Errorf("%w: node %q: %s: %w", ErrInvalidGraph, c.node.Name, where, err)}
	}

	var issues []error

	for _, ref := range refs {
		issue := c.reference(ref, component)
		if issue != nil {
			issues = append(issues, fmt.Errorf("node %q: %s %q: %w", c.node.Name, where, text, issue))
		}
	}

	return issues
}

func (c *referenceChecker) reference(ref template.Reference, component string) error {
	if ref.Identifier == v1alpha1.SystemScope {
		return nil
	}

	if component != "" && ref.Identifier == component {
		if _, ok := c.node.Apps[component][ref.Attribute]; !ok {
			return fmt.Errorf("%w: %s: component %q has no parameter %q on this node",
				ErrUnknownReference, ref, component, ref.Attribute)
		}

		return nil
	}

	target, ok := c.graph.Node(ref.Identifier)
	if !ok {
		return fmt.Errorf("%w: %s: no node or component named %q", ErrUnknownReference, ref, ref.Identifier)
	}

	if !slices.Contains(target.StaticAttributes(), ref.Attribute) {
		return fmt.Errorf("%w: %s: node %q has no attribute %q", ErrUnknownReference, ref, target.Name, ref.Attribute)
	}

	c.deps.addEdge(c.node.Name, target.Name)

	if c.graph.Position(target.Name) > c.position {
		return fmt.Errorf("%w: %s: node %q is instantiated after %q", ErrForwardReference, ref, target.Name, c.node.Name)
	}

	return nil
}
