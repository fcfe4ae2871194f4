package nodegraph

import (
	"fmt"
	"slices"
	"strings"
)

// dependencies records which nodes each node's commands reference.
type dependencies struct {
	edges map[string][]string
}

func newDependencies() *dependencies {
	return &dependencies{edges: map[string][]string{}}
}

func (d *dependencies) addNode(name string) {
	if _, ok := d.edges[name]; !ok {
		d.edges[name] = nil
	}
}

func (d *dependencies) addEdge(from, to string) {
	if from == to || slices.Contains(d.edges[from], to) {
		return
	}

	d.edges[from] = append(d.edges[from], to)
}

// detectCycle returns the first cycle found, visiting nodes in the given order.
func (d *dependencies) detectCycle(order []string) []string {
	visiting := map[string]bool{}
	visited := map[string]bool{}
	path := []string{}

	var visit func(name string) []string

	visit = func(name string) []string {
		visiting[name] = true
		path = append(path, name)

		for _, dep := range d.edges[name] {
			if visiting[dep] {
				start := slices.Index(path, dep)

				return append(slices.Clone(path[start:]), dep)
			}

			if !visited[dep] {
				if cycle := visit(dep); cycle != nil {
					return cycle
				}
			}
		}

		delete(visiting, name)
		visited[name] = true
		path = path[:len(path)-1]

		return nil
	}

	for _, name := range order {
		if !visited[name] {
			if cycle := visit(name); cycle != nil {
				return cycle
			}
		}
	}

	return nil
}

// suggestOrder returns a topological order that keeps the declared order
// wherever the dependencies allow it.
func (d *dependencies) suggestOrder(order []string) []string {
	placed := map[string]bool{}
	result := make([]string, 0, len(order))

	for len(result) < len(order) {
		progressed := false

		for _, name := range order {
			if placed[name] {
				continue
			}

			ready := true

			for _, dep := range d.edges[name] {
				if !placed[dep] {
					ready = false

					break
				}
			}

			if ready {
				placed[name] = true
				result = append(result, name)
				progressed = true

				break
			}
		}

		if !progressed {
			return nil
		}
	}

	return result
}

// explain describes how to fix an order with forward references.
func (d *dependencies) explain(order []string) string {
	if cycle := d.detectCycle(order); cycle != nil {
		return fmt.Sprintf("references form a cycle: %s", strings.Join(cycle, " -> "))
	}

	if suggested := d.suggestOrder(order); suggested != nil {
		return fmt.Sprintf("a valid instance_order would be [%s]", strings.Join(suggested, ", "))
	}

	return ""
}
