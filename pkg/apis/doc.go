// Package apis provides the declarative types of a testbed workspace.
//
//   - testbed/v1alpha1: Node graph, node and software component types
package apis
