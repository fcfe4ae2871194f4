// Package v1alpha1 contains the declarative types of a testbed environment:
// the node graph (nodes, their backend parameters, assigned software and
// instantiation order) and the software catalog components.
package v1alpha1
