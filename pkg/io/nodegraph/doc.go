// Package nodegraph loads and validates the node graph document.
//
// Validation happens before any backend call: the instantiation order must be
// a permutation of the declared nodes, every assigned component must exist in
// the catalog, and every {{id.attr}} reference must point at system, the
// invoking component, or a node at or before the current node's position.
package nodegraph
