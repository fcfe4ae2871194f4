// Package resolver binds late values, such as node addresses, into templated
// commands and configuration.
//
// Node attributes are queried once and cached. The cache never holds a node
// that has not been created, and Invalidate forces the next Resolve to query
// again. Concurrent resolutions of the same node share one query.
package resolver
