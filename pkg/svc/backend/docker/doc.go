// Package docker implements the execution backend on top of the Docker Engine API.
//
// Each node is a long-running container named after the node. Commands run
// through exec sessions, files move as tar streams and snapshots are image
// commits tagged testbed-snapshot/<node>:<name>.
package docker
