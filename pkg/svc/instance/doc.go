// Package instance drives nodes of a node graph through their lifecycle:
// creation, initialization, config generation, software installation,
// config application and trust bootstrap.
package instance
