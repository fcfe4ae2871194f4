// Package docker builds Docker Engine API clients from the environment.
package docker
