// Package client wraps external engines used by testbed.
//
//   - docker: Docker engine client construction
//   - netretry: Transient network error classification and backoff
package client
