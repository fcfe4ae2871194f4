// Package pki issues a development certificate authority and certificates
// signed by it for test environments.
//
// Authority is the narrow contract the instance manager consumes.
// FileAuthority is the default implementation and keeps PEM files under one
// directory: <name>_ca_cert.pem and <name>_ca_key.pem for the CA, and
// <host>.crt and <host>.key for each signed certificate.
package pki
