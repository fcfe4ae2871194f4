// Package schemas holds the generated JSON schemas of the workspace documents.
//
// Run: go generate ./schemas/...
package schemas

//go:generate go run gen_schema.go .
