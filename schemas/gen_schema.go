//go:build ignore

// gen_schema.go writes the JSON schemas of the node graph and catalog
// component documents.
//
// Usage:
//
//	go run gen_schema.go [output-dir]
package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/devantler-tech/testbed/pkg/io/schema"
	"github.com/invopop/jsonschema"
)

const (
	dirPermissions  = 0o750
	filePermissions = 0o600
)

func main() {
	if err := run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func run(args []string) error {
	outputDir := "."
	if len(args) > 1 {
		outputDir = args[1]
	}

	if err := os.MkdirAll(outputDir, dirPermissions); err != nil {
		return fmt.Errorf("create %s: %w", outputDir, err)
	}

	documents := map[string]*jsonschema.Schema{
		"testbed-nodes.schema.json":     schema.NodeGraph(),
		"testbed-component.schema.json": schema.Component(),
	}

	for name, document := range documents {
		data, err := schema.Marshal(document)
		if err != nil {
			return err
		}

		path := filepath.Join(outputDir, name)
		if err := os.WriteFile(path, data, filePermissions); err != nil {
			return fmt.Errorf("write schema to %s: %w", path, err)
		}

		fmt.Printf("gen_schema: wrote %s (%d bytes)\n", path, len(data))
	}

	return nil
}
