// Package schema generates JSON schemas for the node graph and catalog
// documents so editors can validate them.
package schema

import (
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/devantler-tech/testbed/pkg/apis/testbed/v1alpha1"
	"github.com/invopop/jsonschema"
)

// NodeGraph returns the schema of a node graph file.
func NodeGraph() *jsonschema.Schema {
	schema := reflector().Reflect(&v1alpha1.NodeGraph{})
	schema.ID = ""
	schema.Title = "testbed node graph"
	schema.Description = "Nodes of a test environment and the order they are created in"
	schema.Required = []string{"nodes", "instance_order"}

	return schema
}

// Component returns the schema of a catalog component document.
func Component() *jsonschema.Schema {
	schema := reflector().Reflect(&v1alpha1.Component{})
	schema.ID = ""
	schema.Title = "testbed catalog component"
	schema.Description = "Lifecycle commands and directories of an installable component"
	schema.Required = []string{"name"}

	restrictKeys(schema, "commands", new(v1alpha1.Stage).ValidValues())
	restrictKeys(schema, "directories", new(v1alpha1.DirectoryRole).ValidValues())

	return schema
}

// Marshal renders a schema as indented JSON.
func Marshal(schema *jsonschema.Schema) ([]byte, error) {
	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}

	return append(data, '\n'), nil
}

func reflector() *jsonschema.Reflector {
	return &jsonschema.Reflector{
		AllowAdditionalProperties:  false,
		DoNotReference:             true,
		RequiredFromJSONSchemaTags: true,
		Mapper:                     enumMapper,
	}
}

// restrictKeys limits the keys of the object property name to values.
func restrictKeys(schema *jsonschema.Schema, name string, values []string) {
	if schema.Properties == nil {
		return
	}

	property, ok := schema.Properties.Get(name)
	if !ok || property == nil {
		return
	}

	property.PropertyNames = &jsonschema.Schema{Type: "string", Enum: toAny(values)}
}

// enumMapper renders types implementing EnumValuer as string enums.
func enumMapper(t reflect.Type) *jsonschema.Schema {
	enumValuerType := reflect.TypeFor[v1alpha1.EnumValuer]()
	if !reflect.PointerTo(t).Implements(enumValuerType) {
		return nil
	}

	valuer, ok := reflect.New(t).Interface().(v1alpha1.EnumValuer)
	if !ok {
		return nil
	}

	return &jsonschema.Schema{Type: "string", Enum: toAny(valuer.ValidValues())}
}

func toAny(values []string) []any {
	out := make([]any, len(values))
	for i, value := range values {
		out[i] = value
	}

	return out
}
