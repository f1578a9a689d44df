// Package main generates the JSON schema of the brc json report.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/LetzteFee/1brc/pkg/report"
)

const draft07 = "https://json-schema.org/draft-07/schema#"

// Schema represents a JSON Schema.
type Schema struct {
	Schema      string             `json:"$schema,omitempty"`
	Title       string             `json:"title,omitempty"`
	Description string             `json:"description,omitempty"`
	Type        string             `json:"type,omitempty"`
	Properties  map[string]*Schema `json:"properties,omitempty"`
	Items       *Schema            `json:"items,omitempty"`
	Required    []string           `json:"required,omitempty"`
	Ref         string             `json:"$ref,omitempty"`
	Definitions map[string]*Schema `json:"definitions,omitempty"`
}

func main() {
	outputDir := flag.String("o", "docs/schemas", "Output directory for schemas")
	flag.Parse()

	if err := os.MkdirAll(*outputDir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "Error creating output directory: %v\n", err)
		os.Exit(1)
	}

	path := filepath.Join(*outputDir, "report.json")

	if err := writeSchema(path, reportSchema()); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing schema: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Generated %s\n", path)
}

// reportSchema describes `brc run --format json`: an array of entries
// sorted by name.
func reportSchema() *Schema {
	defs := make(map[string]*Schema)
	items := typeToSchema(reflect.TypeFor[report.Entry](), defs)

	return &Schema{
		Schema:      draft07,
		Title:       "brc report",
		Description: "Per-name minimum, mean and maximum, sorted by name in byte order",
		Type:        "array",
		Items:       items,
		Definitions: defs,
	}
}

func structToProperties(t reflect.Type, defs map[string]*Schema) (map[string]*Schema, []string) {
	props := make(map[string]*Schema)

	var required []string

	for field := range fields(t) {
		jsonName, opts, _ := strings.Cut(field.Tag.Get("json"), ",")
		if jsonName == "-" || jsonName == "" {
			continue
		}

		props[jsonName] = typeToSchema(field.Type, defs)

		if opts != "omitempty" {
			required = append(required, jsonName)
		}
	}

	return props, required
}

func fields(t reflect.Type) func(yield func(reflect.StructField) bool) {
	return func(yield func(reflect.StructField) bool) {
		for i := range t.NumField() {
			if !yield(t.Field(i)) {
				return
			}
		}
	}
}

func typeToSchema(t reflect.Type, defs map[string]*Schema) *Schema {
	switch t.Kind() {
	case reflect.String:
		return &Schema{Type: "string"}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return &Schema{Type: "integer"}
	case reflect.Float32, reflect.Float64:
		return &Schema{Type: "number"}
	case reflect.Bool:
		return &Schema{Type: "boolean"}
	case reflect.Slice:
		return &Schema{Type: "array", Items: typeToSchema(t.Elem(), defs)}
	case reflect.Struct:
		if _, exists := defs[t.Name()]; !exists {
			props, required := structToProperties(t, defs)
			defs[t.Name()] = &Schema{Type: "object", Properties: props, Required: required}
		}

		return &Schema{Ref: "#/definitions/" + t.Name()}
	case reflect.Ptr:
		return typeToSchema(t.Elem(), defs)
	default:
		return &Schema{Type: "object"}
	}
}

func writeSchema(path string, schema *Schema) error {
	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal schema: %w", err)
	}

	return os.WriteFile(path, append(data, '\n'), 0o644)
}
