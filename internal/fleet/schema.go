package fleet

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// groupsSchema checks the shape of the advisor-groups document before the
// per-field presence checks run: entries must be objects, reference fields
// must be strings, config must be a mapping.
const groupsSchema = `{
	"type": "object",
	"additionalProperties": {
		"type": "object",
		"properties": {
			"advisor":  {"type": "string"},
			"factory":  {"type": "string"},
			"products": {"type": "string"},
			"config":   {"type": "object"}
		},
		"additionalProperties": false
	}
}`

var (
	schemaOnce     sync.Once
	compiledSchema *jsonschema.Schema
	schemaErr      error
)

func validateGroupsDoc(raw map[string]any) error {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("advisor_groups.json", strings.NewReader(groupsSchema)); err != nil {
			schemaErr = err
			return
		}
		compiledSchema, schemaErr = compiler.Compile("advisor_groups.json")
	})
	if schemaErr != nil {
		return fmt.Errorf("advisor groups schema: %w", schemaErr)
	}

	// The validator wants json.Unmarshal value shapes, so round-trip the
	// document (it may arrive with YAML-typed ints and nested maps).
	encoded, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("advisor groups document invalid: %w", err)
	}
	var doc any
	dec := json.NewDecoder(bytes.NewReader(encoded))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return fmt.Errorf("advisor groups document invalid: %w", err)
	}
	if err := compiledSchema.Validate(doc); err != nil {
		return fmt.Errorf("advisor groups document invalid: %w", err)
	}
	return nil
}
