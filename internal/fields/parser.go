// Package fields parses the caller's field declarations for an auto-fill request.
package fields

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/joseph-ayodele/autofill/internal/common"
)

// Spec is one requested field. TypeHint is informative only and never enforced.
type Spec struct {
	Name     string
	TypeHint string
	HasType  bool
}

// Names returns the field names in request order.
func Names(specs []Spec) []string {
	out := make([]string, len(specs))
	for i, s := range specs {
		out[i] = s.Name
	}
	return out
}

const specSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "array",
  "items": {
    "type": "object",
    "required": ["field_name"],
    "properties": {
      "field_name": {"type": "string", "pattern": "\\S"},
      "field_type": {"type": ["string", "null"]}
    }
  }
}`

var specSchema = jsonschema.MustCompileString("fields.schema.json", specSchemaJSON)

// Parse validates the raw fields payload and returns the specs in declared order.
// Every failure matches common.ErrMalformedFieldSpec.
func Parse(raw []byte) ([]Spec, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, common.MalformedFieldSpec("fields payload is empty")
	}

	var doc any
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return nil, common.MalformedFieldSpec(fmt.Sprintf("invalid JSON: %v", err))
	}
	if dec.More() {
		return nil, common.MalformedFieldSpec("invalid JSON: trailing data after array")
	}

	if err := specSchema.Validate(doc); err != nil {
		return nil, common.MalformedFieldSpec(describe(err))
	}

	items := doc.([]any)
	out := make([]Spec, 0, len(items))
	seen := make(map[string]int, len(items))
	for i, it := range items {
		obj := it.(map[string]any)
		name := obj["field_name"].(string)
		if first, dup := seen[name]; dup {
			return nil, common.MalformedFieldSpec(
				fmt.Sprintf("duplicate field_name %q at index %d (first declared at index %d)", name, i, first))
		}
		seen[name] = i

		s := Spec{Name: name}
		if ft, ok := obj["field_type"].(string); ok {
			s.TypeHint = ft
			s.HasType = true
		}
		out = append(out, s)
	}
	return out, nil
}

// describe turns a schema failure into a short, stable message naming the offending element.
func describe(err error) string {
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return err.Error()
	}
	leaf := ve
	for len(leaf.Causes) > 0 {
		leaf = leaf.Causes[0]
	}
	loc := leaf.InstanceLocation
	if loc == "" {
		loc = "/"
	}
	msg := leaf.Message
	switch {
	case loc == "/" && strings.Contains(msg, "expected array"):
		return "fields must be a JSON array"
	case strings.HasSuffix(loc, "/field_name"):
		return fmt.Sprintf("field_name at %s must be a non-blank string", strings.TrimSuffix(loc, "/field_name"))
	case strings.HasSuffix(loc, "/field_type"):
		return fmt.Sprintf("field_type at %s must be a string or null", strings.TrimSuffix(loc, "/field_type"))
	case strings.Contains(msg, "missing properties"):
		return fmt.Sprintf("element at %s is missing field_name", loc)
	case strings.Contains(msg, "expected object"):
		return fmt.Sprintf("element at %s must be an object", loc)
	}
	return fmt.Sprintf("%s: %s", loc, msg)
}
