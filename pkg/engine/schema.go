package engine

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const preflightSchemaURL = "https://scalegate.schemas.local/engine/preflight.schema.json"

// preflightSchema pins the shape of a preflight verdict. A verdict that does
// not match is treated as a failed preflight, never as a usable verdict.
const preflightSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["mode", "blockers", "critical_warnings", "can_proceed", "ack_required"],
  "properties": {
    "mode": {"type": "string"},
    "blockers": {"type": "array", "items": {"$ref": "#/$defs/issue"}},
    "critical_warnings": {"type": "array", "items": {"$ref": "#/$defs/issue"}},
    "can_proceed": {"type": "boolean"},
    "ack_required": {"type": "boolean"}
  },
  "$defs": {
    "issue": {
      "type": "object",
      "required": ["code", "message"],
      "properties": {
        "code": {"type": "string"},
        "message": {"type": "string"},
        "recommended_action": {"type": "string"}
      }
    }
  }
}`

func compilePreflightSchema() (*jsonschema.Schema, error) {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	if err := c.AddResource(preflightSchemaURL, strings.NewReader(preflightSchema)); err != nil {
		return nil, fmt.Errorf("preflight schema load failed: %w", err)
	}
	compiled, err := c.Compile(preflightSchemaURL)
	if err != nil {
		return nil, fmt.Errorf("preflight schema compile failed: %w", err)
	}
	return compiled, nil
}

// validatePreflight checks a raw verdict body against the schema.
func validatePreflight(schema *jsonschema.Schema, raw []byte) error {
	var doc any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return fmt.Errorf("preflight body is not JSON: %w", err)
	}
	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("preflight body rejected: %w", err)
	}
	return nil
}
