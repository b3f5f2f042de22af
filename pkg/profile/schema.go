package profile

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// profileSchema is the wire contract for submitted profiles. Structural
// validation happens here; the required-attribute check in Validate covers
// semantic completeness and produces the richer IncompleteProfileError.
const profileSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "properties": {
    "id": {"type": "string", "minLength": 1},
    "version": {"type": "integer", "minimum": 0},
    "name": {"type": "string"},
    "purpose": {"type": "string"},
    "sector": {"type": "string"},
    "interaction_mode": {
      "type": "string",
      "enum": ["direct_user_facing", "direct_customer_facing", "indirect", "internal_only"]
    },
    "decision_impact": {
      "type": "string",
      "enum": ["automated_decision", "significant_impact", "legal_consequences", "service_delivery", "advisory_only"]
    },
    "data_types": {"type": "array", "items": {"type": "string"}},
    "deployment_context": {"type": "string"},
    "use_cases": {"type": "array", "items": {"type": "string"}},
    "real_time": {"type": "boolean"},
    "human_oversight": {
      "type": "string",
      "enum": ["none", "minimal", "moderate", "full_review"]
    }
  },
  "additionalProperties": false
}`

var (
	schemaOnce     sync.Once
	compiledSchema *jsonschema.Schema
	schemaErr      error
)

func compiled() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		c := jsonschema.NewCompiler()
		c.Draft = jsonschema.Draft2020
		const url = "https://aegis.schemas.local/profile.schema.json"
		if err := c.AddResource(url, bytes.NewReader([]byte(profileSchema))); err != nil {
			schemaErr = fmt.Errorf("profile schema load failed: %w", err)
			return
		}
		compiledSchema, schemaErr = c.Compile(url)
	})
	return compiledSchema, schemaErr
}

// Parse decodes and validates a submitted profile document. Structural
// violations surface as schema errors; missing required attributes as
// *IncompleteProfileError.
func Parse(raw []byte) (*AISystemProfile, error) {
	schema, err := compiled()
	if err != nil {
		return nil, err
	}

	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("profile is not valid JSON: %w", err)
	}
	if err := schema.Validate(doc); err != nil {
		return nil, fmt.Errorf("profile schema validation failed: %w", err)
	}

	var p AISystemProfile
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("profile decode failed: %w", err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}
