package intake

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/referral-intake/platform/pkg/payload"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

// DefaultSchema is the referral API contract checked before submission.
const DefaultSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["resourceType", "to", "payload"],
  "properties": {
    "resourceType": {"type": "string", "minLength": 1},
    "from": {
      "type": "object",
      "properties": {
        "sourceFaxNo": {"type": "string"},
        "received": {"type": "string"}
      }
    },
    "to": {
      "type": "object",
      "required": ["organization", "destinationFaxNo"],
      "properties": {
        "organization": {
          "type": "object",
          "required": ["name"],
          "properties": {"name": {"type": "string"}}
        },
        "destinationFaxNo": {"type": "string"}
      }
    },
    "patient": {
      "type": "object",
      "properties": {
        "gender": {"enum": ["male", "female", "other", "unknown"]}
      }
    },
    "referral": {
      "type": "object",
      "properties": {
        "urgency": {"enum": ["urgent", "routine"]},
        "communicationConsent": {"enum": ["Y", "N"]},
        "prefCommunicationMethod": {"enum": ["sms", "phone", "post", "email"]}
      }
    },
    "payload": {
      "type": "object",
      "required": ["filename", "type", "content"],
      "properties": {
        "filename": {"type": "string", "minLength": 1},
        "type": {"type": "string"},
        "numberOfPages": {"type": "string"},
        "content": {"type": "string"}
      }
    }
  }
}`

const schemaResource = "referral.schema.json"

type ValidationError struct {
	reason error
}

func (e ValidationError) Error() string {
	return e.reason.Error()
}

func (e ValidationError) Unwrap() error {
	return e.reason
}

func IsValidationError(err error) bool {
	var ve ValidationError
	return errors.As(err, &ve)
}

type Validator struct {
	schema *jsonschema.Schema
}

// NewValidator compiles schema; an empty schema uses DefaultSchema.
func NewValidator(schema string) (*Validator, error) {
	if schema == "" {
		schema = DefaultSchema
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(schemaResource, bytes.NewReader([]byte(schema))); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	compiled, err := compiler.Compile(schemaResource)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return &Validator{schema: compiled}, nil
}

// LoadValidator reads the schema from path, or uses the default for "".
func LoadValidator(path string) (*Validator, error) {
	if path == "" {
		return NewValidator("")
	}
	content, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, err
	}
	return NewValidator(string(content))
}

func (v *Validator) Validate(p *payload.Value) error {
	if v == nil {
		return ValidationError{reason: errors.New("validator not initialised")}
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return ValidationError{reason: fmt.Errorf("encoding payload: %w", err)}
	}
	var doc interface{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return ValidationError{reason: fmt.Errorf("decoding payload: %w", err)}
	}
	if err := v.schema.Validate(doc); err != nil {
		return ValidationError{reason: fmt.Errorf("payload does not match referral schema: %w", err)}
	}
	return nil
}
