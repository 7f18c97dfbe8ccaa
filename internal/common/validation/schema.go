package validation

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// Schema is a compiled JSON schema that can be reused across validations.
type Schema struct {
	schema *gojsonschema.Schema
}

// Compile compiles a JSON schema given as a Go value (typically a map literal).
func Compile(schema interface{}) (*Schema, error) {
	s, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(schema))
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return &Schema{schema: s}, nil
}

// CompileJSON compiles a JSON schema document.
func CompileJSON(schema []byte) (*Schema, error) {
	s, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(schema))
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return &Schema{schema: s}, nil
}

// MustCompile is Compile for package-level schemas; it panics on error.
func MustCompile(schema interface{}) *Schema {
	s, err := Compile(schema)
	if err != nil {
		panic(err)
	}
	return s
}

// Validate checks a decoded Go value against the schema.
func (s *Schema) Validate(doc interface{}) (*ValidationResult, error) {
	return collect(s.schema.Validate(gojsonschema.NewGoLoader(doc)))
}

// ValidateJSON checks a raw JSON document against the schema.
func (s *Schema) ValidateJSON(doc []byte) (*ValidationResult, error) {
	return collect(s.schema.Validate(gojsonschema.NewBytesLoader(doc)))
}

// ValidateInput validates input against a schema given as a Go value.
func ValidateInput(input interface{}, schema interface{}) (*ValidationResult, error) {
	return collect(gojsonschema.Validate(gojsonschema.NewGoLoader(schema), gojsonschema.NewGoLoader(input)))
}

func collect(result *gojsonschema.Result, err error) (*ValidationResult, error) {
	if err != nil {
		return nil, fmt.Errorf("validate document: %w", err)
	}

	out := &ValidationResult{Valid: result.Valid()}
	for _, re := range result.Errors() {
		out.Errors = append(out.Errors, ValidationError{
			Field:   re.Field(),
			Message: re.Description(),
			Code:    strings.ToUpper(re.Type()),
		})
	}
	return out, nil
}

// Error joins every validation error into one line.
func (r *ValidationResult) Error() string {
	if r == nil || len(r.Errors) == 0 {
		return ""
	}
	parts := make([]string, 0, len(r.Errors))
	for _, e := range r.Errors {
		parts = append(parts, fmt.Sprintf("%s: %s", e.Field, e.Message))
	}
	return strings.Join(parts, "; ")
}
