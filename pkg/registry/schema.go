// pkg/registry/schema.go
package registry

import _ "embed"

// ModelRegistry is the on-disk catalog of search model definitions.
type ModelRegistry struct {
	Version     string            `json:"version"`
	LastUpdated string            `json:"lastUpdated,omitempty"`
	Models      []ModelDefinition `json:"models"`
}

// ModelDefinition declares one search model: the index it reads and the rules
// compiled from request params.
type ModelDefinition struct {
	Name         string                              `json:"name"`
	Index        string                              `json:"index"`
	Description  string                              `json:"description,omitempty"`
	DefaultLimit int                                 `json:"defaultLimit,omitempty"`
	FixedLimit   int                                 `json:"fixedLimit,omitempty"`
	PrimaryKey   string                              `json:"primaryKey,omitempty"`
	Rules        []RuleDefinition                    `json:"rules"`
	Location     *LocationDefinition                 `json:"location,omitempty"`
	Sort         []SortDefinition                    `json:"sort,omitempty"`
	Overrides    map[string][]map[string]interface{} `json:"overrides,omitempty"`
}

type RuleDefinition struct {
	Group    string              `json:"group"`
	Kind     string              `json:"kind"`
	Bindings []BindingDefinition `json:"bindings"`
}

type BindingDefinition struct {
	Key  string `json:"key"`
	Path string `json:"path"`
}

type LocationDefinition struct {
	Key  string `json:"key"`
	Sort string `json:"sort"`
}

type SortDefinition struct {
	Field string `json:"field"`
	Order string `json:"order"`
}

// definitionSchema is the JSON schema every registry file must satisfy.
//
//go:embed models.schema.json
var definitionSchema []byte
