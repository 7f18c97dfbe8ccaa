// pkg/registry/registry.go
package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	apperrors "searchmodel/internal/common/errors"
	"searchmodel/internal/common/validation"
	"searchmodel/internal/search"
)

var compiledSchema = mustCompileSchema()

func mustCompileSchema() *validation.Schema {
	s, err := validation.CompileJSON(definitionSchema)
	if err != nil {
		panic(err)
	}
	return s
}

// LoadRegistry reads and validates a registry file.
func LoadRegistry(path string) (*ModelRegistry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse validates data against the definition schema and decodes it. Model
// names must be unique and every definition must build a valid rule schema.
func Parse(data []byte) (*ModelRegistry, error) {
	result, err := compiledSchema.ValidateJSON(data)
	if err != nil {
		return nil, apperrors.NewInvalidModelDefinitionError(err.Error())
	}
	if !result.Valid {
		return nil, apperrors.NewInvalidModelDefinitionError(result.Error())
	}

	var reg ModelRegistry
	if err := json.Unmarshal(data, &reg); err != nil {
		return nil, apperrors.NewInvalidModelDefinitionError(err.Error())
	}

	seen := make(map[string]bool, len(reg.Models))
	for _, def := range reg.Models {
		if seen[def.Name] {
			return nil, apperrors.NewInvalidModelDefinitionError(fmt.Sprintf("duplicate model %q", def.Name))
		}
		seen[def.Name] = true

		if _, err := def.Schema(); err != nil {
			return nil, apperrors.NewInvalidModelDefinitionError(fmt.Sprintf("model %q: %v", def.Name, err))
		}
	}

	return &reg, nil
}

// Find returns the definition named name.
func (r *ModelRegistry) Find(name string) (*ModelDefinition, bool) {
	for i := range r.Models {
		if r.Models[i].Name == name {
			return &r.Models[i], true
		}
	}
	return nil, false
}

// Schema builds the rule schema of the definition.
func (d ModelDefinition) Schema() (*search.Schema, error) {
	b := search.NewSchema()

	for _, rule := range d.Rules {
		bindings := make([]search.Binding, 0, len(rule.Bindings))
		for _, bd := range rule.Bindings {
			bindings = append(bindings, search.Binding{Key: bd.Key, Path: bd.Path})
		}
		b.Rule(search.Group(rule.Group), search.Kind(rule.Kind), bindings...)
	}

	if d.Location != nil {
		b.Location(d.Location.Key, search.SortOrder(d.Location.Sort))
	}

	for _, s := range d.Sort {
		b.Sort(s.Field, search.SortOrder(s.Order))
	}

	for _, g := range []string{"must", "should", "filter"} {
		if len(d.Overrides[g]) == 0 {
			continue
		}
		clauses := make([]search.Clause, 0, len(d.Overrides[g]))
		for _, c := range d.Overrides[g] {
			clauses = append(clauses, search.Clause(c))
		}
		b.Override(search.Group(g), clauses...)
	}

	return b.Build()
}

// Options returns the per-model options layered over shared defaults.
func (d ModelDefinition) Options() []search.Option {
	opts := []search.Option{search.WithName(d.Name)}
	if d.DefaultLimit > 0 {
		opts = append(opts, search.WithDefaultLimit(d.DefaultLimit))
	}
	if d.FixedLimit > 0 {
		opts = append(opts, search.WithFixedLimit(d.FixedLimit))
	}
	return opts
}

// Catalog holds ready-to-use models keyed by name.
type Catalog struct {
	models      map[string]*search.Model
	definitions map[string]ModelDefinition
}

// NewCatalog builds a model for every definition in reg. shared options apply
// to all models and are overridden by per-definition settings.
func NewCatalog(reg *ModelRegistry, gateway search.Gateway, shared ...search.Option) (*Catalog, error) {
	c := &Catalog{
		models:      make(map[string]*search.Model, len(reg.Models)),
		definitions: make(map[string]ModelDefinition, len(reg.Models)),
	}
	for _, def := range reg.Models {
		schema, err := def.Schema()
		if err != nil {
			return nil, apperrors.NewInvalidModelDefinitionError(fmt.Sprintf("model %q: %v", def.Name, err))
		}
		opts := append(append([]search.Option(nil), shared...), def.Options()...)
		c.models[def.Name] = search.NewModel(gateway, def.Index, schema, opts...)
		c.definitions[def.Name] = def
	}
	return c, nil
}

// Model returns the model named name or a MODEL_NOT_FOUND error.
func (c *Catalog) Model(name string) (*search.Model, error) {
	m, ok := c.models[name]
	if !ok {
		return nil, apperrors.NewModelNotFoundError(name)
	}
	return m, nil
}

// PrimaryKey returns the declared primary key of a model, if any.
func (c *Catalog) PrimaryKey(name string) string {
	return c.definitions[name].PrimaryKey
}

// Names lists the catalog models in lexical order.
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.models))
	for name := range c.models {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
