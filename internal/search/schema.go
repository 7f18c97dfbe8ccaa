// internal/search/schema.go
package search

import (
	"errors"
	"fmt"
)

// Group is a bool-query clause group a rule contributes to.
type Group string

const (
	GroupMust     Group = "must"
	GroupShould   Group = "should"
	GroupFilter   Group = "filter"
	GroupLocation Group = "location"
)

// Kind selects the validation contract and clause shape of a rule.
type Kind string

const (
	KindEqual     Kind = "equal"
	KindLike      Kind = "like"
	KindIn        Kind = "in"
	KindRange     Kind = "range"
	KindRangeDate Kind = "range_date"
)

// SortOrder is an Elasticsearch sort direction.
type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// GeoField is the geo_point field every geo clause and cluster lookup targets.
const GeoField = "location"

var (
	ErrDuplicateBinding = errors.New("duplicate input key")
	ErrInvalidGroup     = errors.New("invalid rule group")
	ErrInvalidKind      = errors.New("invalid rule kind")
	ErrInvalidSortOrder = errors.New("invalid sort order")
	ErrEmptyBinding     = errors.New("binding key and path are required")
	ErrLocationDeclared = errors.New("location rule already declared")
)

// Binding maps an input parameter key to a document field path.
type Binding struct {
	Key  string
	Path string
}

// KindRules holds the bindings of a single kind inside a group, in declaration order.
type KindRules struct {
	Kind     Kind
	Bindings []Binding
}

// LocationRule configures the geo filter: the params key carrying the point
// descriptor and the default distance sort direction.
type LocationRule struct {
	Key  string
	Sort SortOrder
}

// SortField is a declared field sort.
type SortField struct {
	Path  string
	Order SortOrder
}

// Clause is an opaque query clause passed to the gateway verbatim.
type Clause = map[string]interface{}

// Schema is the immutable rule declaration of a search model. Build one with
// NewSchema and share it freely between goroutines.
type Schema struct {
	groups    map[Group][]KindRules
	location  *LocationRule
	sort      []SortField
	overrides map[Group][]Clause
}

// Rules returns the kinds declared for a group in declaration order.
func (s *Schema) Rules(group Group) []KindRules {
	if s == nil {
		return nil
	}
	return s.groups[group]
}

// Location returns the location rule, or nil when geo filtering is not declared.
func (s *Schema) Location() *LocationRule {
	if s == nil || s.location == nil {
		return nil
	}
	loc := *s.location
	return &loc
}

// Sort returns a copy of the declared field sorts.
func (s *Schema) Sort() []SortField {
	if s == nil {
		return nil
	}
	return append([]SortField(nil), s.sort...)
}

// Overrides returns the override clauses declared for a group.
func (s *Schema) Overrides(group Group) []Clause {
	if s == nil {
		return nil
	}
	return s.overrides[group]
}

// HasOverrides reports whether any override clause was declared.
func (s *Schema) HasOverrides() bool {
	if s == nil {
		return false
	}
	for _, clauses := range s.overrides {
		if len(clauses) > 0 {
			return true
		}
	}
	return false
}

// SchemaBuilder accumulates rule declarations. The first invalid declaration is
// remembered and reported by Build.
type SchemaBuilder struct {
	schema *Schema
	err    error
}

// NewSchema starts a schema declaration.
func NewSchema() *SchemaBuilder {
	return &SchemaBuilder{
		schema: &Schema{
			groups:    make(map[Group][]KindRules),
			overrides: make(map[Group][]Clause),
		},
	}
}

// Rule declares bindings of a kind within a clause group.
func (b *SchemaBuilder) Rule(group Group, kind Kind, bindings ...Binding) *SchemaBuilder {
	if b.err != nil {
		return b
	}
	if !isClauseGroup(group) {
		b.err = fmt.Errorf("%w: %q", ErrInvalidGroup, group)
		return b
	}
	if !isKind(kind) {
		b.err = fmt.Errorf("%w: %q", ErrInvalidKind, kind)
		return b
	}

	rules := b.schema.groups[group]
	idx := -1
	for i := range rules {
		if rules[i].Kind == kind {
			idx = i
			break
		}
	}
	if idx < 0 {
		rules = append(rules, KindRules{Kind: kind})
		idx = len(rules) - 1
	}

	for _, binding := range bindings {
		if binding.Key == "" || binding.Path == "" {
			b.err = fmt.Errorf("%w: group %s, kind %s", ErrEmptyBinding, group, kind)
			return b
		}
		for _, existing := range rules[idx].Bindings {
			if existing.Key == binding.Key {
				b.err = fmt.Errorf("%w %q in group %s, kind %s", ErrDuplicateBinding, binding.Key, group, kind)
				return b
			}
		}
		rules[idx].Bindings = append(rules[idx].Bindings, binding)
	}

	b.schema.groups[group] = rules
	return b
}

// Location declares the geo point parameter key and its default sort direction.
func (b *SchemaBuilder) Location(key string, order SortOrder) *SchemaBuilder {
	if b.err != nil {
		return b
	}
	if b.schema.location != nil {
		b.err = ErrLocationDeclared
		return b
	}
	if key == "" {
		b.err = fmt.Errorf("%w: location", ErrEmptyBinding)
		return b
	}
	if !isSortOrder(order) {
		b.err = fmt.Errorf("%w: %q", ErrInvalidSortOrder, order)
		return b
	}
	b.schema.location = &LocationRule{Key: key, Sort: order}
	return b
}

// Sort appends a declared field sort.
func (b *SchemaBuilder) Sort(path string, order SortOrder) *SchemaBuilder {
	if b.err != nil {
		return b
	}
	if path == "" {
		b.err = fmt.Errorf("%w: sort path", ErrEmptyBinding)
		return b
	}
	if !isSortOrder(order) {
		b.err = fmt.Errorf("%w: %q", ErrInvalidSortOrder, order)
		return b
	}
	b.schema.sort = append(b.schema.sort, SortField{Path: path, Order: order})
	return b
}

// Override declares pre-built clauses merged ahead of the compiled clauses of a group.
func (b *SchemaBuilder) Override(group Group, clauses ...Clause) *SchemaBuilder {
	if b.err != nil {
		return b
	}
	if !isClauseGroup(group) {
		b.err = fmt.Errorf("%w: %q", ErrInvalidGroup, group)
		return b
	}
	b.schema.overrides[group] = append(b.schema.overrides[group], clauses...)
	return b
}

// Build returns the finished schema or the first declaration error.
func (b *SchemaBuilder) Build() (*Schema, error) {
	if b.err != nil {
		return nil, b.err
	}
	return b.schema, nil
}

// MustBuild is Build for static declarations; it panics on error.
func (b *SchemaBuilder) MustBuild() *Schema {
	s, err := b.Build()
	if err != nil {
		panic(err)
	}
	return s
}

func isClauseGroup(g Group) bool {
	return g == GroupMust || g == GroupShould || g == GroupFilter
}

func isKind(k Kind) bool {
	switch k {
	case KindEqual, KindLike, KindIn, KindRange, KindRangeDate:
		return true
	}
	return false
}

func isSortOrder(o SortOrder) bool {
	return o == SortAsc || o == SortDesc
}
