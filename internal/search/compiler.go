package search

import (
	"fmt"

	apperrors "searchmodel/internal/common/errors"
)

// DistanceUnit is the unit used for geo distance filters and sorts.
const DistanceUnit = "km"

// DateFormat is the format attached to range_date clauses.
const DateFormat = "yyyy-MM-dd"

// ClusterZoomThreshold is the minimum zoom at which scan results are clustered.
const ClusterZoomThreshold = 13

// GeoState carries the per-request geo settings resolved while compiling. It is
// read by ComposeSort and by the scan to decide on clustering.
type GeoState struct {
	Enabled    bool
	Lat        float64
	Lon        float64
	Sort       SortOrder
	Clustering bool
	Zoom       float64
}

// ShouldCluster reports whether scan results must be grouped by geohash.
func (g GeoState) ShouldCluster() bool {
	return g.Clustering && g.Zoom >= ClusterZoomThreshold
}

// Compiled is the outcome of compiling params against a schema.
type Compiled struct {
	IsChanged bool
	Query     map[Group][]Clause
	Geo       GeoState
}

// BoolQuery renders the compiled clauses as an Elasticsearch query, or nil when
// no condition was produced.
func (c *Compiled) BoolQuery() map[string]interface{} {
	if c == nil || !c.IsChanged {
		return nil
	}
	body := make(map[string]interface{}, len(c.Query))
	for _, group := range clauseGroups {
		if clauses := c.Query[group]; len(clauses) > 0 {
			body[string(group)] = clauses
		}
	}
	return map[string]interface{}{"bool": body}
}

var clauseGroups = []Group{GroupMust, GroupShould, GroupFilter}

// Compile validates params against the schema rules and builds the bool query.
// The first invalid parameter aborts compilation with a VALIDATION_FAILED error.
func Compile(schema *Schema, params Params) (*Compiled, error) {
	c := &Compiled{Query: make(map[Group][]Clause)}

	must, err := collectRules(schema.Rules(GroupMust), params)
	if err != nil {
		return nil, err
	}
	if len(must) > 0 {
		c.IsChanged = true
		c.Query[GroupMust] = must
	}

	should, err := collectRules(schema.Rules(GroupShould), params)
	if err != nil {
		return nil, err
	}
	if len(should) > 0 {
		c.IsChanged = true
		c.Query[GroupShould] = should
	}

	filter, err := collectRules(schema.Rules(GroupFilter), params)
	if err != nil {
		return nil, err
	}

	if loc := schema.Location(); loc != nil {
		geoClauses, geo, err := compileLocation(loc, params)
		if err != nil {
			return nil, err
		}
		filter = append(filter, geoClauses...)
		c.Geo = geo
	}

	if len(filter) > 0 {
		c.IsChanged = true
		c.Query[GroupFilter] = filter
	}

	if c.IsChanged && schema.HasOverrides() {
		mergeOverrides(schema, c)
	}

	return c, nil
}

// mergeOverrides prepends override clauses to each group they are declared for.
func mergeOverrides(schema *Schema, c *Compiled) {
	for _, group := range clauseGroups {
		overrides := schema.Overrides(group)
		if len(overrides) == 0 {
			continue
		}
		merged := make([]Clause, 0, len(overrides)+len(c.Query[group]))
		merged = append(merged, overrides...)
		merged = append(merged, c.Query[group]...)
		c.Query[group] = merged
	}
}

func collectRules(rules []KindRules, params Params) ([]Clause, error) {
	var clauses []Clause
	for _, rule := range rules {
		for _, binding := range rule.Bindings {
			if !isset(params, binding.Key) {
				continue
			}
			clause, err := buildClause(rule.Kind, binding, params[binding.Key])
			if err != nil {
				return nil, err
			}
			clauses = append(clauses, clause)
		}
	}
	return clauses, nil
}

func buildClause(kind Kind, binding Binding, value interface{}) (Clause, error) {
	switch kind {
	case KindEqual:
		if !isNumeric(value) {
			return nil, validationError(binding.Key, kind, "value must be numeric")
		}
		return Clause{"term": map[string]interface{}{binding.Path: value}}, nil

	case KindLike:
		if _, ok := value.(string); !ok {
			return nil, validationError(binding.Key, kind, "value must be a string")
		}
		return Clause{"term": map[string]interface{}{binding.Path + ".keyword": value}}, nil

	case KindIn:
		if !isSequence(value) {
			return nil, validationError(binding.Key, kind, "value must be a list")
		}
		return Clause{"terms": map[string]interface{}{binding.Path: value}}, nil

	case KindRange:
		bounds, ok := asObject(value)
		if !ok || !isset(bounds, "min") || !isset(bounds, "max") {
			return nil, validationError(binding.Key, kind, "min and max are required")
		}
		lo, ok := toFloat(bounds["min"])
		if !ok {
			return nil, validationError(binding.Key, kind, "min must be numeric")
		}
		hi, ok := toFloat(bounds["max"])
		if !ok {
			return nil, validationError(binding.Key, kind, "max must be numeric")
		}
		return Clause{"range": map[string]interface{}{
			binding.Path: map[string]interface{}{"gte": lo, "lte": hi},
		}}, nil

	case KindRangeDate:
		bounds, ok := asObject(value)
		if !ok || !isset(bounds, "from") || !isset(bounds, "to") {
			return nil, validationError(binding.Key, kind, "from and to are required")
		}
		return Clause{"range": map[string]interface{}{
			binding.Path: map[string]interface{}{
				"gte":    bounds["from"],
				"lte":    bounds["to"],
				"format": DateFormat,
			},
		}}, nil
	}

	return nil, validationError(binding.Key, kind, "unsupported rule kind")
}

// compileLocation reads the point descriptor and builds the geo filters.
func compileLocation(loc *LocationRule, params Params) ([]Clause, GeoState, error) {
	geo := GeoState{Sort: loc.Sort}

	point, ok := asObject(params[loc.Key])
	if !ok || !isset(point, "lat") || !isset(point, "lon") || !isset(point, "distance") {
		return nil, geo, validationError(loc.Key, GroupLocation, "lat, lon and distance are required")
	}

	lat, ok := toFloat(point["lat"])
	if !ok {
		return nil, geo, validationError(loc.Key, GroupLocation, "lat must be numeric")
	}
	lon, ok := toFloat(point["lon"])
	if !ok {
		return nil, geo, validationError(loc.Key, GroupLocation, "lon must be numeric")
	}
	distance, ok := toFloat(point["distance"])
	if !ok {
		return nil, geo, validationError(loc.Key, GroupLocation, "distance must be numeric")
	}

	geo.Enabled = true
	geo.Lat = lat
	geo.Lon = lon

	clauses := []Clause{{
		"geo_distance": map[string]interface{}{
			"distance": fmt.Sprintf("%d%s", int64(distance), DistanceUnit),
			GeoField: map[string]interface{}{
				"lat": lat,
				"lon": lon,
			},
		},
	}}

	if rect, ok := asObject(point["rectangle"]); ok {
		box, err := boundingBox(loc.Key, rect)
		if err != nil {
			return nil, geo, err
		}
		if box != nil {
			clauses = append(clauses, box)
		}
	}

	geo.Clustering = truthy(point["clustering"])
	if isset(point, "zoom") {
		zoom, ok := toFloat(point["zoom"])
		if !ok {
			return nil, geo, validationError(loc.Key, GroupLocation, "zoom must be numeric")
		}
		geo.Zoom = zoom
	}

	return clauses, geo, nil
}

// boundingBox returns nil unless all four corners are truthy, so a corner
// sitting exactly on 0.0 disables the box.
func boundingBox(key string, rect map[string]interface{}) (Clause, error) {
	corners := []string{"topLeftLat", "topLeftLng", "bottomRightLat", "bottomRightLng"}
	values := make(map[string]float64, len(corners))
	for _, corner := range corners {
		if !truthy(rect[corner]) {
			return nil, nil
		}
		v, ok := toFloat(rect[corner])
		if !ok {
			return nil, validationError(key, GroupLocation, corner+" must be numeric")
		}
		values[corner] = v
	}

	return Clause{
		"geo_bounding_box": map[string]interface{}{
			GeoField: map[string]interface{}{
				"top_left": map[string]interface{}{
					"lat": values["topLeftLat"],
					"lon": values["topLeftLng"],
				},
				"bottom_right": map[string]interface{}{
					"lat": values["bottomRightLat"],
					"lon": values["bottomRightLng"],
				},
			},
		},
	}, nil
}

func validationError[T ~string](key string, kind T, details string) error {
	return apperrors.NewValidationError(key, string(kind), details)
}
