package search

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "searchmodel/internal/common/errors"
)

func franchiseSchema(t *testing.T) *Schema {
	schema, err := NewSchema().
		Rule(GroupMust, KindEqual, Binding{Key: "categoryId", Path: "category_id"}).
		Rule(GroupMust, KindLike, Binding{Key: "name", Path: "name"}).
		Rule(GroupShould, KindIn, Binding{Key: "tags", Path: "tags"}).
		Rule(GroupFilter, KindRange, Binding{Key: "investment", Path: "investment_min"}).
		Rule(GroupFilter, KindRangeDate, Binding{Key: "created", Path: "created_at"}).
		Build()
	require.NoError(t, err)
	return schema
}

func geoSchema(t *testing.T) *Schema {
	schema, err := NewSchema().
		Rule(GroupFilter, KindEqual, Binding{Key: "type", Path: "type"}).
		Location("point", SortAsc).
		Build()
	require.NoError(t, err)
	return schema
}

func assertValidationFailed(t *testing.T, err error, key string) {
	t.Helper()
	require.Error(t, err)
	stdErr, ok := apperrors.AsStandardError(err)
	require.True(t, ok, "expected StandardError, got %T", err)
	assert.Equal(t, apperrors.ErrCodeValidationFailed, stdErr.Code)
	assert.Equal(t, key, stdErr.Metadata["key"])
}

func TestCompile_NoParams(t *testing.T) {
	compiled, err := Compile(franchiseSchema(t), Params{})

	require.NoError(t, err)
	assert.False(t, compiled.IsChanged)
	assert.Empty(t, compiled.Query)
	assert.Nil(t, compiled.BoolQuery())
}

func TestCompile_UnknownAndNilKeysIgnored(t *testing.T) {
	compiled, err := Compile(franchiseSchema(t), Params{
		"unknown":    "x",
		"categoryId": nil,
	})

	require.NoError(t, err)
	assert.False(t, compiled.IsChanged)
}

func TestCompile_Equal(t *testing.T) {
	tests := []struct {
		name  string
		value interface{}
	}{
		{"int", 5},
		{"float", 5.5},
		{"numeric string", "5"},
		{"json number", json.Number("12")},
		{"exponent string", "1e3"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			compiled, err := Compile(franchiseSchema(t), Params{"categoryId": tt.value})

			require.NoError(t, err)
			assert.True(t, compiled.IsChanged)
			require.Len(t, compiled.Query[GroupMust], 1)
			assert.Equal(t, Clause{"term": map[string]interface{}{"category_id": tt.value}}, compiled.Query[GroupMust][0])
		})
	}
}

func TestCompile_EqualRejectsNonNumeric(t *testing.T) {
	for _, value := range []interface{}{"abc", "0x1A", true, []int{1}, "", "NaN"} {
		_, err := Compile(franchiseSchema(t), Params{"categoryId": value})
		assertValidationFailed(t, err, "categoryId")
	}
}

func TestCompile_Like(t *testing.T) {
	compiled, err := Compile(franchiseSchema(t), Params{"name": "Pizza"})

	require.NoError(t, err)
	assert.Equal(t, []Clause{{"term": map[string]interface{}{"name.keyword": "Pizza"}}}, compiled.Query[GroupMust])

	_, err = Compile(franchiseSchema(t), Params{"name": 42})
	assertValidationFailed(t, err, "name")
}

func TestCompile_In(t *testing.T) {
	tags := []interface{}{"food", "retail"}
	compiled, err := Compile(franchiseSchema(t), Params{"tags": tags})

	require.NoError(t, err)
	assert.Equal(t, []Clause{{"terms": map[string]interface{}{"tags": tags}}}, compiled.Query[GroupShould])

	_, err = Compile(franchiseSchema(t), Params{"tags": "food"})
	assertValidationFailed(t, err, "tags")
}

func TestCompile_Range(t *testing.T) {
	compiled, err := Compile(franchiseSchema(t), Params{
		"investment": map[string]interface{}{"min": "10", "max": 20},
	})

	require.NoError(t, err)
	assert.Equal(t, []Clause{{
		"range": map[string]interface{}{
			"investment_min": map[string]interface{}{"gte": 10.0, "lte": 20.0},
		},
	}}, compiled.Query[GroupFilter])
}

func TestCompile_RangeRequiresBothBounds(t *testing.T) {
	tests := []struct {
		name  string
		value interface{}
	}{
		{"missing min", map[string]interface{}{"max": 20}},
		{"missing max", map[string]interface{}{"min": 10}},
		{"nil max", map[string]interface{}{"min": 10, "max": nil}},
		{"not an object", 10},
		{"non numeric min", map[string]interface{}{"min": "low", "max": 20}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Compile(franchiseSchema(t), Params{"investment": tt.value})
			assertValidationFailed(t, err, "investment")
		})
	}
}

func TestCompile_RangeDate(t *testing.T) {
	compiled, err := Compile(franchiseSchema(t), Params{
		"created": map[string]string{"from": "2024-01-01", "to": "2024-12-31"},
	})

	require.NoError(t, err)
	assert.Equal(t, []Clause{{
		"range": map[string]interface{}{
			"created_at": map[string]interface{}{
				"gte":    "2024-01-01",
				"lte":    "2024-12-31",
				"format": DateFormat,
			},
		},
	}}, compiled.Query[GroupFilter])

	_, err = Compile(franchiseSchema(t), Params{"created": map[string]interface{}{"from": "2024-01-01"}})
	assertValidationFailed(t, err, "created")
}

func TestCompile_FirstErrorAborts(t *testing.T) {
	compiled, err := Compile(franchiseSchema(t), Params{
		"categoryId": "abc",
		"name":       "Pizza",
		"investment": map[string]interface{}{"min": 1, "max": 2},
	})

	assertValidationFailed(t, err, "categoryId")
	assert.Nil(t, compiled)
}

func TestCompile_DeclarationOrderWithinGroup(t *testing.T) {
	schema := NewSchema().
		Rule(GroupMust, KindEqual, Binding{Key: "b", Path: "fb"}, Binding{Key: "a", Path: "fa"}).
		Rule(GroupMust, KindLike, Binding{Key: "c", Path: "fc"}).
		MustBuild()

	compiled, err := Compile(schema, Params{"a": 1, "b": 2, "c": "x"})

	require.NoError(t, err)
	assert.Equal(t, []Clause{
		{"term": map[string]interface{}{"fb": 2}},
		{"term": map[string]interface{}{"fa": 1}},
		{"term": map[string]interface{}{"fc.keyword": "x"}},
	}, compiled.Query[GroupMust])
}

func TestCompile_BoolQueryOmitsEmptyGroups(t *testing.T) {
	compiled, err := Compile(franchiseSchema(t), Params{"name": "Pizza"})
	require.NoError(t, err)

	query := compiled.BoolQuery()
	require.NotNil(t, query)
	body := query["bool"].(map[string]interface{})
	assert.Contains(t, body, "must")
	assert.NotContains(t, body, "should")
	assert.NotContains(t, body, "filter")
}

func TestCompile_OverridesPrepended(t *testing.T) {
	override := Clause{"term": map[string]interface{}{"status": "active"}}
	schema := NewSchema().
		Rule(GroupFilter, KindEqual, Binding{Key: "type", Path: "type"}).
		Rule(GroupMust, KindLike, Binding{Key: "name", Path: "name"}).
		Override(GroupFilter, override).
		MustBuild()

	t.Run("merged ahead of compiled clauses", func(t *testing.T) {
		compiled, err := Compile(schema, Params{"type": 3})
		require.NoError(t, err)
		assert.Equal(t, []Clause{
			override,
			{"term": map[string]interface{}{"type": 3}},
		}, compiled.Query[GroupFilter])
	})

	t.Run("applied to a group without compiled clauses", func(t *testing.T) {
		compiled, err := Compile(schema, Params{"name": "Pizza"})
		require.NoError(t, err)
		assert.Equal(t, []Clause{override}, compiled.Query[GroupFilter])
	})

	t.Run("ignored when nothing compiled", func(t *testing.T) {
		compiled, err := Compile(schema, Params{})
		require.NoError(t, err)
		assert.False(t, compiled.IsChanged)
		assert.Empty(t, compiled.Query[GroupFilter])
		assert.Nil(t, compiled.BoolQuery())
	})
}

func TestCompile_Location(t *testing.T) {
	compiled, err := Compile(geoSchema(t), Params{
		"point": map[string]interface{}{"lat": 50.45, "lon": "30.52", "distance": 10.7},
	})

	require.NoError(t, err)
	assert.True(t, compiled.IsChanged)
	assert.Equal(t, []Clause{{
		"geo_distance": map[string]interface{}{
			"distance": "10km",
			"location": map[string]interface{}{"lat": 50.45, "lon": 30.52},
		},
	}}, compiled.Query[GroupFilter])

	assert.True(t, compiled.Geo.Enabled)
	assert.Equal(t, 50.45, compiled.Geo.Lat)
	assert.Equal(t, 30.52, compiled.Geo.Lon)
	assert.Equal(t, SortAsc, compiled.Geo.Sort)
	assert.False(t, compiled.Geo.ShouldCluster())
}

func TestCompile_LocationAppendedAfterFilterRules(t *testing.T) {
	compiled, err := Compile(geoSchema(t), Params{
		"type":  1,
		"point": map[string]interface{}{"lat": 1, "lon": 2, "distance": 3},
	})

	require.NoError(t, err)
	require.Len(t, compiled.Query[GroupFilter], 2)
	assert.Contains(t, compiled.Query[GroupFilter][0], "term")
	assert.Contains(t, compiled.Query[GroupFilter][1], "geo_distance")
}

func TestCompile_LocationRequired(t *testing.T) {
	tests := []struct {
		name   string
		params Params
	}{
		{"absent", Params{}},
		{"missing distance", Params{"point": map[string]interface{}{"lat": 1, "lon": 2}}},
		{"missing lat", Params{"point": map[string]interface{}{"lon": 2, "distance": 5}}},
		{"non numeric lon", Params{"point": map[string]interface{}{"lat": 1, "lon": "east", "distance": 5}}},
		{"non numeric zoom", Params{"point": map[string]interface{}{"lat": 1, "lon": 2, "distance": 5, "zoom": "far"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Compile(geoSchema(t), tt.params)
			assertValidationFailed(t, err, "point")
		})
	}
}

func TestCompile_BoundingBox(t *testing.T) {
	point := map[string]interface{}{
		"lat": 50.0, "lon": 30.0, "distance": 5,
		"rectangle": map[string]interface{}{
			"topLeftLat": 51.0, "topLeftLng": 29.0,
			"bottomRightLat": 49.0, "bottomRightLng": "31",
		},
	}

	compiled, err := Compile(geoSchema(t), Params{"point": point})

	require.NoError(t, err)
	require.Len(t, compiled.Query[GroupFilter], 2)
	assert.Equal(t, Clause{
		"geo_bounding_box": map[string]interface{}{
			"location": map[string]interface{}{
				"top_left":     map[string]interface{}{"lat": 51.0, "lon": 29.0},
				"bottom_right": map[string]interface{}{"lat": 49.0, "lon": 31.0},
			},
		},
	}, compiled.Query[GroupFilter][1])
}

func TestCompile_BoundingBoxSkippedOnZeroCorner(t *testing.T) {
	point := map[string]interface{}{
		"lat": 0.5, "lon": 0.5, "distance": 5,
		"rectangle": map[string]interface{}{
			"topLeftLat": 1.0, "topLeftLng": 0.0,
			"bottomRightLat": -1.0, "bottomRightLng": 1.0,
		},
	}

	compiled, err := Compile(geoSchema(t), Params{"point": point})

	require.NoError(t, err)
	require.Len(t, compiled.Query[GroupFilter], 1)
	assert.Contains(t, compiled.Query[GroupFilter][0], "geo_distance")
}

func TestCompile_Clustering(t *testing.T) {
	tests := []struct {
		name       string
		clustering interface{}
		zoom       interface{}
		want       bool
	}{
		{"at threshold", true, 13, true},
		{"above threshold", "1", "15", true},
		{"below threshold", true, 12, false},
		{"disabled", false, 18, false},
		{"no zoom", true, nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			point := map[string]interface{}{
				"lat": 1, "lon": 2, "distance": 3,
				"clustering": tt.clustering,
			}
			if tt.zoom != nil {
				point["zoom"] = tt.zoom
			}

			compiled, err := Compile(geoSchema(t), Params{"point": point})

			require.NoError(t, err)
			assert.Equal(t, tt.want, compiled.Geo.ShouldCluster())
		})
	}
}
