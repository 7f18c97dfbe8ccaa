package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComposeSort_FallsBackToScore(t *testing.T) {
	sort := ComposeSort(GeoState{}, nil)

	assert.Equal(t, []SortSpec{{"_score": SortDesc}}, sort)
}

func TestComposeSort_DeclaredFieldsInOrder(t *testing.T) {
	sort := ComposeSort(GeoState{}, []SortField{
		{Path: "rating", Order: SortDesc},
		{Path: "name.keyword", Order: SortAsc},
	})

	assert.Equal(t, []SortSpec{
		{"rating": SortDesc},
		{"name.keyword": SortAsc},
	}, sort)
}

func TestComposeSort_GeoDistanceFirst(t *testing.T) {
	geo := GeoState{Enabled: true, Lat: 50.45, Lon: 30.52, Sort: SortAsc}

	sort := ComposeSort(geo, []SortField{{Path: "rating", Order: SortDesc}})

	assert.Equal(t, []SortSpec{
		{"_geo_distance": map[string]interface{}{
			"location": []float64{30.52, 50.45},
			"order":    SortAsc,
			"unit":     "km",
		}},
		{"rating": SortDesc},
	}, sort)
}

func TestComposeSort_GeoOnlyHasNoScore(t *testing.T) {
	sort := ComposeSort(GeoState{Enabled: true, Sort: SortDesc}, nil)

	assert.Len(t, sort, 1)
	assert.Contains(t, sort[0], "_geo_distance")
}
