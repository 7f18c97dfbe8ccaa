package search

// SortSpec is a single Elasticsearch sort entry.
type SortSpec = map[string]interface{}

// ComposeSort builds the sort list. An enabled geo state always sorts by distance
// first; declared field sorts follow in declaration order; with neither, results
// are ordered by relevance.
func ComposeSort(geo GeoState, declared []SortField) []SortSpec {
	sort := make([]SortSpec, 0, len(declared)+1)

	if geo.Enabled {
		sort = append(sort, SortSpec{
			"_geo_distance": map[string]interface{}{
				GeoField: []float64{geo.Lon, geo.Lat},
				"order":  geo.Sort,
				"unit":   DistanceUnit,
			},
		})
	}

	for _, field := range declared {
		sort = append(sort, SortSpec{field.Path: field.Order})
	}

	if len(sort) == 0 {
		sort = append(sort, SortSpec{"_score": SortDesc})
	}

	return sort
}
