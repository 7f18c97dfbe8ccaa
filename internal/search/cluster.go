package search

import (
	"github.com/mitchellh/mapstructure"
	"github.com/mmcloughlin/geohash"
)

// GeohashPrecision is the geohash length documents are bucketed by.
const GeohashPrecision = 6

type geoPoint struct {
	Lat *float64 `mapstructure:"lat"`
	Lon *float64 `mapstructure:"lon"`
}

// Cluster groups documents sharing a geohash cell. Buckets keep the order in
// which their first document was seen and documents keep their relative order
// inside a bucket. Documents without a readable location share one bucket.
func Cluster(docs []Document) [][]Document {
	index := make(map[string]int)
	var buckets [][]Document

	for _, doc := range docs {
		key := cellOf(doc)
		pos, ok := index[key]
		if !ok {
			pos = len(buckets)
			index[key] = pos
			buckets = append(buckets, nil)
		}
		buckets[pos] = append(buckets[pos], doc)
	}

	return buckets
}

// cellOf returns the geohash of the document location, or "" when it has none.
func cellOf(doc Document) string {
	raw, ok := doc[GeoField]
	if !ok || raw == nil {
		return ""
	}

	var p geoPoint
	if err := mapstructure.WeakDecode(raw, &p); err != nil || p.Lat == nil || p.Lon == nil {
		return ""
	}

	return geohash.EncodeWithPrecision(*p.Lat, *p.Lon, GeohashPrecision)
}
