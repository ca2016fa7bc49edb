package domain

import "github.com/samirrijal/geowire/internal/pkg/geom"

// GeoPoint represents a geographic coordinate.
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Bounds represents a geographic bounding box.
type Bounds struct {
	MinLat float64 `json:"min_lat"`
	MinLon float64 `json:"min_lon"`
	MaxLat float64 `json:"max_lat"`
	MaxLon float64 `json:"max_lon"`
}

// BoundsOf returns the lon/lat extent of g, or nil when g is empty.
func BoundsOf(g geom.Geometry) *Bounds {
	b := geom.ComputeBounds(g)
	if b.IsEmpty() {
		return nil
	}
	return &Bounds{
		MinLat: b.Min.Y(),
		MinLon: b.Min.X(),
		MaxLat: b.Max.Y(),
		MaxLon: b.Max.X(),
	}
}
