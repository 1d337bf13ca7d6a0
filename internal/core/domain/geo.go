package domain

import "math"

// GeoPoint represents a geographic coordinate (WGS 84).
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

// Center returns the midpoint of the box.
func (b Bounds) Center() GeoPoint {
	return GeoPoint{Lat: (b.MinLat + b.MaxLat) / 2, Lon: (b.MinLon + b.MaxLon) / 2}
}

// LonScale returns cos² of the centre latitude, used to weight squared
// longitude deltas.
func (b Bounds) LonScale() float64 {
	k := math.Cos(b.Center().Lat * math.Pi / 180)
	return k * k
}
