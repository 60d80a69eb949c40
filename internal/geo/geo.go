// Package geo provides the geographic variant of the substrate: lat/lon
// positions, bounding boxes and grid overlays pinned to a region of the globe.
// Projection and tile addressing belong to whoever renders the map.
package geo

import (
	"fmt"
	"math"
)

// EarthRadiusKm is the mean Earth radius used for great-circle distances.
const EarthRadiusKm = 6371.0

// LatLon is a geographic position in decimal degrees.
type LatLon struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// String formats the position with five decimals.
func (p LatLon) String() string {
	return fmt.Sprintf("(%.5f, %.5f)", p.Lat, p.Lon)
}

// DegreeDistance returns the planar distance between a and b in degrees.
// Movement speeds are expressed in degrees per step, so this is the metric
// waypoint followers use.
func DegreeDistance(a, b LatLon) float64 {
	return math.Hypot(b.Lat-a.Lat, b.Lon-a.Lon)
}

// StepToward moves from toward to by at most step degrees. It reports whether
// to was reached (within step), in which case the returned position is to.
func StepToward(from, to LatLon, step float64) (LatLon, bool) {
	d := DegreeDistance(from, to)
	if d <= step || d == 0 {
		return to, true
	}
	f := step / d
	return LatLon{
		Lat: from.Lat + (to.Lat-from.Lat)*f,
		Lon: from.Lon + (to.Lon-from.Lon)*f,
	}, false
}

// DistanceKm returns the great-circle distance between a and b (haversine).
func DistanceKm(a, b LatLon) float64 {
	lat1, lat2 := radians(a.Lat), radians(b.Lat)
	dLat := lat2 - lat1
	dLon := radians(b.Lon - a.Lon)
	h := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * EarthRadiusKm * math.Asin(math.Min(1, math.Sqrt(h)))
}

// Bearing returns the initial compass bearing from a to b in degrees [0, 360).
func Bearing(a, b LatLon) float64 {
	lat1, lat2 := radians(a.Lat), radians(b.Lat)
	dLon := radians(b.Lon - a.Lon)
	y := math.Sin(dLon) * math.Cos(lat2)
	x := math.Cos(lat1)*math.Sin(lat2) - math.Sin(lat1)*math.Cos(lat2)*math.Cos(dLon)
	deg := math.Atan2(y, x) * 180 / math.Pi
	return math.Mod(deg+360, 360)
}

func radians(deg float64) float64 { return deg * math.Pi / 180 }

// BBox is a geographic bounding box. Top > Bottom; Left < Right.
type BBox struct {
	Top    float64 `json:"top"`
	Left   float64 `json:"left"`
	Bottom float64 `json:"bottom"`
	Right  float64 `json:"right"`
}

// Contains reports whether p lies inside the box (edges inclusive).
func (b BBox) Contains(p LatLon) bool {
	return p.Lat <= b.Top && p.Lat >= b.Bottom && p.Lon >= b.Left && p.Lon <= b.Right
}

// Valid reports whether the box has positive extent.
func (b BBox) Valid() bool {
	return b.Top > b.Bottom && b.Right > b.Left
}

// Center returns the midpoint of the box.
func (b BBox) Center() LatLon {
	return LatLon{Lat: (b.Top + b.Bottom) / 2, Lon: (b.Left + b.Right) / 2}
}
