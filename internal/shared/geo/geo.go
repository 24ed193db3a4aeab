package geo

import "math"

// EarthRadiusKm is the mean Earth radius used for great-circle distances.
const EarthRadiusKm = 6371.0

// HaversineKm returns the great-circle distance in kilometres between two
// points given in decimal degrees.
func HaversineKm(lat1, lng1, lat2, lng2 float64) float64 {
	dLat := toRad(lat2 - lat1)
	dLng := toRad(lng2 - lng1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return EarthRadiusKm * c
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}

// BoundingBox is a lat/lng rectangle. West > East denotes a box crossing the
// antimeridian.
type BoundingBox struct {
	North float64
	South float64
	East  float64
	West  float64
}

// World covers every valid coordinate.
var World = BoundingBox{North: 90, South: -90, East: 180, West: -180}

func (b BoundingBox) Contains(lat, lng float64) bool {
	if lat < b.South || lat > b.North {
		return false
	}
	if b.West <= b.East {
		return lng >= b.West && lng <= b.East
	}
	return lng >= b.West || lng <= b.East
}

// ValidLat and ValidLng reject out-of-range values, NaN and infinities.
func ValidLat(v float64) bool { return v >= -90 && v <= 90 }

func ValidLng(v float64) bool { return v >= -180 && v <= 180 }

func ValidLatLng(lat, lng float64) bool {
	return ValidLat(lat) && ValidLng(lng)
}

// Sanitize replaces every side that is not a valid coordinate with the
// matching side of fallback.
func (b BoundingBox) Sanitize(fallback BoundingBox) BoundingBox {
	if !ValidLat(b.North) {
		b.North = fallback.North
	}
	if !ValidLat(b.South) {
		b.South = fallback.South
	}
	if !ValidLng(b.East) {
		b.East = fallback.East
	}
	if !ValidLng(b.West) {
		b.West = fallback.West
	}
	return b
}
