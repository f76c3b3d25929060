package domain

import "math"

// Immutable geographic coordinates (latitude, longitude) in decimal degrees.
type Coordinates struct {
	Lat float64
	Lon float64
}

// Return coordinates as [lon, lat] for external API compatibility.
func (c Coordinates) LonLat() []float64 { return []float64{c.Lon, c.Lat} }

// Return coordinates as [lat, lon] for map/polyline payloads.
func (c Coordinates) LatLon() []float64 { return []float64{c.Lat, c.Lon} }

const earthRadiusKm = 6371.0

// DistanceKm returns the great-circle (haversine) distance to other in
// kilometers. Pure and symmetric; callers must pass finite values.
func (c Coordinates) DistanceKm(other Coordinates) float64 {
	phi1 := radians(c.Lat)
	phi2 := radians(other.Lat)
	dPhi := radians(other.Lat - c.Lat)
	dLambda := radians(other.Lon - c.Lon)

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	arc := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusKm * arc
}

// DistanceMeters returns the great-circle distance to other in meters.
func (c Coordinates) DistanceMeters(other Coordinates) float64 {
	return c.DistanceKm(other) * 1000
}

// Valid reports whether both components are finite and within range.
func (c Coordinates) Valid() bool {
	if math.IsNaN(c.Lat) || math.IsInf(c.Lat, 0) || math.IsNaN(c.Lon) || math.IsInf(c.Lon, 0) {
		return false
	}
	return c.Lat >= -90 && c.Lat <= 90 && c.Lon >= -180 && c.Lon <= 180
}

func radians(deg float64) float64 { return deg * math.Pi / 180 }
