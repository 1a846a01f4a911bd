// Package geofence is the campus predicate consulted before student
// check-ins. The reference point and radius are configuration; the core only
// asks "is this coordinate on campus".
package geofence

import (
	"math"

	"presente/internal/platform/config"
)

const earthRadiusMeters = 6371000

// Validator answers IsWithinCampus for a fixed reference point and radius.
type Validator struct {
	lat, lon float64
	radiusM  float64
}

func New(cfg config.GeofenceConfig) *Validator {
	return &Validator{lat: cfg.Latitude, lon: cfg.Longitude, radiusM: cfg.RadiusMeters}
}

// IsWithinCampus reports whether the coordinate falls inside the configured
// radius of the campus reference point (haversine distance).
func (v *Validator) IsWithinCampus(lat, lon float64) bool {
	return haversineMeters(v.lat, v.lon, lat, lon) <= v.radiusM
}

func haversineMeters(lat1, lon1, lat2, lon2 float64) float64 {
	toRad := func(deg float64) float64 { return deg * math.Pi / 180 }
	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusMeters * math.Asin(math.Sqrt(a))
}
