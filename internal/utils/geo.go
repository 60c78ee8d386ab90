package utils

import (
	"math"

	"relieflink-backend/internal/models"
)

// CalculateDistance returns the distance between two points in kilometers
// using the Haversine formula.
func CalculateDistance(a, b models.Coordinates) float64 {
	const earthRadiusKm = 6371

	lat1Rad := toRadians(a.Lat)
	lon1Rad := toRadians(a.Lng)
	lat2Rad := toRadians(b.Lat)
	lon2Rad := toRadians(b.Lng)

	deltaLat := lat2Rad - lat1Rad
	deltaLon := lon2Rad - lon1Rad

	h := math.Sin(deltaLat/2)*math.Sin(deltaLat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*
			math.Sin(deltaLon/2)*math.Sin(deltaLon/2)

	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return earthRadiusKm * c
}

func toRadians(degrees float64) float64 {
	return degrees * (math.Pi / 180)
}
