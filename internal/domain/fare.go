package domain

import "math"

const (
	baseFare  = 40.0
	perKmRate = 15.0
)

// EstimateFare computes the flag-down fare plus the per-kilometer rate,
// rounded to centavos.
func EstimateFare(distanceKm float64) float64 {
	return math.Round((baseFare+perKmRate*distanceKm)*100) / 100
}
