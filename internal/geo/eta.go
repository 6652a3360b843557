package geo

import "math"

const (
	// DefaultPrepTimeMin is the kitchen/market preparation time assumed when none is given.
	DefaultPrepTimeMin = 20.0
	// averageSpeedKmPerMin is 30 km/h of urban driving.
	averageSpeedKmPerMin = 0.5
)

// EstimateDeliveryTime returns minutes until delivery, rounded up.
// Negative distances are not clamped.
func EstimateDeliveryTime(distanceKm, prepTimeMin float64) int {
	travel := distanceKm / averageSpeedKmPerMin
	return int(math.Ceil(prepTimeMin + travel))
}
