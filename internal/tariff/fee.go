// Package tariff turns distances into delivery fees using a cached,
// remotely configured linear tariff.
package tariff

import (
	"math"

	"market-delivery/internal/domain"
)

// Fee applies the linear tariff and clamps the result to [MinFee, MaxFee].
// Distance sign is not checked; the clamp keeps the result in range.
func Fee(t domain.Tariff, distanceKm float64) float64 {
	fee := t.BaseFee + distanceKm*t.PerKm
	return math.Max(t.MinFee, math.Min(fee, t.MaxFee))
}

// ToCents converts a fee in currency units to whole cents.
func ToCents(fee float64) int64 {
	return int64(math.Round(fee * 100))
}
