package domain

import (
	"fmt"
	"math"
)

func ValidateLocation(loc Location) error {
	if math.IsNaN(loc.Lat) || math.IsInf(loc.Lat, 0) || loc.Lat < -90 || loc.Lat > 90 {
		return fmt.Errorf("lat out of range")
	}
	if math.IsNaN(loc.Lng) || math.IsInf(loc.Lng, 0) || loc.Lng < -180 || loc.Lng > 180 {
		return fmt.Errorf("lng out of range")
	}
	return nil
}

// ValidateDistance rejects distances that would produce a meaningless fee or ETA.
func ValidateDistance(km float64) error {
	if math.IsNaN(km) || math.IsInf(km, 0) || km < 0 {
		return fmt.Errorf("distance must be a finite non-negative number")
	}
	return nil
}

func ValidateTariff(t Tariff) error {
	for _, v := range []float64{t.BaseFee, t.PerKm, t.MinFee, t.MaxFee} {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return fmt.Errorf("tariff values must be finite and non-negative")
		}
	}
	if t.MinFee > t.MaxFee {
		return fmt.Errorf("min fee exceeds max fee")
	}
	return nil
}

func ValidateRole(role string) bool {
	switch role {
	case RoleAdmin, RoleCustomer, RoleBusiness:
		return true
	default:
		return false
	}
}
