package grpcapi

import "market-delivery/internal/transport"

type Empty struct{}

type TokenRequest struct {
	Name string `json:"name"`
	Role string `json:"role"`
}

type TokenResponse struct {
	Token     string `json:"token"`
	ExpiresAt string `json:"expires_at"`
}

type TariffReply struct {
	Success bool                     `json:"success"`
	Config  transport.TariffResponse `json:"config"`
}

type CoverageRequest struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type CoverageReply struct {
	InCoverage bool `json:"inCoverage"`
}

type EstimateTimeRequest struct {
	DistanceKm float64  `json:"distanceKm"`
	PrepTime   *float64 `json:"prepTime,omitempty"`
}

type EstimateTimeReply struct {
	ETAMinutes int `json:"etaMinutes"`
}

type OrderIDRequest struct {
	OrderID string `json:"order_id"`
}
