package service

import (
	"context"
	"fmt"

	"market-delivery/internal/domain"
	"market-delivery/internal/geo"
	"market-delivery/internal/pricing"
	"market-delivery/internal/tariff"
)

type DeliveryQuote struct {
	DistanceKm float64
	Fee        float64
	FeeCents   int64
	ETAMinutes int
	InCoverage bool
	Tariff     domain.Tariff
}

// QuoteDelivery prices delivery from a business to a delivery address.
func (s *Service) QuoteDelivery(ctx context.Context, business, delivery domain.Location) (*DeliveryQuote, error) {
	if err := domain.ValidateLocation(business); err != nil {
		return nil, fmt.Errorf("business %v: %w", err, domain.ErrInvalid)
	}
	if err := domain.ValidateLocation(delivery); err != nil {
		return nil, fmt.Errorf("delivery %v: %w", err, domain.ErrInvalid)
	}
	t := s.tariffs.Current(ctx)
	km := geo.Distance(business, delivery)
	fee := tariff.Fee(t, km)
	return &DeliveryQuote{
		DistanceKm: km,
		Fee:        fee,
		FeeCents:   tariff.ToCents(fee),
		ETAMinutes: geo.EstimateDeliveryTime(km, s.prepTimeMin),
		InCoverage: s.coverage.Contains(delivery.Lat, delivery.Lng),
		Tariff:     t,
	}, nil
}

// EstimateDeliveryTime uses the configured preparation time unless prepTimeMin is set.
func (s *Service) EstimateDeliveryTime(distanceKm float64, prepTimeMin *float64) (int, error) {
	if err := domain.ValidateDistance(distanceKm); err != nil {
		return 0, fmt.Errorf("%v: %w", err, domain.ErrInvalid)
	}
	prep := s.prepTimeMin
	if prepTimeMin != nil {
		if err := domain.ValidateDistance(*prepTimeMin); err != nil {
			return 0, fmt.Errorf("prep time: %w", domain.ErrInvalid)
		}
		prep = *prepTimeMin
	}
	return geo.EstimateDeliveryTime(distanceKm, prep), nil
}

func (s *Service) CheckCoverage(loc domain.Location) (bool, error) {
	if err := domain.ValidateLocation(loc); err != nil {
		return false, fmt.Errorf("%v: %w", err, domain.ErrInvalid)
	}
	return s.coverage.Contains(loc.Lat, loc.Lng), nil
}

// PriceCart applies commission, delivery fee and the minimum-order gate.
// Missing coordinates are allowed and price delivery at the fallback fee.
func (s *Service) PriceCart(ctx context.Context, items []pricing.Item, req pricing.Request) (pricing.Quote, error) {
	for _, loc := range []*domain.Location{req.Business, req.Delivery} {
		if loc == nil {
			continue
		}
		if err := domain.ValidateLocation(*loc); err != nil {
			return pricing.Quote{}, fmt.Errorf("%v: %w", err, domain.ErrInvalid)
		}
	}
	for _, it := range items {
		if it.UnitPrice.IsNegative() || it.Quantity.IsNegative() {
			return pricing.Quote{}, fmt.Errorf("item %q: %w", it.Name, domain.ErrInvalid)
		}
	}
	if len(items) > 0 {
		req.Subtotal = pricing.Subtotal(items)
	}
	return s.cart.Price(ctx, req)
}
