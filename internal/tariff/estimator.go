package tariff

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"market-delivery/internal/domain"
	"market-delivery/internal/geo"
	"market-delivery/internal/logger"
)

// Source fetches the authoritative tariff (upstream API or database).
type Source interface {
	FetchTariff(ctx context.Context) (domain.Tariff, error)
}

// Estimator serves fees from the cached tariff. Concurrent cache misses
// share a single fetch; a failed fetch falls back to domain.DefaultTariff
// without caching it. A source with no tariff yields the cached default.
type Estimator struct {
	source    Source
	cache     Cache
	log       *logger.Logger
	group     singleflight.Group
	fallbacks atomic.Int64
}

func NewEstimator(source Source, cache Cache, log *logger.Logger) *Estimator {
	if cache == nil {
		cache = NewMemoryCache(DefaultTTL, nil)
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Estimator{source: source, cache: cache, log: log}
}

// Current returns the tariff in force. It never fails.
func (e *Estimator) Current(ctx context.Context) domain.Tariff {
	t, ok, err := e.cache.Get(ctx)
	if err != nil {
		e.log.Warn("tariff cache read failed: %v", err)
	}
	if ok {
		return t
	}

	v, err, _ := e.group.Do("tariff", func() (any, error) {
		return e.fetch(ctx)
	})
	if err != nil {
		e.fallbacks.Add(1)
		e.log.Warn("tariff fetch failed, using default tariff: %v", err)
		return domain.DefaultTariff
	}
	return v.(domain.Tariff)
}

// CalculateDeliveryFee prices a distance in currency units.
func (e *Estimator) CalculateDeliveryFee(ctx context.Context, distanceKm float64) float64 {
	return Fee(e.Current(ctx), distanceKm)
}

// QuoteDeliveryFee prices the straight-line distance between two points.
// It lets the estimator stand in for the upstream calculate-delivery call.
func (e *Estimator) QuoteDeliveryFee(ctx context.Context, business, delivery domain.Location) (float64, error) {
	if err := domain.ValidateLocation(business); err != nil {
		return 0, fmt.Errorf("business %v: %w", err, domain.ErrInvalid)
	}
	if err := domain.ValidateLocation(delivery); err != nil {
		return 0, fmt.Errorf("delivery %v: %w", err, domain.ErrInvalid)
	}
	return e.CalculateDeliveryFee(ctx, geo.Distance(business, delivery)), nil
}

// Fallbacks reports how many lookups had to use the default tariff.
func (e *Estimator) Fallbacks() int64 {
	return e.fallbacks.Load()
}

func (e *Estimator) Invalidate(ctx context.Context) error {
	return e.cache.Invalidate(ctx)
}

func (e *Estimator) fetch(ctx context.Context) (domain.Tariff, error) {
	if e.source == nil {
		return domain.Tariff{}, fmt.Errorf("no tariff source configured")
	}
	t, err := e.source.FetchTariff(ctx)
	if errors.Is(err, domain.ErrNotFound) {
		// no tariff stored yet: the default is in force, not a fallback
		t, err = domain.DefaultTariff, nil
	}
	if err != nil {
		return domain.Tariff{}, err
	}
	if err := domain.ValidateTariff(t); err != nil {
		return domain.Tariff{}, fmt.Errorf("fetched tariff rejected: %w", err)
	}
	if err := e.cache.Set(ctx, t); err != nil {
		e.log.Warn("tariff cache write failed: %v", err)
	}
	e.log.Debug("tariff refreshed base=%.2f per_km=%.2f min=%.2f max=%.2f", t.BaseFee, t.PerKm, t.MinFee, t.MaxFee)
	return t, nil
}
