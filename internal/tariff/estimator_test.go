package tariff

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"market-delivery/internal/domain"
)

type fakeSource struct {
	calls   atomic.Int32
	tariff  domain.Tariff
	err     error
	release chan struct{}
}

func (f *fakeSource) FetchTariff(ctx context.Context) (domain.Tariff, error) {
	f.calls.Add(1)
	if f.release != nil {
		<-f.release
	}
	return f.tariff, f.err
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

var remoteTariff = domain.Tariff{BaseFee: 10, PerKm: 5, MinFee: 12, MaxFee: 60}

func TestEstimator_CachesWithinTTL(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	src := &fakeSource{tariff: remoteTariff}
	est := NewEstimator(src, NewMemoryCache(60*time.Second, clock.Now), nil)
	ctx := context.Background()

	if got := est.CalculateDeliveryFee(ctx, 2); got != 20 {
		t.Fatalf("fee = %v, want 20", got)
	}
	clock.Advance(59 * time.Second)
	if got := est.CalculateDeliveryFee(ctx, 4); got != 30 {
		t.Fatalf("fee = %v, want 30", got)
	}
	if n := src.calls.Load(); n != 1 {
		t.Fatalf("expected 1 fetch within TTL, got %d", n)
	}

	clock.Advance(time.Second)
	est.CalculateDeliveryFee(ctx, 1)
	if n := src.calls.Load(); n != 2 {
		t.Fatalf("expected refetch after TTL, got %d fetches", n)
	}
}

func TestEstimator_FallbackOnError(t *testing.T) {
	src := &fakeSource{err: errors.New("connection refused")}
	est := NewEstimator(src, NewMemoryCache(time.Minute, nil), nil)
	ctx := context.Background()

	if got := est.CalculateDeliveryFee(ctx, 1); got != 23 {
		t.Fatalf("fee = %v, want default-tariff 23", got)
	}
	if got := est.CalculateDeliveryFee(ctx, 10); got != 40 {
		t.Fatalf("fee = %v, want default-tariff 40", got)
	}
	if n := src.calls.Load(); n != 2 {
		t.Fatalf("fallback must not be cached, got %d fetches", n)
	}
	if est.Fallbacks() != 2 {
		t.Fatalf("expected 2 fallbacks, got %d", est.Fallbacks())
	}

	src.err = nil
	src.tariff = remoteTariff
	if got := est.Current(ctx); got != remoteTariff {
		t.Fatalf("expected recovery to remote tariff, got %+v", got)
	}
}

func TestEstimator_RejectsInvalidTariff(t *testing.T) {
	src := &fakeSource{tariff: domain.Tariff{BaseFee: 1, PerKm: 1, MinFee: 50, MaxFee: 5}}
	est := NewEstimator(src, nil, nil)
	if got := est.Current(context.Background()); got != domain.DefaultTariff {
		t.Fatalf("expected default tariff, got %+v", got)
	}
}

func TestEstimator_NoSource(t *testing.T) {
	est := NewEstimator(nil, nil, nil)
	if got := est.CalculateDeliveryFee(context.Background(), 0); got != 15 {
		t.Fatalf("fee = %v, want 15", got)
	}
}

type countingCache struct {
	*MemoryCache
	gets atomic.Int32
}

func (c *countingCache) Get(ctx context.Context) (domain.Tariff, bool, error) {
	c.gets.Add(1)
	return c.MemoryCache.Get(ctx)
}

func TestEstimator_ConcurrentMissesShareOneFetch(t *testing.T) {
	const callers = 8
	src := &fakeSource{tariff: remoteTariff, release: make(chan struct{})}
	cache := &countingCache{MemoryCache: NewMemoryCache(time.Minute, nil)}
	est := NewEstimator(src, cache, nil)

	var wg sync.WaitGroup
	fees := make(chan float64, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fees <- est.CalculateDeliveryFee(context.Background(), 2)
		}()
	}

	deadline := time.Now().Add(2 * time.Second)
	for cache.gets.Load() < callers && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	time.Sleep(50 * time.Millisecond)
	close(src.release)
	wg.Wait()
	close(fees)

	for fee := range fees {
		if fee != 20 {
			t.Fatalf("fee = %v, want 20", fee)
		}
	}
	if n := src.calls.Load(); n != 1 {
		t.Fatalf("expected a single upstream fetch, got %d", n)
	}
}

func TestEstimator_Invalidate(t *testing.T) {
	src := &fakeSource{tariff: remoteTariff}
	est := NewEstimator(src, NewMemoryCache(time.Hour, nil), nil)
	ctx := context.Background()

	est.Current(ctx)
	if err := est.Invalidate(ctx); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	est.Current(ctx)
	if n := src.calls.Load(); n != 2 {
		t.Fatalf("expected refetch after invalidate, got %d", n)
	}
}

func TestEstimator_QuoteDeliveryFee(t *testing.T) {
	est := NewEstimator(&fakeSource{tariff: remoteTariff}, nil, nil)
	ctx := context.Background()
	shop := domain.Location{Lat: 32.7, Lng: 35.3}

	fee, err := est.QuoteDeliveryFee(ctx, shop, shop)
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	if fee != remoteTariff.MinFee {
		t.Fatalf("fee = %v, want min fee %v", fee, remoteTariff.MinFee)
	}

	if _, err := est.QuoteDeliveryFee(ctx, shop, domain.Location{Lat: 91, Lng: 0}); !errors.Is(err, domain.ErrInvalid) {
		t.Fatalf("expected invalid, got %v", err)
	}
}

func TestEstimator_MissingTariffIsDefaultNotFallback(t *testing.T) {
	src := &fakeSource{err: domain.ErrNotFound}
	est := NewEstimator(src, nil, nil)
	ctx := context.Background()

	if got := est.Current(ctx); got != domain.DefaultTariff {
		t.Fatalf("tariff = %+v, want default", got)
	}
	est.Current(ctx)
	if n := src.calls.Load(); n != 1 {
		t.Fatalf("expected the default to be cached, got %d fetches", n)
	}
	if n := est.Fallbacks(); n != 0 {
		t.Fatalf("fallbacks = %d, want 0", n)
	}
}
