package service

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"market-delivery/internal/confirm"
	"market-delivery/internal/domain"
	"market-delivery/internal/events"
	"market-delivery/internal/geo"
	"market-delivery/internal/pricing"
)

type memStore struct {
	mu        sync.Mutex
	tariff    *domain.TariffRecord
	decisions []domain.Decision
	outbox    []events.Event
}

type memTx struct {
	store     *memStore
	tariff    *domain.TariffRecord
	decisions []domain.Decision
	outbox    []events.Event
	closed    bool
}

func (m *memStore) BeginTx(ctx context.Context) (Tx, error) {
	m.mu.Lock()
	return &memTx{store: m}, nil
}

func (m *memStore) GetTariff(ctx context.Context) (*domain.TariffRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.tariff == nil {
		return nil, domain.ErrNotFound
	}
	rec := *m.tariff
	return &rec, nil
}

func (m *memStore) LatestDecision(ctx context.Context, orderID string) (*domain.Decision, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.decisions) - 1; i >= 0; i-- {
		if m.decisions[i].OrderID == orderID {
			d := m.decisions[i]
			return &d, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (t *memTx) Commit(ctx context.Context) error {
	if t.closed {
		return nil
	}
	if t.tariff != nil {
		t.store.tariff = t.tariff
	}
	t.store.decisions = append(t.store.decisions, t.decisions...)
	t.store.outbox = append(t.store.outbox, t.outbox...)
	return t.close()
}

func (t *memTx) Rollback(ctx context.Context) error {
	return t.close()
}

func (t *memTx) close() error {
	if t.closed {
		return nil
	}
	t.closed = true
	t.store.mu.Unlock()
	return nil
}

func (t *memTx) SaveTariff(ctx context.Context, rec domain.TariffRecord) error {
	t.tariff = &rec
	return nil
}

func (t *memTx) InsertDecision(ctx context.Context, d domain.Decision) error {
	t.decisions = append(t.decisions, d)
	return nil
}

func (t *memTx) EnqueueEvent(ctx context.Context, event events.Event) error {
	t.outbox = append(t.outbox, event)
	return nil
}

type fakeTariffs struct {
	tariff      domain.Tariff
	invalidated int
}

func (f *fakeTariffs) Current(ctx context.Context) domain.Tariff { return f.tariff }

func (f *fakeTariffs) Invalidate(ctx context.Context) error {
	f.invalidated++
	return nil
}

func newTestService(store *memStore, tariffs *fakeTariffs, opts ...Option) *Service {
	return New(store, tariffs, pricing.NewCalculator(nil, nil), opts...)
}

func TestQuoteDelivery(t *testing.T) {
	svc := newTestService(&memStore{}, &fakeTariffs{tariff: domain.DefaultTariff})
	shop := domain.Location{Lat: 32.70, Lng: 35.30}
	home := domain.Location{Lat: 32.71, Lng: 35.30}

	q, err := svc.QuoteDelivery(context.Background(), shop, home)
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	// one hundredth of a degree of latitude is about 1.112 km
	if math.Abs(q.DistanceKm-1.112) > 0.001 {
		t.Fatalf("distance = %v", q.DistanceKm)
	}
	wantFee := 15 + q.DistanceKm*8
	if math.Abs(q.Fee-wantFee) > 1e-9 {
		t.Fatalf("fee = %v, want %v", q.Fee, wantFee)
	}
	if q.FeeCents != 2390 {
		t.Fatalf("fee cents = %d, want 2390", q.FeeCents)
	}
	if q.ETAMinutes != 23 {
		t.Fatalf("eta = %d, want 23", q.ETAMinutes)
	}
	if !q.InCoverage {
		t.Fatalf("expected delivery point in coverage")
	}
}

func TestQuoteDeliveryRejectsBadCoordinates(t *testing.T) {
	svc := newTestService(&memStore{}, &fakeTariffs{tariff: domain.DefaultTariff})
	ok := domain.Location{Lat: 32.7, Lng: 35.3}
	bad := []domain.Location{
		{Lat: math.NaN(), Lng: 35.3},
		{Lat: 91, Lng: 35.3},
		{Lat: 32.7, Lng: -181},
		{Lat: math.Inf(1), Lng: 0},
	}
	for _, loc := range bad {
		if _, err := svc.QuoteDelivery(context.Background(), ok, loc); !errors.Is(err, domain.ErrInvalid) {
			t.Fatalf("delivery %+v: expected invalid, got %v", loc, err)
		}
		if _, err := svc.QuoteDelivery(context.Background(), loc, ok); !errors.Is(err, domain.ErrInvalid) {
			t.Fatalf("business %+v: expected invalid, got %v", loc, err)
		}
	}
}

func TestEstimateDeliveryTime(t *testing.T) {
	svc := newTestService(&memStore{}, &fakeTariffs{}, WithPrepTime(15))
	got, err := svc.EstimateDeliveryTime(3, nil)
	if err != nil || got != 21 {
		t.Fatalf("eta = %d, %v; want 21", got, err)
	}
	prep := 0.0
	got, err = svc.EstimateDeliveryTime(0.2, &prep)
	if err != nil || got != 1 {
		t.Fatalf("eta = %d, %v; want 1", got, err)
	}
	if _, err := svc.EstimateDeliveryTime(-1, nil); !errors.Is(err, domain.ErrInvalid) {
		t.Fatalf("expected invalid for negative distance, got %v", err)
	}
}

func TestCheckCoverageWithPolygon(t *testing.T) {
	triangle := geo.Polygon{{Lat: 32.68, Lng: 35.27}, {Lat: 32.74, Lng: 35.27}, {Lat: 32.68, Lng: 35.34}}
	svc := newTestService(&memStore{}, &fakeTariffs{}, WithCoverage(geo.NewArea(geo.DefaultBounds, triangle)))

	in, err := svc.CheckCoverage(domain.Location{Lat: 32.69, Lng: 35.28})
	if err != nil || !in {
		t.Fatalf("expected inside, got %v %v", in, err)
	}
	in, err = svc.CheckCoverage(domain.Location{Lat: 32.735, Lng: 35.335})
	if err != nil || in {
		t.Fatalf("corner outside the triangle must be rejected, got %v %v", in, err)
	}
}

func TestPriceCart(t *testing.T) {
	svc := newTestService(&memStore{}, &fakeTariffs{})
	items := []pricing.Item{
		{Name: "hummus", UnitPrice: decimal.NewFromInt(20), Quantity: decimal.NewFromInt(2)},
		{Name: "pita", UnitPrice: decimal.NewFromInt(5), Quantity: decimal.NewFromInt(2)},
	}
	q, err := svc.PriceCart(context.Background(), items, pricing.Request{MinimumOrder: decimal.NewFromInt(60)})
	if err != nil {
		t.Fatalf("price: %v", err)
	}
	if !q.ProductsSubtotal.Equal(decimal.NewFromInt(50)) {
		t.Fatalf("subtotal = %s", q.ProductsSubtotal)
	}
	if !q.Total.Equal(decimal.RequireFromString("82.5")) {
		t.Fatalf("total = %s, want 82.5", q.Total)
	}
	if q.CanCheckout || !q.Shortfall.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("expected gated cart with shortfall 10, got %+v", q)
	}

	bad := []pricing.Item{{Name: "refund", UnitPrice: decimal.NewFromInt(-1), Quantity: decimal.NewFromInt(1)}}
	if _, err := svc.PriceCart(context.Background(), bad, pricing.Request{}); !errors.Is(err, domain.ErrInvalid) {
		t.Fatalf("expected invalid, got %v", err)
	}
}

func TestUpdateTariffWritesOutboxAndInvalidates(t *testing.T) {
	store := &memStore{}
	tariffs := &fakeTariffs{tariff: domain.DefaultTariff}
	svc := newTestService(store, tariffs)

	next := domain.Tariff{BaseFee: 12, PerKm: 6, MinFee: 12, MaxFee: 45}
	rec, err := svc.UpdateTariff(context.Background(), "admin-1", next)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if rec.Tariff != next || rec.UpdatedBy != "admin-1" {
		t.Fatalf("unexpected record %+v", rec)
	}
	if store.tariff == nil || store.tariff.Tariff != next {
		t.Fatalf("tariff not stored")
	}
	if len(store.outbox) != 1 || store.outbox[0].Type != events.EventTariffUpdated {
		t.Fatalf("expected tariff.updated event, got %+v", store.outbox)
	}
	if tariffs.invalidated != 1 {
		t.Fatalf("expected cache invalidation")
	}

	_, err = svc.UpdateTariff(context.Background(), "admin-1", domain.Tariff{BaseFee: 1, PerKm: 1, MinFee: 50, MaxFee: 10})
	if !errors.Is(err, domain.ErrInvalid) {
		t.Fatalf("expected invalid, got %v", err)
	}
	if len(store.outbox) != 1 {
		t.Fatalf("rejected update must not enqueue events")
	}
}

type stubTimer struct{}

func (stubTimer) Stop() bool { return true }

type okConfirmer struct{}

func (okConfirmer) ConfirmOrder(ctx context.Context, id string) error { return nil }
func (okConfirmer) CancelOrder(ctx context.Context, id string) error  { return nil }

func TestRegretFlowRecordsDecision(t *testing.T) {
	store := &memStore{}
	mgr := confirm.NewManager(okConfirmer{}, NewDecisionRecorder(store), nil,
		confirm.WithAfterFunc(func(d time.Duration, f func()) confirm.Timer { return stubTimer{} }),
	)
	svc := newTestService(store, &fakeTariffs{}, WithRegretWindow(mgr))
	ctx := context.Background()

	st, err := svc.StartRegretWindow(ctx, "o-1")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if !st.Pending || st.Remaining <= 0 {
		t.Fatalf("expected pending window, got %+v", st)
	}
	st, err = svc.GetRegretStatus(ctx, "o-1")
	if err != nil || !st.Pending {
		t.Fatalf("expected pending status, got %+v %v", st, err)
	}

	d, err := svc.RegretOrder(ctx, "o-1")
	if err != nil {
		t.Fatalf("regret: %v", err)
	}
	if d.Status != domain.DecisionRegretted {
		t.Fatalf("expected regretted, got %s", d.Status)
	}
	if len(store.outbox) != 1 || store.outbox[0].Type != events.EventOrderRegretted {
		t.Fatalf("expected order.regretted event, got %+v", store.outbox)
	}

	st, err = svc.GetRegretStatus(ctx, "o-1")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if st.Pending || st.Decision == nil || st.Decision.Status != domain.DecisionRegretted {
		t.Fatalf("expected stored decision, got %+v", st)
	}

	if _, err := svc.ConfirmOrder(ctx, "o-1"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found after decision, got %v", err)
	}
	if _, err := svc.GetRegretStatus(ctx, "unknown"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

type recordingConfirmer struct {
	mu        sync.Mutex
	confirmed []string
	cancelled []string
}

func (c *recordingConfirmer) ConfirmOrder(ctx context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.confirmed = append(c.confirmed, id)
	return nil
}

func (c *recordingConfirmer) CancelOrder(ctx context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cancelled = append(c.cancelled, id)
	return nil
}

func TestRegrettedOrderCannotBeRestarted(t *testing.T) {
	store := &memStore{}
	c := &recordingConfirmer{}
	var expiries []func()
	mgr := confirm.NewManager(c, NewDecisionRecorder(store), nil,
		confirm.WithAfterFunc(func(d time.Duration, f func()) confirm.Timer {
			expiries = append(expiries, f)
			return stubTimer{}
		}),
	)
	svc := newTestService(store, &fakeTariffs{}, WithRegretWindow(mgr))
	ctx := context.Background()

	if _, err := svc.StartRegretWindow(ctx, "o-1"); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := svc.RegretOrder(ctx, "o-1"); err != nil {
		t.Fatalf("regret: %v", err)
	}
	if _, err := svc.StartRegretWindow(ctx, "o-1"); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected conflict on restart, got %v", err)
	}
	for _, f := range expiries {
		f()
	}
	if len(c.confirmed) != 0 {
		t.Fatalf("regretted order was confirmed: %v", c.confirmed)
	}
	d, err := store.LatestDecision(ctx, "o-1")
	if err != nil || d.Status != domain.DecisionRegretted {
		t.Fatalf("expected REGRETTED to stand, got %+v %v", d, err)
	}
}

func TestUpdateTariffRejectedWhenTariffIsRemote(t *testing.T) {
	store := &memStore{}
	tariffs := &fakeTariffs{tariff: domain.DefaultTariff}
	svc := newTestService(store, tariffs, WithTariffAdmin(false))

	_, err := svc.UpdateTariff(context.Background(), "admin-1", domain.Tariff{BaseFee: 12, PerKm: 6, MinFee: 12, MaxFee: 45})
	if !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if store.tariff != nil || len(store.outbox) != 0 || tariffs.invalidated != 0 {
		t.Fatalf("rejected update must not touch the store")
	}
	store.tariff = &domain.TariffRecord{Tariff: domain.Tariff{BaseFee: 1, PerKm: 1, MinFee: 1, MaxFee: 2}, UpdatedBy: "old"}
	rec, err := svc.TariffRecord(context.Background())
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if rec.Tariff != domain.DefaultTariff || rec.UpdatedBy != UpstreamEditor {
		t.Fatalf("expected the upstream tariff in force, got %+v", rec)
	}
}
