package service

import (
	"context"
	"time"

	"market-delivery/internal/domain"
	"market-delivery/internal/events"
	"market-delivery/internal/geo"
	"market-delivery/internal/logger"
	"market-delivery/internal/pricing"
)

type Store interface {
	BeginTx(ctx context.Context) (Tx, error)
	GetTariff(ctx context.Context) (*domain.TariffRecord, error)
	LatestDecision(ctx context.Context, orderID string) (*domain.Decision, error)
}

type Tx interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
	SaveTariff(ctx context.Context, rec domain.TariffRecord) error
	InsertDecision(ctx context.Context, d domain.Decision) error
	EnqueueEvent(ctx context.Context, event events.Event) error
}

// Tariffs is the cached view of the tariff in force.
type Tariffs interface {
	Current(ctx context.Context) domain.Tariff
	Invalidate(ctx context.Context) error
}

// RegretWindow is implemented by confirm.Manager.
type RegretWindow interface {
	Start(orderID string) (time.Time, error)
	Regret(ctx context.Context, orderID string) (domain.Decision, error)
	ConfirmNow(ctx context.Context, orderID string) (domain.Decision, error)
	Remaining(orderID string) (time.Duration, error)
}

type Option func(*Service)

func WithCoverage(area geo.Area) Option {
	return func(s *Service) {
		s.coverage = area
	}
}

func WithPrepTime(minutes float64) Option {
	return func(s *Service) {
		s.prepTimeMin = minutes
	}
}

func WithRegretWindow(w RegretWindow) Option {
	return func(s *Service) {
		s.regret = w
	}
}

// WithTariffAdmin(false) refuses tariff edits; used when the tariff in
// force comes from the upstream API.
func WithTariffAdmin(enabled bool) Option {
	return func(s *Service) {
		s.tariffAdmin = enabled
	}
}

func WithLogger(log *logger.Logger) Option {
	return func(s *Service) {
		s.log = log
	}
}

type Service struct {
	store       Store
	tariffs     Tariffs
	cart        *pricing.Calculator
	regret      RegretWindow
	coverage    geo.Area
	prepTimeMin float64
	tariffAdmin bool
	log         *logger.Logger
	now         func() time.Time
}

func New(store Store, tariffs Tariffs, cart *pricing.Calculator, opts ...Option) *Service {
	s := &Service{
		store:       store,
		tariffs:     tariffs,
		cart:        cart,
		coverage:    geo.NewArea(geo.DefaultBounds, nil),
		prepTimeMin: geo.DefaultPrepTimeMin,
		tariffAdmin: true,
		log:         logger.Nop(),
		now:         func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}
