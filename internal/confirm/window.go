// Package confirm runs the order-confirmation regret window: a placed
// order can be regretted until its countdown expires, after which it is
// confirmed automatically.
package confirm

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"market-delivery/internal/domain"
	"market-delivery/internal/logger"
)

// DefaultWindow is how long a customer has to regret an order.
const DefaultWindow = 60 * time.Second

// Confirmer carries decisions to the order backend.
type Confirmer interface {
	ConfirmOrder(ctx context.Context, orderID string) error
	CancelOrder(ctx context.Context, orderID string) error
}

// Recorder stores decided windows.
type Recorder interface {
	RecordDecision(ctx context.Context, d domain.Decision) error
}

// Timer is the part of *time.Timer the manager needs.
type Timer interface {
	Stop() bool
}

type Option func(*Manager)

func WithWindow(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.window = d
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// WithAfterFunc replaces time.AfterFunc, mainly for tests.
func WithAfterFunc(fn func(d time.Duration, f func()) Timer) Option {
	return func(m *Manager) {
		m.afterFunc = fn
	}
}

// WithCallTimeout bounds each upstream confirm/cancel call.
func WithCallTimeout(d time.Duration) Option {
	return func(m *Manager) {
		m.callTimeout = d
	}
}

type window struct {
	startedAt time.Time
	deadline  time.Time
	timer     Timer
}

type Manager struct {
	confirmer   Confirmer
	recorder    Recorder
	log         *logger.Logger
	window      time.Duration
	callTimeout time.Duration
	now         func() time.Time
	afterFunc   func(d time.Duration, f func()) Timer

	mu       sync.Mutex
	pending  map[string]*window
	// deciding holds orders whose outcome is being carried out and recorded
	deciding map[string]struct{}
}

func NewManager(confirmer Confirmer, recorder Recorder, log *logger.Logger, opts ...Option) *Manager {
	if log == nil {
		log = logger.Nop()
	}
	m := &Manager{
		confirmer:   confirmer,
		recorder:    recorder,
		log:         log,
		window:      DefaultWindow,
		callTimeout: 10 * time.Second,
		now:         func() time.Time { return time.Now().UTC() },
		afterFunc: func(d time.Duration, f func()) Timer {
			return time.AfterFunc(d, f)
		},
		pending:  make(map[string]*window),
		deciding: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start opens the regret window for orderID and returns its deadline. An
// order that is open or being decided cannot be started again; orders
// decided earlier are rejected by the caller from the stored decision.
func (m *Manager) Start(orderID string) (time.Time, error) {
	if orderID == "" {
		return time.Time{}, fmt.Errorf("order id: %w", domain.ErrInvalid)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.pending[orderID]; ok {
		return time.Time{}, domain.ErrConflict
	}
	if _, ok := m.deciding[orderID]; ok {
		return time.Time{}, domain.ErrConflict
	}
	now := m.now()
	w := &window{startedAt: now, deadline: now.Add(m.window)}
	w.timer = m.afterFunc(m.window, func() { m.expire(orderID) })
	m.pending[orderID] = w
	m.log.Debug("regret window opened order=%s deadline=%s", orderID, w.deadline.Format(time.RFC3339))
	return w.deadline, nil
}

// Remaining reports the time left before auto-confirmation.
func (m *Manager) Remaining(orderID string) (time.Duration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.pending[orderID]
	if !ok {
		return 0, domain.ErrNotFound
	}
	left := w.deadline.Sub(m.now())
	if left < 0 {
		left = 0
	}
	return left, nil
}

// Regret cancels the order while its window is still open.
func (m *Manager) Regret(ctx context.Context, orderID string) (domain.Decision, error) {
	return m.decide(ctx, orderID, domain.DecisionRegretted, m.confirmer.CancelOrder)
}

// ConfirmNow confirms the order without waiting for the countdown.
func (m *Manager) ConfirmNow(ctx context.Context, orderID string) (domain.Decision, error) {
	return m.decide(ctx, orderID, domain.DecisionConfirmed, m.confirmer.ConfirmOrder)
}

// Close stops every pending countdown. Undecided orders stay undecided.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, w := range m.pending {
		w.timer.Stop()
		delete(m.pending, id)
		m.log.Warn("regret window dropped on shutdown order=%s", id)
	}
}

func (m *Manager) decide(ctx context.Context, orderID string, status domain.DecisionStatus, call func(context.Context, string) error) (domain.Decision, error) {
	w, err := m.take(orderID)
	if err != nil {
		return domain.Decision{}, err
	}
	callCtx, cancel := context.WithTimeout(ctx, m.callTimeout)
	defer cancel()
	callErr := call(callCtx, orderID)
	// the call went out; record it even if the caller has gone away
	d := m.finish(context.WithoutCancel(ctx), orderID, w, status, callErr)
	if callErr != nil {
		return d, fmt.Errorf("%s order %s: %w", status, orderID, callErr)
	}
	return d, nil
}

// take removes the window if its timer has not fired yet.
func (m *Manager) take(orderID string) (*window, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.pending[orderID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if !w.timer.Stop() {
		// expire is already running and owns the window
		return nil, domain.ErrConflict
	}
	delete(m.pending, orderID)
	m.deciding[orderID] = struct{}{}
	return w, nil
}

func (m *Manager) expire(orderID string) {
	m.mu.Lock()
	w, ok := m.pending[orderID]
	if ok {
		delete(m.pending, orderID)
		m.deciding[orderID] = struct{}{}
	}
	m.mu.Unlock()
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), m.callTimeout)
	defer cancel()
	err := m.confirmer.ConfirmOrder(ctx, orderID)
	m.finish(ctx, orderID, w, domain.DecisionAutoConfirmed, err)
}

func (m *Manager) finish(ctx context.Context, orderID string, w *window, status domain.DecisionStatus, callErr error) domain.Decision {
	d := domain.Decision{
		ID:        uuid.NewString(),
		OrderID:   orderID,
		Status:    status,
		StartedAt: w.startedAt,
		DecidedAt: m.now(),
	}
	if callErr != nil {
		reason := fmt.Sprintf("%s: %v", status, callErr)
		d.Status = domain.DecisionFailed
		d.Reason = &reason
		m.log.Warn("order decision failed order=%s: %v", orderID, callErr)
	} else {
		m.log.Info("order %s %s", orderID, status)
	}
	if m.recorder != nil {
		if err := m.recorder.RecordDecision(ctx, d); err != nil {
			m.log.Error("record decision order=%s: %v", orderID, err)
		}
	}
	m.mu.Lock()
	delete(m.deciding, orderID)
	m.mu.Unlock()
	return d
}

// LocalConfirmer accepts every decision without calling out. It is used when
// no upstream order API is configured; the recorded outbox event is then the
// only notification.
type LocalConfirmer struct{}

func (LocalConfirmer) ConfirmOrder(ctx context.Context, orderID string) error { return nil }

func (LocalConfirmer) CancelOrder(ctx context.Context, orderID string) error { return nil }
