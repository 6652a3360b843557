package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"market-delivery/internal/domain"
	"market-delivery/internal/events"
)

type RegretStatus struct {
	OrderID   string
	Pending   bool
	Deadline  time.Time
	Remaining time.Duration
	Decision  *domain.Decision
}

func (s *Service) StartRegretWindow(ctx context.Context, orderID string) (*RegretStatus, error) {
	if s.regret == nil {
		return nil, domain.ErrNotFound
	}
	// a decided order never gets a second window
	d, err := s.store.LatestDecision(ctx, orderID)
	if err == nil {
		return nil, fmt.Errorf("order %s already %s: %w", orderID, d.Status, domain.ErrConflict)
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	deadline, err := s.regret.Start(orderID)
	if err != nil {
		return nil, err
	}
	return &RegretStatus{OrderID: orderID, Pending: true, Deadline: deadline, Remaining: deadline.Sub(s.now())}, nil
}

func (s *Service) RegretOrder(ctx context.Context, orderID string) (*domain.Decision, error) {
	if s.regret == nil {
		return nil, domain.ErrNotFound
	}
	d, err := s.regret.Regret(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (s *Service) ConfirmOrder(ctx context.Context, orderID string) (*domain.Decision, error) {
	if s.regret == nil {
		return nil, domain.ErrNotFound
	}
	d, err := s.regret.ConfirmNow(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// GetRegretStatus reports a running window, or the stored decision once it closed.
func (s *Service) GetRegretStatus(ctx context.Context, orderID string) (*RegretStatus, error) {
	if s.regret != nil {
		left, err := s.regret.Remaining(orderID)
		if err == nil {
			return &RegretStatus{OrderID: orderID, Pending: true, Deadline: s.now().Add(left), Remaining: left}, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
	}
	d, err := s.store.LatestDecision(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return &RegretStatus{OrderID: orderID, Deadline: d.DecidedAt, Decision: d}, nil
}

// DecisionRecorder persists regret-window outcomes with their outbox event.
type DecisionRecorder struct {
	store Store
}

func NewDecisionRecorder(store Store) *DecisionRecorder {
	return &DecisionRecorder{store: store}
}

func (r *DecisionRecorder) RecordDecision(ctx context.Context, d domain.Decision) error {
	tx, err := r.store.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := tx.InsertDecision(ctx, d); err != nil {
		return err
	}
	if err := tx.EnqueueEvent(ctx, events.NewDecisionEvent(d)); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
