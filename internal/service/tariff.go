package service

import (
	"context"
	"fmt"

	"market-delivery/internal/domain"
	"market-delivery/internal/events"
)

func (s *Service) GetTariff(ctx context.Context) domain.Tariff {
	return s.tariffs.Current(ctx)
}

// UpdateTariff stores a new tariff and publishes tariff.updated. The cache is
// dropped after commit so the next quote reads the new row.
func (s *Service) UpdateTariff(ctx context.Context, adminID string, t domain.Tariff) (*domain.TariffRecord, error) {
	if !s.tariffAdmin {
		return nil, fmt.Errorf("tariff is managed upstream: %w", domain.ErrConflict)
	}
	if err := domain.ValidateTariff(t); err != nil {
		return nil, fmt.Errorf("%v: %w", err, domain.ErrInvalid)
	}
	tx, err := s.store.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	rec := domain.TariffRecord{Tariff: t, UpdatedBy: adminID, UpdatedAt: s.now()}
	if err := tx.SaveTariff(ctx, rec); err != nil {
		return nil, err
	}
	if err := tx.EnqueueEvent(ctx, events.NewTariffEvent(rec)); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	if err := s.tariffs.Invalidate(ctx); err != nil {
		s.log.Warn("tariff cache invalidate failed: %v", err)
	}
	s.log.Info("tariff updated by %s", adminID)
	return &rec, nil
}

// UpstreamEditor marks a tariff record read from the upstream API.
const UpstreamEditor = "upstream"

// TariffRecord returns the stored row, including who changed it last. When
// the tariff is managed upstream the stored row is not in force, so the
// upstream tariff is reported instead.
func (s *Service) TariffRecord(ctx context.Context) (*domain.TariffRecord, error) {
	if !s.tariffAdmin {
		return &domain.TariffRecord{Tariff: s.tariffs.Current(ctx), UpdatedBy: UpstreamEditor, UpdatedAt: s.now()}, nil
	}
	return s.store.GetTariff(ctx)
}
