package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"market-delivery/internal/domain"
	"market-delivery/internal/events"
	"market-delivery/internal/service"
)

// tariffRowID keys the single active tariff row.
const tariffRowID = "default"

type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) BeginTx(ctx context.Context) (service.Tx, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	return &Tx{tx: tx}, nil
}

func (s *Store) GetTariff(ctx context.Context) (*domain.TariffRecord, error) {
	row := s.pool.QueryRow(ctx, tariffSelectSQL, tariffRowID)
	return scanTariff(row)
}

// FetchTariff makes the store usable as a tariff.Source. A missing row is
// reported as domain.ErrNotFound so the estimator falls back to the default.
func (s *Store) FetchTariff(ctx context.Context) (domain.Tariff, error) {
	rec, err := s.GetTariff(ctx)
	if err != nil {
		return domain.Tariff{}, err
	}
	return rec.Tariff, nil
}

func (s *Store) LatestDecision(ctx context.Context, orderID string) (*domain.Decision, error) {
	row := s.pool.QueryRow(ctx, decisionLatestSQL, orderID)
	return scanDecision(row)
}

type Tx struct {
	tx pgx.Tx
}

func (t *Tx) Commit(ctx context.Context) error {
	return t.tx.Commit(ctx)
}

func (t *Tx) Rollback(ctx context.Context) error {
	return t.tx.Rollback(ctx)
}

func (t *Tx) SaveTariff(ctx context.Context, rec domain.TariffRecord) error {
	_, err := t.tx.Exec(ctx, tariffUpsertSQL,
		tariffRowID,
		rec.Tariff.BaseFee,
		rec.Tariff.PerKm,
		rec.Tariff.MinFee,
		rec.Tariff.MaxFee,
		rec.UpdatedBy,
		rec.UpdatedAt,
	)
	return err
}

func (t *Tx) InsertDecision(ctx context.Context, d domain.Decision) error {
	_, err := t.tx.Exec(ctx, decisionInsertSQL,
		d.ID,
		d.OrderID,
		d.Status,
		nullString(d.Reason),
		d.StartedAt,
		d.DecidedAt,
	)
	return err
}

func (t *Tx) EnqueueEvent(ctx context.Context, event events.Event) error {
	_, err := t.tx.Exec(ctx, outboxInsertSQL,
		event.ID,
		event.Type,
		event.AggregateType,
		event.AggregateID,
		event.Payload,
		event.OccurredAt,
	)
	return err
}

func scanTariff(row pgx.Row) (*domain.TariffRecord, error) {
	rec := &domain.TariffRecord{}
	err := row.Scan(
		&rec.Tariff.BaseFee,
		&rec.Tariff.PerKm,
		&rec.Tariff.MinFee,
		&rec.Tariff.MaxFee,
		&rec.UpdatedBy,
		&rec.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return rec, nil
}

func scanDecision(row pgx.Row) (*domain.Decision, error) {
	var reason sql.NullString
	d := &domain.Decision{}
	err := row.Scan(
		&d.ID,
		&d.OrderID,
		&d.Status,
		&reason,
		&d.StartedAt,
		&d.DecidedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	if reason.Valid {
		d.Reason = &reason.String
	}
	return d, nil
}

func nullString(v *string) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *v, Valid: true}
}

var _ service.Store = (*Store)(nil)
