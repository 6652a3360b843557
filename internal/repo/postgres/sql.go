package postgres

const tariffSelectSQL = `
SELECT base_fee, per_km, min_fee, max_fee, updated_by, updated_at
FROM delivery_tariffs
WHERE id = $1
`

const tariffUpsertSQL = `
INSERT INTO delivery_tariffs (
  id, base_fee, per_km, min_fee, max_fee, updated_by, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7)
ON CONFLICT (id) DO UPDATE SET
  base_fee = EXCLUDED.base_fee,
  per_km = EXCLUDED.per_km,
  min_fee = EXCLUDED.min_fee,
  max_fee = EXCLUDED.max_fee,
  updated_by = EXCLUDED.updated_by,
  updated_at = EXCLUDED.updated_at
`

const decisionInsertSQL = `
INSERT INTO order_decisions (
  id, order_id, status, reason, started_at, decided_at
) VALUES ($1,$2,$3,$4,$5,$6)
`

const decisionLatestSQL = `
SELECT id, order_id, status, reason, started_at, decided_at
FROM order_decisions
WHERE order_id = $1
ORDER BY decided_at DESC
LIMIT 1
`

const outboxInsertSQL = `
INSERT INTO outbox_events (
  id, event_type, aggregate_type, aggregate_id, payload, occurred_at
) VALUES ($1,$2,$3,$4,$5,$6)
`

const outboxFetchPendingSQL = `
SELECT id, event_type, aggregate_type, aggregate_id, payload, occurred_at
FROM outbox_events
WHERE published_at IS NULL
ORDER BY occurred_at
LIMIT $1
`

const outboxMarkPublishedSQL = `
UPDATE outbox_events
SET published_at = now()
WHERE id = ANY($1::uuid[])
`
