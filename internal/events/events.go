package events

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"market-delivery/internal/domain"
)

const (
	AggregateTariff = "tariff"
	AggregateOrder  = "order"
)

const (
	EventTariffUpdated  = "tariff.updated"
	EventOrderConfirmed = "order.confirmed"
	EventOrderRegretted = "order.regretted"
	EventOrderFailed    = "order.confirmation_failed"
)

// TariffAggregateID identifies the single tariff row.
const TariffAggregateID = "default"

type Event struct {
	ID            string
	Type          string
	AggregateType string
	AggregateID   string
	Payload       json.RawMessage
	OccurredAt    time.Time
}

func NewEvent(eventType, aggregateType, aggregateID string, payload any, occurredAt time.Time) Event {
	data, _ := json.Marshal(payload)
	return Event{
		ID:            uuid.NewString(),
		Type:          eventType,
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		Payload:       data,
		OccurredAt:    occurredAt,
	}
}

func NewTariffEvent(rec domain.TariffRecord) Event {
	payload := map[string]any{
		"base_fee":   rec.Tariff.BaseFee,
		"per_km":     rec.Tariff.PerKm,
		"min_fee":    rec.Tariff.MinFee,
		"max_fee":    rec.Tariff.MaxFee,
		"updated_by": rec.UpdatedBy,
		"updated_at": rec.UpdatedAt,
	}
	return NewEvent(EventTariffUpdated, AggregateTariff, TariffAggregateID, payload, rec.UpdatedAt)
}

// DecisionEventType maps a decision outcome to its event type.
func DecisionEventType(status domain.DecisionStatus) string {
	switch status {
	case domain.DecisionRegretted:
		return EventOrderRegretted
	case domain.DecisionFailed:
		return EventOrderFailed
	default:
		return EventOrderConfirmed
	}
}

func NewDecisionEvent(d domain.Decision) Event {
	payload := map[string]any{
		"decision_id": d.ID,
		"order_id":    d.OrderID,
		"status":      d.Status,
		"reason":      d.Reason,
		"started_at":  d.StartedAt,
		"decided_at":  d.DecidedAt,
	}
	return NewEvent(DecisionEventType(d.Status), AggregateOrder, d.OrderID, payload, d.DecidedAt)
}
