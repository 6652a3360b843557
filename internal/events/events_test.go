package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"market-delivery/internal/domain"
)

func TestNewDecisionEventType(t *testing.T) {
	reason := "upstream down"
	cases := []struct {
		status domain.DecisionStatus
		want   string
	}{
		{domain.DecisionConfirmed, EventOrderConfirmed},
		{domain.DecisionAutoConfirmed, EventOrderConfirmed},
		{domain.DecisionRegretted, EventOrderRegretted},
		{domain.DecisionFailed, EventOrderFailed},
	}
	for _, tc := range cases {
		evt := NewDecisionEvent(domain.Decision{ID: "d", OrderID: "o-1", Status: tc.status, Reason: &reason, DecidedAt: time.Now()})
		if evt.Type != tc.want {
			t.Fatalf("%s: expected %s, got %s", tc.status, tc.want, evt.Type)
		}
		if evt.AggregateType != AggregateOrder || evt.AggregateID != "o-1" {
			t.Fatalf("unexpected aggregate %s/%s", evt.AggregateType, evt.AggregateID)
		}
	}
}

func TestNewTariffEventPayload(t *testing.T) {
	rec := domain.TariffRecord{Tariff: domain.Tariff{BaseFee: 10, PerKm: 5, MinFee: 12, MaxFee: 30}, UpdatedBy: "admin-1", UpdatedAt: time.Now()}
	evt := NewTariffEvent(rec)
	if evt.ID == "" || evt.Type != EventTariffUpdated {
		t.Fatalf("unexpected event %+v", evt)
	}
	var payload map[string]any
	if err := json.Unmarshal(evt.Payload, &payload); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if payload["per_km"].(float64) != 5 || payload["updated_by"] != "admin-1" {
		t.Fatalf("unexpected payload %v", payload)
	}
}

type memOutbox struct {
	pending   []Event
	published []string
}

func (m *memOutbox) FetchPending(ctx context.Context, limit int) ([]Event, error) {
	if len(m.pending) > limit {
		return m.pending[:limit], nil
	}
	return m.pending, nil
}

func (m *memOutbox) MarkPublished(ctx context.Context, ids []string) error {
	m.published = append(m.published, ids...)
	return nil
}

type flakyPublisher struct {
	failType string
	sent     []string
}

func (p *flakyPublisher) Publish(ctx context.Context, evt Event) error {
	if evt.Type == p.failType {
		return errors.New("broker unavailable")
	}
	p.sent = append(p.sent, evt.ID)
	return nil
}

func (p *flakyPublisher) Close() error { return nil }

func TestRelayOnceMarksOnlyPublished(t *testing.T) {
	now := time.Now()
	repo := &memOutbox{pending: []Event{
		NewEvent(EventTariffUpdated, AggregateTariff, TariffAggregateID, nil, now),
		NewEvent(EventOrderConfirmed, AggregateOrder, "o-1", nil, now),
	}}
	pub := &flakyPublisher{failType: EventOrderConfirmed}
	w := &OutboxWorker{Repo: repo, Publisher: pub, BatchSize: 10}

	if n := w.RelayOnce(context.Background()); n != 1 {
		t.Fatalf("expected 1 relayed, got %d", n)
	}
	if len(repo.published) != 1 || repo.published[0] != repo.pending[0].ID {
		t.Fatalf("unexpected published ids %v", repo.published)
	}
}
