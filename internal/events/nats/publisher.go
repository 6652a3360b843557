package nats

import (
	"context"
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"

	"market-delivery/internal/events"
)

const DefaultSubject = "delivery.events"

type Publisher struct {
	nc      *nats.Conn
	subject string
}

type wireEvent struct {
	ID            string          `json:"id"`
	Type          string          `json:"type"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id"`
	Payload       json.RawMessage `json:"payload"`
	OccurredAt    time.Time       `json:"occurred_at"`
}

func New(url, subject string) (*Publisher, error) {
	nc, err := nats.Connect(url, nats.Name("market-delivery"))
	if err != nil {
		return nil, err
	}
	if subject == "" {
		subject = DefaultSubject
	}
	return &Publisher{nc: nc, subject: subject}, nil
}

// Publish sends the event on "<subject>.<event type>" so consumers can
// subscribe with wildcards.
func (p *Publisher) Publish(ctx context.Context, event events.Event) error {
	data, err := json.Marshal(wireEvent{
		ID:            event.ID,
		Type:          event.Type,
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		Payload:       event.Payload,
		OccurredAt:    event.OccurredAt,
	})
	if err != nil {
		return err
	}
	msg := nats.NewMsg(p.subject + "." + event.Type)
	msg.Data = data
	msg.Header.Set(nats.MsgIdHdr, event.ID)
	return p.nc.PublishMsg(msg)
}

func (p *Publisher) Close() error {
	if p.nc != nil {
		return p.nc.Drain()
	}
	return nil
}

var _ events.Publisher = (*Publisher)(nil)
