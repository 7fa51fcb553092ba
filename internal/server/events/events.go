// Package events publishes ticket lifecycle events so downstream consumers
// (dashboards, caches) can refresh after a transition.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/dmitrijs2005/ticketdesk/internal/logging"
	"github.com/dmitrijs2005/ticketdesk/internal/server/models"
	"github.com/segmentio/kafka-go"
)

// Event names.
const (
	TicketCreated   = "ticket.created"
	TicketVerified  = "ticket.verified"
	TicketCancelled = "ticket.cancelled"
	TicketCompleted = "ticket.completed"
	TicketDelivered = "ticket.delivered"
	TicketDeleted   = "ticket.deleted"
)

const publishTimeout = 5 * time.Second

// Publisher is implemented by Producer and by test fakes.
type Publisher interface {
	PublishTicketEvent(ctx context.Context, event string, t *models.Ticket)
}

// TicketEvent is the message body written to the topic. Client contact
// details are left out.
type TicketEvent struct {
	Event       string              `json:"event"`
	TicketID    string              `json:"ticketId"`
	Status      models.TicketStatus `json:"status,omitempty"`
	CreatedAt   *time.Time          `json:"createdAt,omitempty"`
	VerifiedAt  *time.Time          `json:"verifiedAt,omitempty"`
	CancelledAt *time.Time          `json:"cancelledAt,omitempty"`
	CompletedAt *time.Time          `json:"completedAt,omitempty"`
	OccurredAt  time.Time           `json:"occurredAt"`
}

func newTicketEvent(event string, t *models.Ticket, now time.Time) TicketEvent {
	ev := TicketEvent{
		Event:       event,
		TicketID:    t.ID,
		Status:      t.Status,
		VerifiedAt:  t.VerifiedAt,
		CancelledAt: t.CancelledAt,
		CompletedAt: t.CompletedAt,
		OccurredAt:  now,
	}
	if !t.CreatedAt.IsZero() {
		created := t.CreatedAt
		ev.CreatedAt = &created
	}
	return ev
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer writes ticket events to a Kafka topic. Publishing is best effort
// and never blocks the caller for longer than publishTimeout.
type Producer struct {
	writer messageWriter
	log    logging.Logger
	now    func() time.Time
}

var _ Publisher = (*Producer)(nil)

// NewProducer returns a producer. With no brokers or no topic every method
// is a no-op.
func NewProducer(brokers []string, topic string, log logging.Logger) *Producer {
	if log == nil {
		log = logging.Nop()
	}
	p := &Producer{log: log.With("module", "events"), now: time.Now}
	if len(brokers) == 0 || topic == "" {
		return p
	}
	p.writer = &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		BatchTimeout:           10 * time.Millisecond,
		AllowAutoTopicCreation: true,
	}
	return p
}

// Enabled reports whether events are actually sent.
func (p *Producer) Enabled() bool { return p.writer != nil }

func (p *Producer) PublishTicketEvent(ctx context.Context, event string, t *models.Ticket) {
	if p.writer == nil || t == nil {
		return
	}
	body, err := json.Marshal(newTicketEvent(event, t, p.now().UTC()))
	if err != nil {
		p.log.Error(ctx, "marshal ticket event", "event", event, "ticket_id", t.ID, "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	// Keyed by ticket id so events for one ticket stay ordered in a partition.
	if err := p.writer.WriteMessages(ctx, kafka.Message{Key: []byte(t.ID), Value: body}); err != nil {
		p.log.Warn(ctx, "write ticket event", "event", event, "ticket_id", t.ID, "error", err)
	}
}

func (p *Producer) Close() error {
	if p.writer == nil {
		return nil
	}
	return p.writer.Close()
}
