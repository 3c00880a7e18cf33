// Package events publishes order lifecycle notifications to Kafka. The
// producer is best-effort by contract: delivery failures are logged and never
// surface to the checkout path.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/docebrew/cupcakeria/internal/domain/order"
)

const (
	typeOrderCreated       = "order.created"
	typeOrderStatusChanged = "order.status_changed"
)

// Envelope is the wire format for every order event.
type Envelope struct {
	EventID     string    `json:"event_id"`
	Type        string    `json:"type"`
	OrderNumber string    `json:"order_number"`
	CustomerID  string    `json:"customer_id"`
	Status      string    `json:"status"`
	FromStatus  string    `json:"from_status,omitempty"`
	Total       string    `json:"total"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// Producer publishes order events to a Kafka topic, keyed by order number so
// one order's events stay in partition order.
type Producer struct {
	writer *kafka.Writer
	lg     *zap.Logger
}

var _ order.EventPublisher = (*Producer)(nil)

// NewProducer creates a Producer for the given brokers and topic.
func NewProducer(brokers []string, topic string, lg *zap.Logger) *Producer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireAll,
		BatchTimeout: 50 * time.Millisecond,
		Compression:  kafka.Snappy,
	}
	return &Producer{writer: writer, lg: lg}
}

// OrderCreated publishes an order.created event.
func (p *Producer) OrderCreated(ctx context.Context, o *order.Order) {
	p.publish(ctx, Envelope{
		EventID:     uuid.New().String(),
		Type:        typeOrderCreated,
		OrderNumber: o.Number,
		CustomerID:  o.CustomerID,
		Status:      string(o.Status),
		Total:       o.Total.StringFixed(2),
		OccurredAt:  time.Now(),
	})
}

// OrderStatusChanged publishes an order.status_changed event.
func (p *Producer) OrderStatusChanged(ctx context.Context, o *order.Order, from, to order.Status) {
	p.publish(ctx, Envelope{
		EventID:     uuid.New().String(),
		Type:        typeOrderStatusChanged,
		OrderNumber: o.Number,
		CustomerID:  o.CustomerID,
		Status:      string(to),
		FromStatus:  string(from),
		Total:       o.Total.StringFixed(2),
		OccurredAt:  time.Now(),
	})
}

// Close flushes and closes the underlying writer.
func (p *Producer) Close() error {
	return p.writer.Close()
}

func (p *Producer) publish(ctx context.Context, e Envelope) {
	value, err := json.Marshal(e)
	if err != nil {
		p.lg.Error("encode order event", zap.String("type", e.Type), zap.Error(err))
		return
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(e.OrderNumber),
		Value: value,
	})
	if err != nil {
		p.lg.Warn("publish order event",
			zap.String("type", e.Type),
			zap.String("order_number", e.OrderNumber),
			zap.Error(err),
		)
	}
}
