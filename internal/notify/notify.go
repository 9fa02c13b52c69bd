// Package notify publishes domain events to Kafka after successful
// transitions. Dispatch is fire-and-forget: a failed publish is logged and
// never rolls back the transaction that produced it.
package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/mvolkov/storecore/internal/logging"
)

const (
	EventOrderCreated  = "order.created"
	EventOrderPaid     = "order.paid"
	EventOrderShipped  = "order.shipped"
	EventOrderCanceled = "order.canceled"
	EventOrderRefunded = "order.refunded"
	EventPaymentFailed = "payment.failed"
)

type Dispatcher struct {
	writer *kafka.Writer
}

// New returns a dispatcher writing to topic, or a disabled one when no
// brokers are configured.
func New(brokers []string, topic string) *Dispatcher {
	if len(brokers) == 0 {
		return &Dispatcher{}
	}
	return &Dispatcher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
		},
	}
}

func (d *Dispatcher) Notify(ctx context.Context, event, key string, payload map[string]any) {
	if d == nil || d.writer == nil {
		return
	}

	body := map[string]any{
		"type":       event,
		"payload":    payload,
		"created_at": time.Now().UTC().Format(time.RFC3339Nano),
	}
	data, err := json.Marshal(body)
	if err != nil {
		logging.FromContext(ctx).Error("notify_marshal_error", "event", event, "error", err)
		return
	}

	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := d.writer.WriteMessages(writeCtx, kafka.Message{Key: []byte(key), Value: data}); err != nil {
		logging.FromContext(ctx).Error("notify_publish_error", "event", event, "error", err)
	}
}

func (d *Dispatcher) Close() error {
	if d == nil || d.writer == nil {
		return nil
	}
	return d.writer.Close()
}
