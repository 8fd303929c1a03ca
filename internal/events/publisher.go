package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/Baby-jesuset/FBGENERALHW-sj/internal/app/model"
	"github.com/Baby-jesuset/FBGENERALHW-sj/pkg/logger"
	"github.com/segmentio/kafka-go"
)

type EventType string

const (
	OrderPlaced        EventType = "order.placed"
	OrderStatusChanged EventType = "order.status_changed"
)

// OrderEvent is the message body written for every order lifecycle change.
type OrderEvent struct {
	Type           EventType         `json:"type"`
	OrderID        uint              `json:"order_id"`
	UserID         uint              `json:"user_id"`
	Status         model.OrderStatus `json:"status"`
	PreviousStatus model.OrderStatus `json:"previous_status,omitempty"`
	Total          float64           `json:"total"`
	ItemCount      int               `json:"item_count"`
	OccurredAt     time.Time         `json:"occurred_at"`
}

// NewOrderEvent builds an event from the order's current state.
func NewOrderEvent(t EventType, order *model.Order, previous model.OrderStatus) OrderEvent {
	count := 0
	for _, item := range order.OrderItems {
		count += item.Quantity
	}
	return OrderEvent{
		Type:           t,
		OrderID:        order.ID,
		UserID:         order.UserID,
		Status:         order.Status,
		PreviousStatus: previous,
		Total:          order.Total,
		ItemCount:      count,
		OccurredAt:     time.Now().UTC(),
	}
}

type Publisher interface {
	Publish(ctx context.Context, event OrderEvent) error
	Close() error
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes order events keyed by order id, so all events for
// one order land on the same partition in order.
type KafkaPublisher struct {
	writer messageWriter
	topic  string
}

func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		BatchTimeout:           10 * time.Millisecond,
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}
	return &KafkaPublisher{writer: writer, topic: topic}
}

func (p *KafkaPublisher) Publish(ctx context.Context, event OrderEvent) error {
	msg, err := newMessage(event)
	if err != nil {
		return err
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		logger.Error("Failed to publish order event", err, map[string]interface{}{
			"topic":    p.topic,
			"type":     event.Type,
			"order_id": event.OrderID,
		})
		return fmt.Errorf("publish %s: %w", event.Type, err)
	}

	logger.Debug("Order event published", map[string]interface{}{
		"topic":    p.topic,
		"type":     event.Type,
		"order_id": event.OrderID,
	})
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

func newMessage(event OrderEvent) (kafka.Message, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("marshal %s: %w", event.Type, err)
	}
	return kafka.Message{
		Key:   []byte(strconv.FormatUint(uint64(event.OrderID), 10)),
		Value: data,
		Time:  event.OccurredAt,
		Headers: []kafka.Header{
			{Key: "event-type", Value: []byte(event.Type)},
		},
	}, nil
}

// NoopPublisher drops events. Used when no brokers are configured.
type NoopPublisher struct{}

func (NoopPublisher) Publish(_ context.Context, event OrderEvent) error {
	logger.Debug("Order event dropped, no broker configured", map[string]interface{}{
		"type":     event.Type,
		"order_id": event.OrderID,
	})
	return nil
}

func (NoopPublisher) Close() error { return nil }
