package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"storefront/internal/models"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

type Producer struct {
	Writer *kafka.Writer
}

func NewProducer(brokers []string) *Producer {
	writer := &kafka.Writer{
		Addr:     kafka.TCP(brokers...),
		Balancer: &kafka.LeastBytes{},
	}
	return &Producer{Writer: writer}
}

// Publish writes a single message to the given topic.
func (p *Producer) Publish(topic string, key string, value []byte) error {
	return p.Writer.WriteMessages(context.Background(),
		kafka.Message{
			Topic: topic,
			Key:   []byte(key),
			Value: value,
		},
	)
}

// Events carry a unique id so consumers can deduplicate redeliveries.
type orderEvent struct {
	EventID   string             `json:"event_id"`
	OrderID   int64              `json:"order_id"`
	Status    models.OrderStatus `json:"status"`
	Total     float64            `json:"total_amount"`
	Method    string             `json:"payment_method,omitempty"`
	Timestamp time.Time          `json:"timestamp"`
}

// PublishOrderCreated streams the order creation event.
func (p *Producer) PublishOrderCreated(order *models.Order) error {
	event := orderEvent{
		EventID:   uuid.NewString(),
		OrderID:   order.ID,
		Status:    order.Status,
		Total:     order.TotalAmount,
		Timestamp: time.Now(),
	}
	if order.Payment != nil {
		event.Method = string(order.Payment.Method)
	}
	value, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return p.Publish(TopicOrderCreated, fmt.Sprintf("%d", order.ID), value)
}

// PublishOrderStatus streams an order status transition.
func (p *Producer) PublishOrderStatus(orderID int64, status models.OrderStatus) error {
	value, err := json.Marshal(orderEvent{
		EventID:   uuid.NewString(),
		OrderID:   orderID,
		Status:    status,
		Timestamp: time.Now(),
	})
	if err != nil {
		return err
	}
	return p.Publish(TopicOrderStatus, fmt.Sprintf("%d", orderID), value)
}

type paymentEvent struct {
	EventID       string    `json:"event_id"`
	OrderID       int64     `json:"order_id"`
	Provider      string    `json:"provider"`
	TransactionID string    `json:"transaction_id,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// PublishPaymentResult streams the outcome of a payment reconciliation.
func (p *Producer) PublishPaymentResult(orderID int64, provider, transactionID string, success bool) error {
	topic := TopicPaymentFailed
	if success {
		topic = TopicPaymentSucceeded
	}
	value, err := json.Marshal(paymentEvent{
		EventID:       uuid.NewString(),
		OrderID:       orderID,
		Provider:      provider,
		TransactionID: transactionID,
		Timestamp:     time.Now(),
	})
	if err != nil {
		return err
	}
	return p.Publish(topic, fmt.Sprintf("%d", orderID), value)
}

func (p *Producer) Close() error {
	return p.Writer.Close()
}
