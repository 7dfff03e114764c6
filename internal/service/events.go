package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"relivv/internal/metrics"
	"relivv/internal/model"
)

const (
	// OrderExchange is the topic exchange order lifecycle events go to.
	OrderExchange = "marketplace.orders"

	// Routing keys.
	OrderPlacedKey    = "order.placed"
	OrderPaidKey      = "order.paid"
	OrderCompletedKey = "order.completed"
	OrderRefundedKey  = "order.refunded"
)

// OrderEvent is the payload published for every transaction transition.
type OrderEvent struct {
	TransactionID string    `json:"transaction_id"`
	ProductID     string    `json:"product_id"`
	BuyerID       string    `json:"buyer_id"`
	SellerID      string    `json:"seller_id"`
	Amount        float64   `json:"amount"`
	Commission    float64   `json:"commission"`
	Status        string    `json:"status"`
	Timestamp     time.Time `json:"timestamp"`
}

// EventPublisher pushes order events to RabbitMQ. A nil publisher is valid
// and drops everything, so the broker stays optional.
type EventPublisher struct {
	conn    *amqp.Connection
	channel *amqp.Channel
}

func NewEventPublisher(url string) (*EventPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	err = ch.ExchangeDeclare(
		OrderExchange,
		"topic",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}

	return &EventPublisher{conn: conn, channel: ch}, nil
}

// PublishOrderEvent publishes the event. Failures are logged, never
// propagated: the broker must not be able to fail a checkout.
func (p *EventPublisher) PublishOrderEvent(ctx context.Context, routingKey string, tx *model.Transaction) {
	if p == nil {
		return
	}

	event := OrderEvent{
		TransactionID: tx.ID,
		ProductID:     tx.ProductID,
		BuyerID:       tx.BuyerID,
		SellerID:      tx.SellerID,
		Amount:        tx.Amount,
		Commission:    tx.Commission,
		Status:        tx.Status,
		Timestamp:     time.Now().UTC(),
	}

	body, err := json.Marshal(event)
	if err != nil {
		slog.Error("failed to marshal order event", "error", err)
		return
	}

	err = p.channel.PublishWithContext(ctx,
		OrderExchange,
		routingKey,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			Timestamp:    time.Now(),
			DeliveryMode: amqp.Persistent,
		},
	)
	if err != nil {
		slog.Error("failed to publish order event", "routing_key", routingKey, "error", err)
		return
	}

	metrics.EventsPublished.WithLabelValues(routingKey).Inc()
	slog.Info("order event published", "routing_key", routingKey, "transaction_id", tx.ID)
}

func (p *EventPublisher) Close() {
	if p == nil {
		return
	}
	if p.channel != nil {
		p.channel.Close()
	}
	if p.conn != nil {
		p.conn.Close()
	}
}
