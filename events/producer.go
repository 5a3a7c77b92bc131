// Package events publishes withdrawal lifecycle events to RabbitMQ.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rabbitmq/amqp091-go"
)

const Exchange = "withdrawal_events"

// Routing keys
const (
	WithdrawalCreated      = "withdrawal.created"
	WithdrawalApproved     = "withdrawal.approved"
	WithdrawalRejected     = "withdrawal.rejected"
	WithdrawalPayoutFailed = "withdrawal.payout_failed"
	WithdrawalReleased     = "withdrawal.released"
)

// WithdrawalEvent is the payload published for every withdrawal state change
type WithdrawalEvent struct {
	EventID      string    `json:"eventId"`
	Type         string    `json:"type"`
	WithdrawalID string    `json:"withdrawalId"`
	UserID       string    `json:"userId"`
	Amount       float64   `json:"amount"`
	Status       string    `json:"status"`
	Reason       string    `json:"reason,omitempty"`
	OccurredAt   time.Time `json:"occurredAt"`
}

// NewWithdrawalEvent stamps an event with a fresh id and time
func NewWithdrawalEvent(eventType, withdrawalID, userID string, amount float64, status string) WithdrawalEvent {
	return WithdrawalEvent{
		EventID:      uuid.NewString(),
		Type:         eventType,
		WithdrawalID: withdrawalID,
		UserID:       userID,
		Amount:       amount,
		Status:       status,
		OccurredAt:   time.Now().UTC(),
	}
}

// Publisher is implemented by types that can publish withdrawal events
type Publisher interface {
	PublishWithdrawalEvent(ctx context.Context, event WithdrawalEvent) error
	Close()
}

// FallbackProducer is a no-op publisher used when RabbitMQ is not configured or unreachable
type FallbackProducer struct{}

func (p *FallbackProducer) PublishWithdrawalEvent(ctx context.Context, event WithdrawalEvent) error {
	log.Printf("level=warn component=rabbitmq_producer mode=fallback msg=\"publish skipped\" type=%s withdrawal_id=%s", event.Type, event.WithdrawalID)
	return nil
}

func (p *FallbackProducer) Close() {}

// Producer holds the RabbitMQ connection and channel for publishing messages
type Producer struct {
	mu      sync.Mutex
	conn    *amqp091.Connection
	channel *amqp091.Channel
}

func sanitizeAMQPURL(raw string) (string, error) {
	clean := strings.Trim(strings.TrimSpace(raw), "\"'")
	u, err := url.Parse(clean)
	if err != nil {
		return "", err
	}
	if u.Scheme != "amqp" && u.Scheme != "amqps" {
		return "", errors.New("AMQP scheme must be either 'amqp://' or 'amqps://'")
	}
	return clean, nil
}

// NewProducer connects to RabbitMQ and declares the withdrawal exchange
func NewProducer(amqpURL string) (*Producer, error) {
	cleanURL, err := sanitizeAMQPURL(amqpURL)
	if err != nil {
		return nil, err
	}

	conn, err := amqp091.DialConfig(cleanURL, amqp091.Config{Dial: amqp091.DefaultDial(10 * time.Second)})
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}

	if err := ch.ExchangeDeclare(Exchange, "topic", true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}

	return &Producer{conn: conn, channel: ch}, nil
}

// NewPublisher returns a RabbitMQ producer, or the fallback when amqpURL is empty or unreachable
func NewPublisher(amqpURL string) Publisher {
	if amqpURL == "" {
		log.Println("AMQP_URL not set, withdrawal events will not be published")
		return &FallbackProducer{}
	}
	p, err := NewProducer(amqpURL)
	if err != nil {
		log.Printf("level=warn component=rabbitmq_producer msg=\"connect failed, using fallback\" err=%v", err)
		return &FallbackProducer{}
	}
	log.Println("Connected to RabbitMQ")
	return p
}

// PublishWithdrawalEvent publishes event with its type as routing key
func (p *Producer) PublishWithdrawalEvent(ctx context.Context, event WithdrawalEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return err
	}

	msg := amqp091.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp091.Persistent,
		MessageId:    event.EventID,
		Timestamp:    event.OccurredAt,
		Body:         body,
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	err = p.channel.PublishWithContext(ctx, Exchange, event.Type, false, false, msg)
	if err == nil {
		return nil
	}

	log.Printf("level=warn component=rabbitmq_producer msg=\"publish failed; reopening channel\" routing_key=%s err=%v", event.Type, err)
	ch, chErr := p.conn.Channel()
	if chErr != nil {
		return err
	}
	p.channel = ch
	return p.channel.PublishWithContext(ctx, Exchange, event.Type, false, false, msg)
}

// Close gracefully closes the channel and connection to RabbitMQ
func (p *Producer) Close() {
	if p.channel != nil {
		p.channel.Close()
	}
	if p.conn != nil {
		p.conn.Close()
	}
}
