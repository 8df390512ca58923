package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/IANDYI/trends-service/internal/core/ports"
	"github.com/google/uuid"
	"github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
)

// EventTypeHistoryUpdated marks events announcing a parameter history change
const EventTypeHistoryUpdated = "parameter_history_updated"

// RabbitMQPublisher implements HistoryEventPublisher for publishing events to RabbitMQ
// Includes retry logic and circuit breaker for resilience
type RabbitMQPublisher struct {
	conn          *amqp091.Connection
	channel       *amqp091.Channel
	queueName     string
	cb            *gobreaker.CircuitBreaker
	maxRetries    int
	retryDelay    time.Duration
	connMutex     sync.RWMutex
	reconnectCh   chan bool
	stopReconnect chan bool
	logger        logrus.FieldLogger
}

// HistoryUpdatedEvent represents an event published to RabbitMQ after
// parameter changes are stored
type HistoryUpdatedEvent struct {
	EventID    uuid.UUID `json:"event_id"`
	EventType  string    `json:"event_type"`
	PatientID  uuid.UUID `json:"patient_id"`
	ChangeDate string    `json:"change_date"`
	Timestamp  time.Time `json:"timestamp"`
}

// NewHistoryUpdatedEvent builds the event announcing a stored change group
func NewHistoryUpdatedEvent(patientID uuid.UUID, changeDate string) HistoryUpdatedEvent {
	return HistoryUpdatedEvent{
		EventID:    uuid.New(),
		EventType:  EventTypeHistoryUpdated,
		PatientID:  patientID,
		ChangeDate: changeDate,
		Timestamp:  time.Now().UTC(),
	}
}

// NewRabbitMQPublisher creates a new RabbitMQ publisher with circuit breaker
func NewRabbitMQPublisher(rabbitMQURL string, queueName string, settings ResilienceSettings, logger logrus.FieldLogger) (*RabbitMQPublisher, error) {
	if queueName == "" {
		queueName = "parameter_history_events"
	}

	publisher := &RabbitMQPublisher{
		queueName:     queueName,
		maxRetries:    settings.MaxRetries,
		retryDelay:    settings.RetryDelay,
		reconnectCh:   make(chan bool, 1),
		stopReconnect: make(chan bool),
		logger:        logger.WithField("queue", queueName),
	}
	if publisher.maxRetries < 1 {
		publisher.maxRetries = 1
	}

	publisher.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "rabbitmq",
		MaxRequests: settings.MaxRequests,
		Interval:    settings.Interval,
		Timeout:     settings.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > settings.ConsecutiveFailures
		},
	})

	if err := publisher.connect(rabbitMQURL); err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	go publisher.handleReconnection(rabbitMQURL)

	return publisher, nil
}

// connect establishes connection to RabbitMQ
func (p *RabbitMQPublisher) connect(rabbitMQURL string) error {
	conn, channel, err := dialQueue(rabbitMQURL, p.queueName, p.maxRetries, p.retryDelay, p.logger)
	if err != nil {
		return err
	}

	p.connMutex.Lock()
	p.conn = conn
	p.channel = channel
	p.connMutex.Unlock()

	p.logger.Info("Publisher connected to RabbitMQ")
	return nil
}

// handleReconnection handles automatic reconnection to RabbitMQ
func (p *RabbitMQPublisher) handleReconnection(rabbitMQURL string) {
	for {
		select {
		case <-p.reconnectCh:
			p.logger.Info("Attempting to reconnect to RabbitMQ")
			p.connMutex.Lock()
			if p.channel != nil {
				p.channel.Close()
			}
			if p.conn != nil {
				p.conn.Close()
			}
			p.connMutex.Unlock()

			if err := p.connect(rabbitMQURL); err != nil {
				p.logger.WithError(err).Error("Reconnection failed")
			}
		case <-p.stopReconnect:
			return
		}
	}
}

// PublishHistoryUpdated publishes a history-updated event to RabbitMQ
func (p *RabbitMQPublisher) PublishHistoryUpdated(ctx context.Context, patientID uuid.UUID, changeDate string) error {
	event := NewHistoryUpdatedEvent(patientID, changeDate)
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal history updated event: %w", err)
	}

	_, err = p.cb.Execute(func() (interface{}, error) {
		return nil, p.publishWithRetry(ctx, event.EventID, body)
	})
	if err != nil {
		EventsPublishedTotal.WithLabelValues("error").Inc()
		return err
	}
	EventsPublishedTotal.WithLabelValues("success").Inc()
	return nil
}

// publishWithRetry publishes with retry logic
func (p *RabbitMQPublisher) publishWithRetry(ctx context.Context, eventID uuid.UUID, body []byte) error {
	var lastErr error
	for i := 0; i < p.maxRetries; i++ {
		p.connMutex.RLock()
		ch := p.channel
		conn := p.conn
		p.connMutex.RUnlock()

		if ch == nil || conn == nil || conn.IsClosed() {
			p.triggerReconnect()
			lastErr = fmt.Errorf("RabbitMQ connection is closed")
			if err := p.wait(ctx); err != nil {
				return err
			}
			continue
		}

		err := ch.PublishWithContext(
			ctx,
			"",          // exchange
			p.queueName, // routing key
			false,       // mandatory
			false,       // immediate
			amqp091.Publishing{
				ContentType:  "application/json",
				MessageId:    eventID.String(),
				Type:         EventTypeHistoryUpdated,
				Body:         body,
				DeliveryMode: amqp091.Persistent,
				Timestamp:    time.Now(),
			},
		)
		if err == nil {
			return nil
		}

		lastErr = err
		p.logger.WithError(err).WithFields(logrus.Fields{
			"attempt":      i + 1,
			"max_attempts": p.maxRetries,
		}).Warn("Failed to publish history updated event")

		if i < p.maxRetries-1 {
			p.triggerReconnect()
			if err := p.wait(ctx); err != nil {
				return err
			}
		}
	}

	return fmt.Errorf("failed to publish event after %d retries: %w", p.maxRetries, lastErr)
}

func (p *RabbitMQPublisher) triggerReconnect() {
	select {
	case p.reconnectCh <- true:
	default:
	}
}

func (p *RabbitMQPublisher) wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(p.retryDelay):
		return nil
	}
}

// Close closes the RabbitMQ connection
func (p *RabbitMQPublisher) Close() error {
	close(p.stopReconnect)
	p.connMutex.Lock()
	defer p.connMutex.Unlock()

	if p.channel != nil {
		p.channel.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

// dialQueue dials RabbitMQ with retries, opens a channel and declares a durable queue
func dialQueue(rabbitMQURL, queueName string, maxRetries int, retryDelay time.Duration, logger logrus.FieldLogger) (*amqp091.Connection, *amqp091.Channel, error) {
	var conn *amqp091.Connection
	var err error
	for i := 0; i < maxRetries; i++ {
		conn, err = amqp091.Dial(rabbitMQURL)
		if err == nil {
			break
		}
		logger.WithError(err).WithFields(logrus.Fields{
			"attempt":      i + 1,
			"max_attempts": maxRetries,
		}).Warn("Failed to connect to RabbitMQ")
		if i < maxRetries-1 {
			time.Sleep(retryDelay)
		}
	}
	if err != nil {
		return nil, nil, err
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, nil, err
	}

	_, err = channel.QueueDeclare(
		queueName, // name
		true,      // durable
		false,     // delete when unused
		false,     // exclusive
		false,     // no-wait
		nil,       // arguments
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, nil, err
	}

	return conn, channel, nil
}

// Ensure RabbitMQPublisher implements the interface
var _ ports.HistoryEventPublisher = (*RabbitMQPublisher)(nil)
