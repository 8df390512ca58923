package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/IANDYI/trends-service/internal/core/domain"
	"github.com/IANDYI/trends-service/internal/core/ports"
	"github.com/google/uuid"
	"github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

// Ingestion message kinds
const (
	MessageKindParameterChanges = "parameter_changes"
	MessageKindCbg              = "cbg"
)

// IngestMessage represents a message from RabbitMQ carrying device data.
// Parameter change messages carry change_date and parameters; cbg messages
// carry readings.
type IngestMessage struct {
	Kind       string               `json:"kind"`
	PatientID  string               `json:"patient_id"`
	ChangeDate string               `json:"change_date,omitempty"`
	Parameters []domain.Parameter   `json:"parameters,omitempty"`
	Readings   []ports.ReadingInput `json:"readings,omitempty"`
}

// errMalformedMessage marks payloads that can never be processed
var errMalformedMessage = errors.New("malformed ingest message")

// IngestConsumer consumes device data messages from RabbitMQ
// Runs in background as a goroutine; QoS 1 with manual acknowledgement
type IngestConsumer struct {
	conn            *amqp091.Connection
	channel         *amqp091.Channel
	queueName       string
	historyService  ports.ParameterHistoryService
	readingsService ports.ReadingsService
	connMutex       sync.RWMutex
	reconnectCh     chan bool
	stopReconnect   chan bool
	maxRetries      int
	retryDelay      time.Duration
	consumingCtx    context.Context
	consumingMutex  sync.Mutex
	isConsuming     bool
	logger          logrus.FieldLogger
}

// NewIngestConsumer creates a consumer without connecting it
func NewIngestConsumer(
	queueName string,
	historyService ports.ParameterHistoryService,
	readingsService ports.ReadingsService,
	logger logrus.FieldLogger,
) *IngestConsumer {
	if queueName == "" {
		queueName = "device_data_ingest"
	}

	return &IngestConsumer{
		queueName:       queueName,
		historyService:  historyService,
		readingsService: readingsService,
		maxRetries:      3,
		retryDelay:      1 * time.Second,
		reconnectCh:     make(chan bool, 1),
		stopReconnect:   make(chan bool),
		logger:          logger.WithField("queue", queueName),
	}
}

// Connect dials RabbitMQ and starts the reconnection handler
func (c *IngestConsumer) Connect(rabbitMQURL string) error {
	if err := c.connect(rabbitMQURL); err != nil {
		return fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	go c.handleReconnection(rabbitMQURL)
	return nil
}

func (c *IngestConsumer) connect(rabbitMQURL string) error {
	conn, channel, err := dialQueue(rabbitMQURL, c.queueName, c.maxRetries, c.retryDelay, c.logger)
	if err != nil {
		return err
	}

	c.connMutex.Lock()
	c.conn = conn
	c.channel = channel
	c.connMutex.Unlock()

	c.logger.Info("Ingest consumer connected to RabbitMQ")
	return nil
}

// handleReconnection handles automatic reconnection to RabbitMQ
func (c *IngestConsumer) handleReconnection(rabbitMQURL string) {
	for {
		select {
		case <-c.reconnectCh:
			c.logger.Info("Attempting to reconnect to RabbitMQ")
			c.connMutex.Lock()
			if c.channel != nil && !c.channel.IsClosed() {
				c.channel.Close()
			}
			if c.conn != nil && !c.conn.IsClosed() {
				c.conn.Close()
			}
			c.connMutex.Unlock()

			if err := c.connect(rabbitMQURL); err != nil {
				c.logger.WithError(err).Error("Reconnection failed")
				select {
				case <-time.After(5 * time.Second):
					c.requestReconnect()
				case <-c.stopReconnect:
					return
				}
				continue
			}

			c.consumingMutex.Lock()
			ctx := c.consumingCtx
			restart := ctx != nil && ctx.Err() == nil && !c.isConsuming
			c.consumingMutex.Unlock()
			if restart {
				if err := c.StartConsuming(ctx); err != nil {
					c.logger.WithError(err).Error("Failed to restart consuming")
				}
			}
		case <-c.stopReconnect:
			return
		}
	}
}

func (c *IngestConsumer) requestReconnect() {
	select {
	case c.reconnectCh <- true:
	default:
	}
}

// StartConsuming starts consuming messages from the queue in a background goroutine
func (c *IngestConsumer) StartConsuming(ctx context.Context) error {
	c.consumingMutex.Lock()
	if c.isConsuming {
		c.consumingMutex.Unlock()
		c.logger.Info("Ingest consumer is already running, skipping duplicate start")
		return nil
	}
	c.isConsuming = true
	c.consumingCtx = ctx
	c.consumingMutex.Unlock()

	stopped := func() {
		c.consumingMutex.Lock()
		c.isConsuming = false
		c.consumingMutex.Unlock()
	}

	c.connMutex.RLock()
	channel := c.channel
	conn := c.conn
	c.connMutex.RUnlock()

	if channel == nil || channel.IsClosed() || conn == nil || conn.IsClosed() {
		stopped()
		return fmt.Errorf("RabbitMQ connection is closed")
	}

	if err := channel.Qos(
		1,     // prefetch count
		0,     // prefetch size
		false, // global
	); err != nil {
		stopped()
		return fmt.Errorf("failed to set QoS: %w", err)
	}

	consumerTag := fmt.Sprintf("ingest-consumer-%s", uuid.NewString())
	msgs, err := channel.Consume(
		c.queueName, // queue
		consumerTag, // consumer tag
		false,       // auto-ack
		false,       // exclusive
		false,       // no-local
		false,       // no-wait
		nil,         // args
	)
	if err != nil {
		stopped()
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	c.logger.WithField("consumer_tag", consumerTag).Info("Ingest consumer started")

	go func() {
		defer stopped()

		for {
			select {
			case <-ctx.Done():
				c.logger.Info("Ingest consumer context cancelled")
				return
			case msg, ok := <-msgs:
				if !ok {
					c.logger.Warn("Ingest consumer channel closed, attempting reconnection")
					c.requestReconnect()
					return
				}
				c.processMessage(ctx, msg)
			}
		}
	}()

	return nil
}

// processMessage handles one delivery. Malformed or invalid payloads are
// rejected without requeue; service failures are requeued.
func (c *IngestConsumer) processMessage(ctx context.Context, msg amqp091.Delivery) {
	start := time.Now()

	var message IngestMessage
	kind := "unknown"
	err := json.Unmarshal(msg.Body, &message)
	if err != nil {
		err = fmt.Errorf("%w: %v", errMalformedMessage, err)
	} else {
		kind = message.Kind
		err = c.dispatch(ctx, message)
	}

	logger := c.logger.WithFields(logrus.Fields{
		"kind":         kind,
		"patient_id":   message.PatientID,
		"delivery_tag": msg.DeliveryTag,
	})

	status := "success"
	switch {
	case err == nil:
		if ackErr := msg.Ack(false); ackErr != nil {
			logger.WithError(ackErr).Error("Failed to acknowledge message")
		}
	case isPermanent(err):
		status = "rejected"
		logger.WithError(err).Warn("Rejecting ingest message")
		if nackErr := msg.Nack(false, false); nackErr != nil {
			logger.WithError(nackErr).Error("Failed to reject message")
		}
	default:
		status = "requeued"
		logger.WithError(err).Error("Ingest failed, requeueing message")
		if nackErr := msg.Nack(false, true); nackErr != nil {
			logger.WithError(nackErr).Error("Failed to requeue message")
		}
	}

	MessagesConsumedTotal.WithLabelValues(kind, status).Inc()
	RabbitMQConsumeDuration.WithLabelValues(status).Observe(time.Since(start).Seconds())
}

func (c *IngestConsumer) dispatch(ctx context.Context, message IngestMessage) error {
	patientID, err := uuid.Parse(message.PatientID)
	if err != nil {
		return fmt.Errorf("%w: patient_id is not a valid UUID", errMalformedMessage)
	}

	switch message.Kind {
	case MessageKindParameterChanges:
		return c.historyService.IngestChanges(ctx, patientID, domain.ChangeDateParameterGroup{
			ChangeDate: message.ChangeDate,
			Parameters: message.Parameters,
		})
	case MessageKindCbg:
		_, err := c.readingsService.IngestReadings(ctx, patientID, message.Readings)
		return err
	default:
		return fmt.Errorf("%w: unknown kind %q", errMalformedMessage, message.Kind)
	}
}

// isPermanent reports whether redelivering the message could never succeed
func isPermanent(err error) bool {
	return errors.Is(err, errMalformedMessage) ||
		errors.Is(err, domain.ErrInvalidParameter) ||
		errors.Is(err, domain.ErrInvalidReading) ||
		errors.Is(err, domain.ErrPatientNotFound)
}

// Close closes the RabbitMQ connection and stops consuming
func (c *IngestConsumer) Close() error {
	close(c.stopReconnect)

	c.consumingMutex.Lock()
	c.isConsuming = false
	c.consumingMutex.Unlock()

	c.connMutex.Lock()
	defer c.connMutex.Unlock()

	if c.channel != nil && !c.channel.IsClosed() {
		if err := c.channel.Close(); err != nil {
			c.logger.WithError(err).Warn("Error closing RabbitMQ channel")
		}
	}
	if c.conn != nil && !c.conn.IsClosed() {
		if err := c.conn.Close(); err != nil {
			c.logger.WithError(err).Warn("Error closing RabbitMQ connection")
		}
	}

	c.logger.Info("Ingest consumer closed")
	return nil
}
