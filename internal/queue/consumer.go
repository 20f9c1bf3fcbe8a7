package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

type RabbitMQConsumer struct {
	client   *RabbitMQ
	prefetch int
	logger   *zap.Logger
}

// NewRabbitMQConsumer builds a manual-ack consumer. Campaign dispatch relies on
// prefetch 1 so that a single job is in flight at a time.
func NewRabbitMQConsumer(client *RabbitMQ, prefetch int, logger *zap.Logger) *RabbitMQConsumer {
	if prefetch < 1 {
		prefetch = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &RabbitMQConsumer{
		client:   client,
		prefetch: prefetch,
		logger:   logger,
	}
}

// Consume delivers jobs to handler until ctx is canceled, reconnecting with
// backoff when the delivery channel drops.
func (c *RabbitMQConsumer) Consume(ctx context.Context, queue string, handler JobHandler) error {
	if c == nil || c.client == nil {
		return fmt.Errorf("consumer is not initialized")
	}
	if queue == "" {
		return fmt.Errorf("queue name is required")
	}
	if handler == nil {
		return fmt.Errorf("job handler is required")
	}

	backoff := reconnectBackoff
	for {
		err := c.consumeOnce(ctx, queue, handler)
		if ctx.Err() != nil {
			return nil
		}
		if err == nil {
			backoff = reconnectBackoff
			continue
		}

		c.logger.Warn("consumer loop interrupted, reconnecting",
			zap.String("queue", queue),
			zap.Duration("backoff", backoff),
			zap.Error(err),
		)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(backoff):
		}

		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

func (c *RabbitMQConsumer) consumeOnce(ctx context.Context, queue string, handler JobHandler) error {
	ch, err := c.client.channel(ctx)
	if err != nil {
		return err
	}
	defer ch.Close() //nolint:errcheck // best-effort channel close

	if err := ch.Qos(c.prefetch, 0, false); err != nil {
		return fmt.Errorf("failed to set qos: %w", err)
	}

	deliveries, err := ch.Consume(
		queue,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to consume queue %q: %w", queue, err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("delivery channel closed")
			}

			if err := c.handleDelivery(ctx, d, handler); err != nil {
				return err
			}
		}
	}
}

// handleDelivery acks a job only after the handler returns nil. Schema
// violations, handler errors and handler panics are rejected without requeue
// so the broker dead-letters them. A handler that fails because ctx was
// canceled is nacked with requeue, leaving the job for the next consumer.
func (c *RabbitMQConsumer) handleDelivery(ctx context.Context, d amqp.Delivery, handler JobHandler) error {
	job, err := DecodeDispatchJob(d.Body)
	if err != nil {
		c.logger.Warn("rejecting delivery: schema violation",
			zap.Error(err),
			zap.String("routingKey", d.RoutingKey),
			zap.String("deliveryMessageId", d.MessageId),
		)
		if rejectErr := d.Reject(false); rejectErr != nil {
			return fmt.Errorf("failed to reject invalid delivery: %w", rejectErr)
		}
		return nil
	}

	if err := invokeHandler(ctx, handler, job); err != nil {
		if ctx.Err() != nil {
			c.logger.Warn("requeueing delivery: consumer stopping",
				zap.Error(err),
				zap.String("messageId", job.MessageID),
				zap.String("campaignId", job.CampaignID),
			)
			if nackErr := d.Nack(false, true); nackErr != nil {
				return fmt.Errorf("failed to requeue delivery: %w", nackErr)
			}
			return nil
		}

		c.logger.Error("rejecting delivery: handler failed",
			zap.Error(err),
			zap.String("messageId", job.MessageID),
			zap.String("campaignId", job.CampaignID),
		)
		if rejectErr := d.Reject(false); rejectErr != nil {
			return fmt.Errorf("handler failed and reject failed: %w", rejectErr)
		}
		return nil
	}

	if err := d.Ack(false); err != nil {
		return fmt.Errorf("failed to ack delivery: %w", err)
	}

	return nil
}

var errHandlerPanic = errors.New("job handler panicked")

func invokeHandler(ctx context.Context, handler JobHandler, job DispatchJob) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", errHandlerPanic, r)
		}
	}()

	return handler(ctx, job)
}

func (c *RabbitMQConsumer) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}
