package queue

import (
	"context"
	"fmt"
)

// DefaultDispatchQueue is the durable work queue for campaign messages.
const DefaultDispatchQueue = "campaign.dispatch"

// Publisher publishes dispatch jobs to a queue.
type Publisher interface {
	Publish(ctx context.Context, queue string, job DispatchJob) error
	Close() error
}

// JobHandler handles a consumed dispatch job.
type JobHandler func(ctx context.Context, job DispatchJob) error

// Consumer consumes dispatch jobs from a queue.
type Consumer interface {
	Consume(ctx context.Context, queue string, handler JobHandler) error
	Close() error
}

// DLQName returns the dead-letter queue name for a work queue, e.g. dlq.campaign.dispatch.
func DLQName(queue string) string {
	return fmt.Sprintf("dlq.%s", queue)
}
