package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kursadbilgin/campaign-dispatch/internal/activity"
	"github.com/kursadbilgin/campaign-dispatch/internal/domain"
	"github.com/kursadbilgin/campaign-dispatch/internal/observability"
	"github.com/kursadbilgin/campaign-dispatch/internal/provider"
	"github.com/kursadbilgin/campaign-dispatch/internal/queue"
	"github.com/kursadbilgin/campaign-dispatch/internal/ratelimit"
	"go.uber.org/zap"
)

// MessageReader loads a message for the pre-send status check.
type MessageReader interface {
	GetMessage(ctx context.Context, id string) (*domain.Message, error)
}

// StatusUpdater records the terminal status of a message.
type StatusUpdater interface {
	UpdateMessageStatus(ctx context.Context, messageID string, status domain.MessageStatus, errText string) error
}

// DispatchService is the single serialized consumer of the dispatch queue.
// Every provider call goes through one throttle, so calls are spaced across
// all campaigns.
type DispatchService struct {
	messages  MessageReader
	statuses  StatusUpdater
	consumer  queue.Consumer
	queueName string
	provider  provider.Provider
	throttle  ratelimit.Throttle
	recorder  activity.Recorder
	logger    *zap.Logger
	metrics   *observability.Metrics
	now       func() time.Time
}

func NewDispatchService(
	messages MessageReader,
	statuses StatusUpdater,
	consumer queue.Consumer,
	queueName string,
	sender provider.Provider,
	throttle ratelimit.Throttle,
	recorder activity.Recorder,
	logger *zap.Logger,
) (*DispatchService, error) {
	if messages == nil || statuses == nil {
		return nil, fmt.Errorf("message store is required")
	}
	if sender == nil {
		return nil, fmt.Errorf("provider is required")
	}
	if throttle == nil {
		return nil, fmt.Errorf("throttle is required")
	}
	if recorder == nil {
		return nil, fmt.Errorf("activity recorder is required")
	}
	if strings.TrimSpace(queueName) == "" {
		queueName = queue.DefaultDispatchQueue
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &DispatchService{
		messages:  messages,
		statuses:  statuses,
		consumer:  consumer,
		queueName: queueName,
		provider:  sender,
		throttle:  throttle,
		recorder:  recorder,
		logger:    logger,
		now:       time.Now,
	}, nil
}

func (s *DispatchService) SetMetrics(metrics *observability.Metrics) {
	if s == nil {
		return
	}
	s.metrics = metrics
}

// Start consumes the dispatch queue until ctx is canceled.
func (s *DispatchService) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if s.consumer == nil {
		return fmt.Errorf("consumer is required")
	}

	s.logger.Info("dispatch consumer started", zap.String("queue", s.queueName))

	if err := s.consumer.Consume(ctx, s.queueName, s.processJob); err != nil {
		s.logger.Error("dispatch consumer stopped with error",
			zap.String("queue", s.queueName),
			zap.Error(err),
		)
		return err
	}

	s.logger.Info("dispatch consumer stopped", zap.String("queue", s.queueName))
	return nil
}

// processJob returns an error only when the job could not reach the provider
// call (store read failure or interrupted throttle wait). Provider failures
// and post-send reconciliation faults are handled here and never returned.
func (s *DispatchService) processJob(ctx context.Context, job queue.DispatchJob) error {
	ctx = observability.WithCorrelationID(ctx, job.MessageID)
	ctx = observability.WithLogFields(ctx,
		zap.String("campaignId", job.CampaignID),
		zap.Int64("leadId", job.LeadID),
	)
	logger := observability.WithContextLogger(s.logger, ctx)

	msg, err := s.messages.GetMessage(ctx, job.MessageID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			logger.Warn("message not found, skipping job")
			return nil
		}
		return fmt.Errorf("failed to load message: %w", err)
	}
	if msg.Status != domain.MessageStatusPending {
		logger.Info("message already processed, skipping job", zap.String("status", msg.Status.String()))
		return nil
	}

	waitStart := s.now()
	if err := s.throttle.Wait(ctx); err != nil {
		return fmt.Errorf("throttle wait interrupted: %w", err)
	}
	s.metrics.ObserveThrottleWait(s.now().Sub(waitStart))

	sendStart := s.now()
	result, sendErr := s.provider.Send(ctx, provider.SendRequest{
		Destination:  job.Payload.Destination,
		TemplateName: job.Payload.TemplateName,
		Parameters:   job.Payload.Parameters,
	})
	s.metrics.ObserveProviderSendDuration(s.now().Sub(sendStart))

	if sendErr != nil {
		s.reconcileFailed(ctx, logger, job, sendStart, sendErr)
		return nil
	}

	s.reconcileSent(ctx, logger, job, sendStart, result)
	return nil
}

func (s *DispatchService) reconcileSent(
	ctx context.Context,
	logger *zap.Logger,
	job queue.DispatchJob,
	contactedAt time.Time,
	result *provider.SendResult,
) {
	providerMessageID := ""
	if result != nil {
		providerMessageID = result.MessageID
	}
	logger.Info("message sent", zap.String("providerMessageId", providerMessageID))
	s.metrics.IncMessageSent()

	if err := s.statuses.UpdateMessageStatus(ctx, job.MessageID, domain.MessageStatusSent, ""); err != nil {
		s.metrics.IncReconcileFailure("status_update")
		logger.Error("failed to mark sent message", observability.Alert(), zap.Error(err))
	}

	s.record(ctx, logger, job, domain.ActivityOutcomeSent, contactedAt, activity.SentNotes(job.CampaignName))
}

func (s *DispatchService) reconcileFailed(
	ctx context.Context,
	logger *zap.Logger,
	job queue.DispatchJob,
	contactedAt time.Time,
	sendErr error,
) {
	errText := sendErr.Error()
	reason := "permanent"
	if provider.IsTransient(sendErr) {
		reason = "transient"
	}
	logger.Warn("message send failed", zap.String("reason", reason), zap.Error(sendErr))
	s.metrics.IncMessageFailed(reason)

	if err := s.statuses.UpdateMessageStatus(ctx, job.MessageID, domain.MessageStatusFailed, errText); err != nil {
		s.metrics.IncReconcileFailure("status_update")
		logger.Error("failed to mark failed message", observability.Alert(), zap.Error(err))
	}

	s.record(ctx, logger, job, domain.ActivityOutcomeFailed, contactedAt, activity.FailedNotes(job.CampaignName, errText))
}

func (s *DispatchService) record(
	ctx context.Context,
	logger *zap.Logger,
	job queue.DispatchJob,
	outcome domain.ActivityOutcome,
	contactedAt time.Time,
	notes string,
) {
	err := s.recorder.Record(ctx, activity.Entry{
		LeadID:      job.LeadID,
		Kind:        domain.ActivityKindAutomaticOutbound,
		Outcome:     outcome,
		ContactedAt: contactedAt.UTC(),
		Notes:       notes,
		CampaignID:  job.CampaignID,
		MessageID:   job.MessageID,
	})
	if err != nil {
		s.metrics.IncReconcileFailure("activity")
		logger.Error("failed to record activity", observability.Alert(), zap.Error(err))
	}
}
