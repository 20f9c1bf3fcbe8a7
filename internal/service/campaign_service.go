package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kursadbilgin/campaign-dispatch/internal/domain"
	"github.com/kursadbilgin/campaign-dispatch/internal/observability"
	"github.com/kursadbilgin/campaign-dispatch/internal/queue"
	"github.com/kursadbilgin/campaign-dispatch/internal/repository"
	"go.uber.org/zap"
)

const maxMessagesPerCampaign = 10000

// ErrPartialPublish is returned when the campaign was committed but some of
// its jobs could not be handed to the broker. The affected messages stay
// PENDING and can be re-enqueued with ScheduleCampaign.
var ErrPartialPublish = errors.New("partial publish")

// ScheduleLocker serializes schedule runs per campaign.
type ScheduleLocker interface {
	Acquire(ctx context.Context, campaignID string) (func(context.Context) error, error)
}

type CampaignDraft struct {
	Name      string
	Type      domain.CampaignType
	SubListID string
}

type MessageDraft struct {
	LeadID         int64
	Destination    string
	TemplateName   string
	TemplateParams map[string]string
	DisplayText    string
}

type CreateCampaignResult struct {
	Campaign      domain.Campaign
	Persisted     []domain.Message
	Published     int
	PublishFailed []string
}

type ScheduleResult struct {
	CampaignID    string
	Pending       int
	Published     int
	PublishFailed []string
}

type StatusCount struct {
	Status domain.MessageStatus
	Count  int
}

type CampaignSummary struct {
	Campaign domain.Campaign
	Total    int
	Counts   []StatusCount
}

type CampaignService struct {
	campaigns repository.CampaignRepository
	publisher queue.Publisher
	queueName string
	locker    ScheduleLocker
	logger    *zap.Logger
	metrics   *observability.Metrics
	now       func() time.Time
	newID     func() string
}

func NewCampaignService(
	campaigns repository.CampaignRepository,
	publisher queue.Publisher,
	queueName string,
	logger *zap.Logger,
) (*CampaignService, error) {
	if campaigns == nil {
		return nil, fmt.Errorf("campaign repository is required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("publisher is required")
	}
	if strings.TrimSpace(queueName) == "" {
		queueName = queue.DefaultDispatchQueue
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &CampaignService{
		campaigns: campaigns,
		publisher: publisher,
		queueName: queueName,
		logger:    logger,
		now:       time.Now,
		newID:     uuid.NewString,
	}, nil
}

func (s *CampaignService) SetLocker(locker ScheduleLocker) {
	if s == nil {
		return
	}
	s.locker = locker
}

func (s *CampaignService) SetMetrics(metrics *observability.Metrics) {
	if s == nil {
		return
	}
	s.metrics = metrics
}

// CreateCampaign persists the campaign and its messages atomically, then
// enqueues one job per message that was actually inserted. Drafts that
// duplicate a lead already in the campaign are skipped.
func (s *CampaignService) CreateCampaign(
	ctx context.Context,
	draft CampaignDraft,
	drafts []MessageDraft,
) (*CreateCampaignResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	if len(drafts) == 0 {
		return nil, fmt.Errorf("%w: campaign must include at least one message", domain.ErrValidation)
	}
	if len(drafts) > maxMessagesPerCampaign {
		return nil, fmt.Errorf("%w: campaign size exceeds %d messages", domain.ErrValidation, maxMessagesPerCampaign)
	}

	now := s.now().UTC()
	campaign := &domain.Campaign{
		ID:        s.newID(),
		Name:      strings.TrimSpace(draft.Name),
		Type:      draft.Type,
		SubListID: strings.TrimSpace(draft.SubListID),
		CreatedAt: now,
	}
	if err := campaign.Validate(); err != nil {
		return nil, err
	}

	messages := make([]*domain.Message, 0, len(drafts))
	for i, d := range drafts {
		msg := &domain.Message{
			ID:             s.newID(),
			CampaignID:     campaign.ID,
			LeadID:         d.LeadID,
			Destination:    strings.TrimSpace(d.Destination),
			TemplateName:   strings.TrimSpace(d.TemplateName),
			TemplateParams: d.TemplateParams,
			DisplayText:    d.DisplayText,
			Status:         domain.MessageStatusPending,
			CreatedAt:      now,
		}
		if err := msg.Validate(); err != nil {
			return nil, fmt.Errorf("message %d: %w", i, err)
		}
		messages = append(messages, msg)
	}

	persisted, err := s.campaigns.CreateWithMessages(ctx, campaign, messages)
	if err != nil {
		return nil, fmt.Errorf("failed to create campaign: %w", err)
	}

	result := &CreateCampaignResult{
		Campaign:  *campaign,
		Persisted: persisted,
	}

	if skipped := len(messages) - len(persisted); skipped > 0 {
		s.logger.Info("duplicate message drafts skipped",
			zap.String("campaignId", campaign.ID),
			zap.Int("skipped", skipped),
		)
	}

	result.Published, result.PublishFailed = s.publishAll(ctx, campaign, persisted)
	if len(result.PublishFailed) > 0 {
		return result, fmt.Errorf("%w: %d/%d jobs not enqueued for campaign %s",
			ErrPartialPublish, len(result.PublishFailed), len(persisted), campaign.ID)
	}

	return result, nil
}

// ScheduleCampaign re-enqueues every PENDING message of an existing campaign.
// It does not detect jobs for those messages that are still in the queue; the
// consumer skips messages that are no longer PENDING when it reaches them.
func (s *CampaignService) ScheduleCampaign(ctx context.Context, campaignID string) (*ScheduleResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	id := strings.TrimSpace(campaignID)
	if id == "" {
		return nil, fmt.Errorf("%w: campaign id is required", domain.ErrValidation)
	}

	campaign, err := s.campaigns.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if s.locker != nil {
		release, err := s.locker.Acquire(ctx, campaign.ID)
		if err != nil {
			return nil, err
		}
		defer func() {
			if err := release(context.WithoutCancel(ctx)); err != nil {
				s.logger.Warn("failed to release schedule lock",
					zap.String("campaignId", campaign.ID),
					zap.Error(err),
				)
			}
		}()
	}

	pending, err := s.campaigns.ListMessagesByStatus(ctx, campaign.ID, domain.MessageStatusPending)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending messages: %w", err)
	}

	result := &ScheduleResult{
		CampaignID: campaign.ID,
		Pending:    len(pending),
	}
	result.Published, result.PublishFailed = s.publishAll(ctx, campaign, pending)

	s.logger.Info("campaign scheduled",
		zap.String("campaignId", campaign.ID),
		zap.Int("pending", result.Pending),
		zap.Int("published", result.Published),
	)

	if len(result.PublishFailed) > 0 {
		return result, fmt.Errorf("%w: %d/%d jobs not enqueued for campaign %s",
			ErrPartialPublish, len(result.PublishFailed), len(pending), campaign.ID)
	}

	return result, nil
}

// UpdateMessageStatus records the terminal outcome of a message. Only
// PENDING messages can move, and only to SENT or FAILED.
func (s *CampaignService) UpdateMessageStatus(
	ctx context.Context,
	messageID string,
	status domain.MessageStatus,
	errText string,
) error {
	id := strings.TrimSpace(messageID)
	if id == "" {
		return fmt.Errorf("%w: message id is required", domain.ErrValidation)
	}
	if !domain.MessageStatusPending.CanTransitionTo(status) {
		return fmt.Errorf("%w: status %q is not a terminal message status", domain.ErrValidation, status)
	}

	var sentAt *time.Time
	var errValue *string
	switch status {
	case domain.MessageStatusSent:
		now := s.now().UTC()
		sentAt = &now
	case domain.MessageStatusFailed:
		if text := strings.TrimSpace(errText); text != "" {
			errValue = &text
		}
	}

	return s.campaigns.UpdateMessageStatus(ctx, id, status, errValue, sentAt)
}

func (s *CampaignService) GetCampaignSummary(ctx context.Context, campaignID string) (*CampaignSummary, error) {
	id := strings.TrimSpace(campaignID)
	if id == "" {
		return nil, fmt.Errorf("%w: campaign id is required", domain.ErrValidation)
	}

	campaign, err := s.campaigns.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	statuses, err := s.campaigns.GetStatusSummary(ctx, campaign.ID)
	if err != nil {
		return nil, err
	}

	summary := &CampaignSummary{
		Campaign: *campaign,
		Counts:   make([]StatusCount, 0, len(statuses)),
	}
	for _, st := range statuses {
		summary.Counts = append(summary.Counts, StatusCount{Status: st.Status, Count: st.Count})
		summary.Total += st.Count
	}

	return summary, nil
}

func (s *CampaignService) publishAll(
	ctx context.Context,
	campaign *domain.Campaign,
	messages []domain.Message,
) (int, []string) {
	published := 0
	var failed []string

	for i := range messages {
		msg := &messages[i]
		job := newDispatchJob(campaign, msg)

		if err := s.publisher.Publish(ctx, s.queueName, job); err != nil {
			s.logger.Error("failed to publish dispatch job",
				zap.String("campaignId", campaign.ID),
				zap.String("messageId", msg.ID),
				zap.Error(err),
			)
			s.metrics.IncJobPublished(false)
			failed = append(failed, msg.ID)
			continue
		}

		s.metrics.IncJobPublished(true)
		published++
	}

	return published, failed
}

func newDispatchJob(campaign *domain.Campaign, msg *domain.Message) queue.DispatchJob {
	return queue.DispatchJob{
		MessageID:    msg.ID,
		CampaignID:   campaign.ID,
		CampaignName: campaign.Name,
		LeadID:       msg.LeadID,
		Payload: queue.SendPayload{
			Destination:  msg.Destination,
			TemplateName: msg.TemplateName,
			Parameters:   msg.TemplateParams,
		},
	}
}
