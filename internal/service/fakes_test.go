package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/kursadbilgin/campaign-dispatch/internal/activity"
	"github.com/kursadbilgin/campaign-dispatch/internal/domain"
	"github.com/kursadbilgin/campaign-dispatch/internal/provider"
	"github.com/kursadbilgin/campaign-dispatch/internal/queue"
	"github.com/kursadbilgin/campaign-dispatch/internal/repository"
)

// memoryCampaignRepo mirrors the storage rules of GormCampaignRepo: the
// campaign and its messages are committed together, (campaign, lead)
// duplicates are skipped, and only PENDING messages can change status.
type memoryCampaignRepo struct {
	mu        sync.Mutex
	campaigns map[string]domain.Campaign
	messages  []domain.Message

	createErr     error
	getMessageErr error
	createCalls   int
}

func newMemoryCampaignRepo() *memoryCampaignRepo {
	return &memoryCampaignRepo{campaigns: map[string]domain.Campaign{}}
}

func (r *memoryCampaignRepo) CreateWithMessages(ctx context.Context, c *domain.Campaign, messages []*domain.Message) ([]domain.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.createCalls++
	if r.createErr != nil {
		return nil, r.createErr
	}
	if _, ok := r.campaigns[c.ID]; ok {
		return nil, fmt.Errorf("%w: campaign %s exists", domain.ErrConflict, c.ID)
	}

	seen := map[int64]struct{}{}
	for _, m := range r.messages {
		if m.CampaignID == c.ID {
			seen[m.LeadID] = struct{}{}
		}
	}

	persisted := make([]domain.Message, 0, len(messages))
	for _, m := range messages {
		if _, dup := seen[m.LeadID]; dup {
			continue
		}
		seen[m.LeadID] = struct{}{}
		copied := *m
		copied.CampaignID = c.ID
		persisted = append(persisted, copied)
	}

	r.campaigns[c.ID] = *c
	r.messages = append(r.messages, persisted...)
	return persisted, nil
}

func (r *memoryCampaignRepo) GetByID(ctx context.Context, id string) (*domain.Campaign, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.campaigns[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &c, nil
}

func (r *memoryCampaignRepo) GetMessage(ctx context.Context, id string) (*domain.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.getMessageErr != nil {
		return nil, r.getMessageErr
	}
	for i := range r.messages {
		if r.messages[i].ID == id {
			m := r.messages[i]
			return &m, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *memoryCampaignRepo) ListMessagesByStatus(ctx context.Context, campaignID string, status domain.MessageStatus) ([]domain.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []domain.Message
	for _, m := range r.messages {
		if m.CampaignID == campaignID && m.Status == status {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r *memoryCampaignRepo) UpdateMessageStatus(ctx context.Context, id string, status domain.MessageStatus, errText *string, sentAt *time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.messages {
		if r.messages[i].ID != id {
			continue
		}
		if r.messages[i].Status != domain.MessageStatusPending {
			return fmt.Errorf("%w: message %s is already terminal", domain.ErrConflict, id)
		}
		r.messages[i].Status = status
		r.messages[i].Error = errText
		r.messages[i].SentAt = sentAt
		return nil
	}
	return domain.ErrNotFound
}

func (r *memoryCampaignRepo) GetStatusSummary(ctx context.Context, campaignID string) ([]repository.StatusCount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	counts := map[domain.MessageStatus]int{}
	for _, m := range r.messages {
		if m.CampaignID == campaignID {
			counts[m.Status]++
		}
	}

	var out []repository.StatusCount
	for _, st := range []domain.MessageStatus{domain.MessageStatusPending, domain.MessageStatusSent, domain.MessageStatusFailed} {
		if counts[st] > 0 {
			out = append(out, repository.StatusCount{Status: st, Count: counts[st]})
		}
	}
	return out, nil
}

func (r *memoryCampaignRepo) message(id string) domain.Message {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, m := range r.messages {
		if m.ID == id {
			return m
		}
	}
	return domain.Message{}
}

func (r *memoryCampaignRepo) seed(c domain.Campaign, messages ...domain.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.campaigns[c.ID] = c
	r.messages = append(r.messages, messages...)
}

type fakePublisher struct {
	mu        sync.Mutex
	publishFn func(ctx context.Context, queueName string, job queue.DispatchJob) error
	queues    []string
	jobs      []queue.DispatchJob
}

func (f *fakePublisher) Publish(ctx context.Context, queueName string, job queue.DispatchJob) error {
	if f.publishFn != nil {
		if err := f.publishFn(ctx, queueName, job); err != nil {
			return err
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.queues = append(f.queues, queueName)
	f.jobs = append(f.jobs, job)
	return nil
}

func (f *fakePublisher) Close() error {
	return nil
}

type fakeLocker struct {
	acquireFn func(ctx context.Context, campaignID string) error
	acquired  []string
	released  int
}

func (f *fakeLocker) Acquire(ctx context.Context, campaignID string) (func(context.Context) error, error) {
	if f.acquireFn != nil {
		if err := f.acquireFn(ctx, campaignID); err != nil {
			return nil, err
		}
	}
	f.acquired = append(f.acquired, campaignID)
	return func(context.Context) error {
		f.released++
		return nil
	}, nil
}

type fakeConsumer struct {
	consumeFn func(ctx context.Context, queueName string, handler queue.JobHandler) error
}

func (f *fakeConsumer) Consume(ctx context.Context, queueName string, handler queue.JobHandler) error {
	if f.consumeFn != nil {
		return f.consumeFn(ctx, queueName, handler)
	}
	<-ctx.Done()
	return nil
}

func (f *fakeConsumer) Close() error {
	return nil
}

type fakeProvider struct {
	sendFn func(ctx context.Context, req provider.SendRequest) (*provider.SendResult, error)
	calls  []provider.SendRequest
}

func (f *fakeProvider) Send(ctx context.Context, req provider.SendRequest) (*provider.SendResult, error) {
	f.calls = append(f.calls, req)
	if f.sendFn != nil {
		return f.sendFn(ctx, req)
	}
	return &provider.SendResult{MessageID: "wamid.default", StatusCode: 200}, nil
}

type fakeThrottle struct {
	waitFn func(ctx context.Context) error
	waits  int
}

func (f *fakeThrottle) Wait(ctx context.Context) error {
	f.waits++
	if f.waitFn != nil {
		return f.waitFn(ctx)
	}
	return nil
}

type fakeRecorder struct {
	recordFn func(ctx context.Context, entry activity.Entry) error
	entries  []activity.Entry
}

func (f *fakeRecorder) Record(ctx context.Context, entry activity.Entry) error {
	if f.recordFn != nil {
		if err := f.recordFn(ctx, entry); err != nil {
			return err
		}
	}
	f.entries = append(f.entries, entry)
	return nil
}

type fakeStatusUpdater struct {
	updateFn func(ctx context.Context, messageID string, status domain.MessageStatus, errText string) error
}

func (f *fakeStatusUpdater) UpdateMessageStatus(ctx context.Context, messageID string, status domain.MessageStatus, errText string) error {
	return f.updateFn(ctx, messageID, status, errText)
}

func sequentialIDs(prefix string) func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("%s%d", prefix, n)
	}
}
