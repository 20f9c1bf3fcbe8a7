package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/kursadbilgin/campaign-dispatch/internal/domain"
	"github.com/kursadbilgin/campaign-dispatch/internal/queue"
	"go.uber.org/zap"
)

var testNow = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func newTestCampaignService(t *testing.T, repo *memoryCampaignRepo, publisher *fakePublisher) *CampaignService {
	t.Helper()

	svc, err := NewCampaignService(repo, publisher, "campaign.dispatch", zap.NewNop())
	if err != nil {
		t.Fatalf("NewCampaignService() error = %v", err)
	}
	svc.now = func() time.Time { return testNow }
	svc.newID = sequentialIDs("id-")
	return svc
}

func springDraft() CampaignDraft {
	return CampaignDraft{Name: "Spring Promo", Type: domain.CampaignTypeMarketing, SubListID: "sub-1"}
}

func messageDrafts(leadIDs ...int64) []MessageDraft {
	drafts := make([]MessageDraft, 0, len(leadIDs))
	for _, id := range leadIDs {
		drafts = append(drafts, MessageDraft{
			LeadID:         id,
			Destination:    fmt.Sprintf("+9055500000%02d", id),
			TemplateName:   "spring_promo",
			TemplateParams: map[string]string{"name": "Lead"},
		})
	}
	return drafts
}

func TestCreateCampaignPublishesPersistedMessagesInOrder(t *testing.T) {
	t.Parallel()

	repo := newMemoryCampaignRepo()
	publisher := &fakePublisher{}
	svc := newTestCampaignService(t, repo, publisher)

	result, err := svc.CreateCampaign(context.Background(), springDraft(), messageDrafts(1, 2, 3))
	if err != nil {
		t.Fatalf("CreateCampaign() error = %v", err)
	}

	if result.Campaign.ID != "id-1" || result.Campaign.Name != "Spring Promo" {
		t.Fatalf("campaign = %+v", result.Campaign)
	}
	if len(result.Persisted) != 3 || result.Published != 3 {
		t.Fatalf("persisted=%d published=%d, want 3/3", len(result.Persisted), result.Published)
	}

	if len(publisher.jobs) != 3 {
		t.Fatalf("published jobs = %d, want 3", len(publisher.jobs))
	}
	for i, job := range publisher.jobs {
		if publisher.queues[i] != "campaign.dispatch" {
			t.Fatalf("queue = %s, want campaign.dispatch", publisher.queues[i])
		}
		if job.MessageID != result.Persisted[i].ID {
			t.Fatalf("job[%d].MessageID = %s, want %s", i, job.MessageID, result.Persisted[i].ID)
		}
		if job.CampaignName != "Spring Promo" || job.CampaignID != "id-1" {
			t.Fatalf("job[%d] = %+v, want campaign fields", i, job)
		}
		if job.LeadID != int64(i+1) {
			t.Fatalf("job[%d].LeadID = %d, want %d", i, job.LeadID, i+1)
		}
		if err := job.Validate(); err != nil {
			t.Fatalf("job[%d] invalid: %v", i, err)
		}
	}

	for _, m := range result.Persisted {
		if m.Status != domain.MessageStatusPending {
			t.Fatalf("message %s status = %s, want PENDING", m.ID, m.Status)
		}
	}
}

func TestCreateCampaignSkipsDuplicateDrafts(t *testing.T) {
	t.Parallel()

	repo := newMemoryCampaignRepo()
	publisher := &fakePublisher{}
	svc := newTestCampaignService(t, repo, publisher)

	result, err := svc.CreateCampaign(context.Background(), springDraft(), messageDrafts(1, 2, 1))
	if err != nil {
		t.Fatalf("CreateCampaign() error = %v", err)
	}

	if len(result.Persisted) != 2 {
		t.Fatalf("persisted = %d, want 2", len(result.Persisted))
	}
	if len(publisher.jobs) != 2 {
		t.Fatalf("published = %d, want 2", len(publisher.jobs))
	}

	pending, _ := repo.ListMessagesByStatus(context.Background(), result.Campaign.ID, domain.MessageStatusPending)
	if len(pending) != 2 {
		t.Fatalf("stored messages = %d, want 2", len(pending))
	}
}

func TestCreateCampaignValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		draft  CampaignDraft
		drafts []MessageDraft
	}{
		{name: "no messages", draft: springDraft()},
		{name: "missing name", draft: CampaignDraft{Type: domain.CampaignTypeUtility, SubListID: "s"}, drafts: messageDrafts(1)},
		{name: "invalid type", draft: CampaignDraft{Name: "x", Type: "BROADCAST", SubListID: "s"}, drafts: messageDrafts(1)},
		{name: "invalid lead", draft: springDraft(), drafts: messageDrafts(0)},
		{name: "missing template", draft: springDraft(), drafts: []MessageDraft{{LeadID: 1, Destination: "+1"}}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			repo := newMemoryCampaignRepo()
			publisher := &fakePublisher{}
			svc := newTestCampaignService(t, repo, publisher)

			_, err := svc.CreateCampaign(context.Background(), tt.draft, tt.drafts)
			if !errors.Is(err, domain.ErrValidation) {
				t.Fatalf("CreateCampaign() error = %v, want ErrValidation", err)
			}
			if repo.createCalls != 0 || len(publisher.jobs) != 0 {
				t.Fatalf("createCalls=%d published=%d, want nothing", repo.createCalls, len(publisher.jobs))
			}
		})
	}
}

func TestCreateCampaignPublishFailureKeepsCommittedRows(t *testing.T) {
	t.Parallel()

	repo := newMemoryCampaignRepo()
	publisher := &fakePublisher{publishFn: func(ctx context.Context, queueName string, job queue.DispatchJob) error {
		return errors.New("broker unavailable")
	}}
	svc := newTestCampaignService(t, repo, publisher)

	result, err := svc.CreateCampaign(context.Background(), springDraft(), messageDrafts(1, 2, 3, 4, 5))
	if !errors.Is(err, ErrPartialPublish) {
		t.Fatalf("CreateCampaign() error = %v, want ErrPartialPublish", err)
	}
	if result == nil || len(result.PublishFailed) != 5 || result.Published != 0 {
		t.Fatalf("result = %+v, want 5 publish failures", result)
	}

	if _, err := repo.GetByID(context.Background(), result.Campaign.ID); err != nil {
		t.Fatalf("campaign row missing: %v", err)
	}
	pending, _ := repo.ListMessagesByStatus(context.Background(), result.Campaign.ID, domain.MessageStatusPending)
	if len(pending) != 5 {
		t.Fatalf("pending = %d, want 5", len(pending))
	}
}

func TestCreateCampaignStoreFailurePublishesNothing(t *testing.T) {
	t.Parallel()

	repo := newMemoryCampaignRepo()
	repo.createErr = errors.New("transaction aborted")
	publisher := &fakePublisher{}
	svc := newTestCampaignService(t, repo, publisher)

	if _, err := svc.CreateCampaign(context.Background(), springDraft(), messageDrafts(1, 2)); err == nil {
		t.Fatal("expected store error")
	}
	if len(publisher.jobs) != 0 {
		t.Fatalf("published = %d, want 0", len(publisher.jobs))
	}
}

func seedScheduleCampaign(repo *memoryCampaignRepo) {
	sentAt := testNow
	campaign := domain.Campaign{ID: "c1", Name: "Reminder", Type: domain.CampaignTypeReminder, SubListID: "s1", CreatedAt: testNow}
	messages := []domain.Message{
		{ID: "m1", CampaignID: "c1", LeadID: 1, Destination: "+1", TemplateName: "t", Status: domain.MessageStatusSent, SentAt: &sentAt},
		{ID: "m2", CampaignID: "c1", LeadID: 2, Destination: "+2", TemplateName: "t", Status: domain.MessageStatusPending},
		{ID: "m3", CampaignID: "c1", LeadID: 3, Destination: "+3", TemplateName: "t", Status: domain.MessageStatusSent, SentAt: &sentAt},
		{ID: "m4", CampaignID: "c1", LeadID: 4, Destination: "+4", TemplateName: "t", Status: domain.MessageStatusPending},
		{ID: "m5", CampaignID: "c1", LeadID: 5, Destination: "+5", TemplateName: "t", Status: domain.MessageStatusSent, SentAt: &sentAt},
	}
	repo.seed(campaign, messages...)
}

func TestScheduleCampaignPublishesOnlyPending(t *testing.T) {
	t.Parallel()

	repo := newMemoryCampaignRepo()
	seedScheduleCampaign(repo)
	publisher := &fakePublisher{}
	locker := &fakeLocker{}
	svc := newTestCampaignService(t, repo, publisher)
	svc.SetLocker(locker)

	result, err := svc.ScheduleCampaign(context.Background(), " c1 ")
	if err != nil {
		t.Fatalf("ScheduleCampaign() error = %v", err)
	}

	if result.Pending != 2 || result.Published != 2 {
		t.Fatalf("result = %+v, want 2 pending / 2 published", result)
	}
	if len(publisher.jobs) != 2 {
		t.Fatalf("published = %d, want 2", len(publisher.jobs))
	}
	if publisher.jobs[0].MessageID != "m2" || publisher.jobs[1].MessageID != "m4" {
		t.Fatalf("jobs = %s,%s want m2,m4", publisher.jobs[0].MessageID, publisher.jobs[1].MessageID)
	}
	if publisher.jobs[0].CampaignName != "Reminder" {
		t.Fatalf("CampaignName = %s, want Reminder", publisher.jobs[0].CampaignName)
	}
	if len(locker.acquired) != 1 || locker.released != 1 {
		t.Fatalf("lock acquired=%v released=%d, want one acquire and release", locker.acquired, locker.released)
	}
}

func TestScheduleCampaignErrors(t *testing.T) {
	t.Parallel()

	repo := newMemoryCampaignRepo()
	seedScheduleCampaign(repo)
	publisher := &fakePublisher{}
	svc := newTestCampaignService(t, repo, publisher)

	if _, err := svc.ScheduleCampaign(context.Background(), "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("ScheduleCampaign(missing) error = %v, want ErrNotFound", err)
	}
	if _, err := svc.ScheduleCampaign(context.Background(), ""); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("ScheduleCampaign(empty) error = %v, want ErrValidation", err)
	}

	svc.SetLocker(&fakeLocker{acquireFn: func(ctx context.Context, campaignID string) error {
		return domain.ErrConflict
	}})
	if _, err := svc.ScheduleCampaign(context.Background(), "c1"); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("ScheduleCampaign(locked) error = %v, want ErrConflict", err)
	}
	if len(publisher.jobs) != 0 {
		t.Fatalf("published = %d, want 0", len(publisher.jobs))
	}
}

func TestUpdateMessageStatus(t *testing.T) {
	t.Parallel()

	repo := newMemoryCampaignRepo()
	repo.seed(
		domain.Campaign{ID: "c1", Name: "n", Type: domain.CampaignTypeUtility, SubListID: "s"},
		domain.Message{ID: "m1", CampaignID: "c1", LeadID: 1, Status: domain.MessageStatusPending},
		domain.Message{ID: "m2", CampaignID: "c1", LeadID: 2, Status: domain.MessageStatusPending},
	)
	svc := newTestCampaignService(t, repo, &fakePublisher{})
	ctx := context.Background()

	if err := svc.UpdateMessageStatus(ctx, "m1", domain.MessageStatusSent, "ignored"); err != nil {
		t.Fatalf("UpdateMessageStatus(SENT) error = %v", err)
	}
	m1 := repo.message("m1")
	if m1.SentAt == nil || !m1.SentAt.Equal(testNow) || m1.Error != nil {
		t.Fatalf("m1 = %+v, want sentAt set and no error", m1)
	}

	if err := svc.UpdateMessageStatus(ctx, "m2", domain.MessageStatusFailed, "code=131000"); err != nil {
		t.Fatalf("UpdateMessageStatus(FAILED) error = %v", err)
	}
	m2 := repo.message("m2")
	if m2.SentAt != nil || m2.Error == nil || *m2.Error != "code=131000" {
		t.Fatalf("m2 = %+v, want error text and no sentAt", m2)
	}

	tests := []struct {
		name   string
		id     string
		status domain.MessageStatus
		want   error
	}{
		{name: "sent to failed", id: "m1", status: domain.MessageStatusFailed, want: domain.ErrConflict},
		{name: "failed to sent", id: "m2", status: domain.MessageStatusSent, want: domain.ErrConflict},
		{name: "back to pending", id: "m1", status: domain.MessageStatusPending, want: domain.ErrValidation},
		{name: "unknown message", id: "m9", status: domain.MessageStatusSent, want: domain.ErrNotFound},
		{name: "empty id", id: " ", status: domain.MessageStatusSent, want: domain.ErrValidation},
	}
	for _, tt := range tests {
		if err := svc.UpdateMessageStatus(ctx, tt.id, tt.status, ""); !errors.Is(err, tt.want) {
			t.Fatalf("%s: error = %v, want %v", tt.name, err, tt.want)
		}
	}
}

func TestGetCampaignSummary(t *testing.T) {
	t.Parallel()

	repo := newMemoryCampaignRepo()
	seedScheduleCampaign(repo)
	svc := newTestCampaignService(t, repo, &fakePublisher{})

	summary, err := svc.GetCampaignSummary(context.Background(), "c1")
	if err != nil {
		t.Fatalf("GetCampaignSummary() error = %v", err)
	}
	if summary.Total != 5 || summary.Campaign.Name != "Reminder" {
		t.Fatalf("summary = %+v, want total 5", summary)
	}

	counts := map[domain.MessageStatus]int{}
	for _, c := range summary.Counts {
		counts[c.Status] = c.Count
	}
	if counts[domain.MessageStatusSent] != 3 || counts[domain.MessageStatusPending] != 2 {
		t.Fatalf("counts = %v, want 3 sent / 2 pending", counts)
	}

	if _, err := svc.GetCampaignSummary(context.Background(), "nope"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("GetCampaignSummary(missing) error = %v, want ErrNotFound", err)
	}
}

func TestNewCampaignServiceRequiresDependencies(t *testing.T) {
	t.Parallel()

	if _, err := NewCampaignService(nil, &fakePublisher{}, "", nil); err == nil {
		t.Fatal("expected error for nil repository")
	}
	if _, err := NewCampaignService(newMemoryCampaignRepo(), nil, "", nil); err == nil {
		t.Fatal("expected error for nil publisher")
	}

	svc, err := NewCampaignService(newMemoryCampaignRepo(), &fakePublisher{}, "", nil)
	if err != nil {
		t.Fatalf("NewCampaignService() error = %v", err)
	}
	if svc.queueName != queue.DefaultDispatchQueue {
		t.Fatalf("queueName = %s, want default", svc.queueName)
	}
}
