// Package activity appends human-readable interaction records to a lead's
// history whenever an outbound campaign message is sent or fails.
package activity

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kursadbilgin/campaign-dispatch/internal/domain"
	"github.com/kursadbilgin/campaign-dispatch/internal/repository"
)

// Entry is a single interaction to record.
type Entry struct {
	LeadID      int64
	Kind        domain.ActivityKind
	Outcome     domain.ActivityOutcome
	ContactedAt time.Time
	Notes       string
	CampaignID  string
	MessageID   string
}

// Recorder persists activity entries.
type Recorder interface {
	Record(ctx context.Context, entry Entry) error
}

var _ Recorder = (*RepositoryRecorder)(nil)

// RepositoryRecorder stores entries through an ActivityRepository.
type RepositoryRecorder struct {
	repo  repository.ActivityRepository
	now   func() time.Time
	newID func() string
}

func NewRepositoryRecorder(repo repository.ActivityRepository) *RepositoryRecorder {
	return &RepositoryRecorder{
		repo:  repo,
		now:   time.Now,
		newID: uuid.NewString,
	}
}

func (r *RepositoryRecorder) Record(ctx context.Context, entry Entry) error {
	if r == nil || r.repo == nil {
		return fmt.Errorf("activity recorder is not initialized")
	}
	if entry.LeadID <= 0 {
		return fmt.Errorf("%w: lead id must be positive", domain.ErrValidation)
	}

	kind := entry.Kind
	if kind == "" {
		kind = domain.ActivityKindAutomaticOutbound
	}
	contactedAt := entry.ContactedAt
	if contactedAt.IsZero() {
		contactedAt = r.now().UTC()
	}

	activity := &domain.Activity{
		ID:          r.newID(),
		LeadID:      entry.LeadID,
		Kind:        kind,
		Outcome:     entry.Outcome,
		CampaignID:  entry.CampaignID,
		MessageID:   entry.MessageID,
		ContactedAt: contactedAt,
		Notes:       entry.Notes,
		CreatedAt:   r.now().UTC(),
	}

	if err := r.repo.Create(ctx, activity); err != nil {
		return fmt.Errorf("failed to record activity: %w", err)
	}
	return nil
}

// SentNotes describes a successful automatic send for the campaign.
func SentNotes(campaignName string) string {
	return fmt.Sprintf("WhatsApp message sent automatically by campaign %q.", strings.TrimSpace(campaignName))
}

// FailedNotes describes a failed automatic send, including the provider error.
func FailedNotes(campaignName, errText string) string {
	reason := strings.TrimSpace(errText)
	if reason == "" {
		reason = "unknown error"
	}
	return fmt.Sprintf("WhatsApp message from campaign %q failed: %s", strings.TrimSpace(campaignName), reason)
}
