package domain

import "time"

// ActivityKind classifies an interaction with a lead.
type ActivityKind string

const ActivityKindAutomaticOutbound ActivityKind = "automatic-outbound"

// ActivityOutcome is the result of the interaction.
type ActivityOutcome string

const (
	ActivityOutcomeSent   ActivityOutcome = "SENT"
	ActivityOutcomeFailed ActivityOutcome = "FAILED"
)

// Activity is a human-readable interaction record attached to a lead.
type Activity struct {
	ID          string
	LeadID      int64
	Kind        ActivityKind
	Outcome     ActivityOutcome
	CampaignID  string
	MessageID   string
	ContactedAt time.Time
	Notes       string
	CreatedAt   time.Time
}
