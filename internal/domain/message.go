package domain

import (
	"fmt"
	"strings"
	"time"
)

// MessageStatus represents the lifecycle state of an outbound message.
type MessageStatus string

const (
	MessageStatusPending MessageStatus = "PENDING"
	MessageStatusSent    MessageStatus = "SENT"
	MessageStatusFailed  MessageStatus = "FAILED"
)

func (s MessageStatus) String() string { return string(s) }

func (s MessageStatus) IsValid() bool {
	switch s {
	case MessageStatusPending, MessageStatusSent, MessageStatusFailed:
		return true
	}
	return false
}

// IsTerminal reports whether no further transition is allowed from s.
func (s MessageStatus) IsTerminal() bool {
	return s == MessageStatusSent || s == MessageStatusFailed
}

// CanTransitionTo allows only PENDING -> SENT and PENDING -> FAILED.
func (s MessageStatus) CanTransitionTo(next MessageStatus) bool {
	return s == MessageStatusPending && next.IsTerminal()
}

func ParseMessageStatusFromString(s string) (MessageStatus, error) {
	st := MessageStatus(strings.ToUpper(strings.TrimSpace(s)))
	if !st.IsValid() {
		return "", fmt.Errorf("%w: invalid message status %q", ErrValidation, s)
	}
	return st, nil
}

// Message is one outbound templated message addressed to a lead.
type Message struct {
	ID             string
	CampaignID     string
	LeadID         int64
	Destination    string
	TemplateName   string
	TemplateParams map[string]string
	DisplayText    string
	Status         MessageStatus
	Error          *string
	SentAt         *time.Time
	CreatedAt      time.Time
}

func (m *Message) Validate() error {
	if m.LeadID <= 0 {
		return fmt.Errorf("%w: lead id must be positive", ErrValidation)
	}
	if strings.TrimSpace(m.Destination) == "" {
		return fmt.Errorf("%w: destination is required", ErrValidation)
	}
	if strings.TrimSpace(m.TemplateName) == "" {
		return fmt.Errorf("%w: template name is required", ErrValidation)
	}
	for key := range m.TemplateParams {
		if strings.TrimSpace(key) == "" {
			return fmt.Errorf("%w: template parameter names must not be empty", ErrValidation)
		}
	}
	return nil
}
