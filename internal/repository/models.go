package repository

import (
	"time"

	"github.com/kursadbilgin/campaign-dispatch/internal/domain"
)

// CampaignModel is the persistence model for the campaigns table.
type CampaignModel struct {
	ID        string              `gorm:"type:uuid;primaryKey"`
	Name      string              `gorm:"type:varchar(255);not null"`
	Type      domain.CampaignType `gorm:"type:varchar(20);not null"`
	SubListID string              `gorm:"type:varchar(64);not null"`
	CreatedAt time.Time
}

func (CampaignModel) TableName() string {
	return "campaigns"
}

// MessageModel is the persistence model for the messages table.
type MessageModel struct {
	ID             string               `gorm:"type:uuid;primaryKey"`
	CampaignID     string               `gorm:"type:uuid;not null"`
	LeadID         int64                `gorm:"not null"`
	Destination    string               `gorm:"type:varchar(32);not null"`
	TemplateName   string               `gorm:"type:varchar(255);not null"`
	TemplateParams map[string]string    `gorm:"type:jsonb;serializer:json"`
	DisplayText    string               `gorm:"type:text;not null"`
	Status         domain.MessageStatus `gorm:"type:varchar(20);not null"`
	Seq            int                  `gorm:"not null"`
	ErrorMessage   *string              `gorm:"column:error_message;type:text"`
	SentAt         *time.Time           `gorm:"type:timestamptz"`
	CreatedAt      time.Time
}

func (MessageModel) TableName() string {
	return "messages"
}

// ActivityModel is the persistence model for the activities table.
type ActivityModel struct {
	ID          string                 `gorm:"type:uuid;primaryKey"`
	LeadID      int64                  `gorm:"not null"`
	Kind        domain.ActivityKind    `gorm:"type:varchar(32);not null"`
	Outcome     domain.ActivityOutcome `gorm:"type:varchar(20);not null"`
	CampaignID  string                 `gorm:"type:uuid;not null"`
	MessageID   string                 `gorm:"type:uuid;not null"`
	ContactedAt time.Time              `gorm:"type:timestamptz;not null"`
	Notes       string                 `gorm:"type:text;not null"`
	CreatedAt   time.Time
}

func (ActivityModel) TableName() string {
	return "activities"
}

func campaignModelFromDomain(c *domain.Campaign) *CampaignModel {
	if c == nil {
		return nil
	}

	return &CampaignModel{
		ID:        c.ID,
		Name:      c.Name,
		Type:      c.Type,
		SubListID: c.SubListID,
		CreatedAt: c.CreatedAt,
	}
}

func campaignModelToDomain(m *CampaignModel) *domain.Campaign {
	if m == nil {
		return nil
	}

	return &domain.Campaign{
		ID:        m.ID,
		Name:      m.Name,
		Type:      m.Type,
		SubListID: m.SubListID,
		CreatedAt: m.CreatedAt,
	}
}

func messageModelFromDomain(msg *domain.Message) *MessageModel {
	if msg == nil {
		return nil
	}

	return &MessageModel{
		ID:             msg.ID,
		CampaignID:     msg.CampaignID,
		LeadID:         msg.LeadID,
		Destination:    msg.Destination,
		TemplateName:   msg.TemplateName,
		TemplateParams: msg.TemplateParams,
		DisplayText:    msg.DisplayText,
		Status:         msg.Status,
		ErrorMessage:   msg.Error,
		SentAt:         msg.SentAt,
		CreatedAt:      msg.CreatedAt,
	}
}

func messageModelToDomain(m *MessageModel) *domain.Message {
	if m == nil {
		return nil
	}

	return &domain.Message{
		ID:             m.ID,
		CampaignID:     m.CampaignID,
		LeadID:         m.LeadID,
		Destination:    m.Destination,
		TemplateName:   m.TemplateName,
		TemplateParams: m.TemplateParams,
		DisplayText:    m.DisplayText,
		Status:         m.Status,
		Error:          m.ErrorMessage,
		SentAt:         m.SentAt,
		CreatedAt:      m.CreatedAt,
	}
}

func activityModelFromDomain(a *domain.Activity) *ActivityModel {
	if a == nil {
		return nil
	}

	return &ActivityModel{
		ID:          a.ID,
		LeadID:      a.LeadID,
		Kind:        a.Kind,
		Outcome:     a.Outcome,
		CampaignID:  a.CampaignID,
		MessageID:   a.MessageID,
		ContactedAt: a.ContactedAt,
		Notes:       a.Notes,
		CreatedAt:   a.CreatedAt,
	}
}

func activityModelToDomain(m *ActivityModel) *domain.Activity {
	if m == nil {
		return nil
	}

	return &domain.Activity{
		ID:          m.ID,
		LeadID:      m.LeadID,
		Kind:        m.Kind,
		Outcome:     m.Outcome,
		CampaignID:  m.CampaignID,
		MessageID:   m.MessageID,
		ContactedAt: m.ContactedAt,
		Notes:       m.Notes,
		CreatedAt:   m.CreatedAt,
	}
}
