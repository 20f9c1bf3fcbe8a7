package domain

import (
	"fmt"
	"strings"
	"time"
)

// CampaignType is the broadcast kind of a campaign.
type CampaignType string

const (
	CampaignTypeMarketing CampaignType = "MARKETING"
	CampaignTypeUtility   CampaignType = "UTILITY"
	CampaignTypeReminder  CampaignType = "REMINDER"
)

func (t CampaignType) String() string { return string(t) }

func (t CampaignType) IsValid() bool {
	switch t {
	case CampaignTypeMarketing, CampaignTypeUtility, CampaignTypeReminder:
		return true
	}
	return false
}

func ParseCampaignTypeFromString(s string) (CampaignType, error) {
	ct := CampaignType(strings.ToUpper(strings.TrimSpace(s)))
	if !ct.IsValid() {
		return "", fmt.Errorf("%w: invalid campaign type %q", ErrValidation, s)
	}
	return ct, nil
}

// Campaign groups the outbound messages created together. It is not
// modified after creation.
type Campaign struct {
	ID        string
	Name      string
	Type      CampaignType
	SubListID string
	CreatedAt time.Time
}

func (c *Campaign) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("%w: campaign name is required", ErrValidation)
	}
	if !c.Type.IsValid() {
		return fmt.Errorf("%w: invalid campaign type %q", ErrValidation, c.Type)
	}
	if strings.TrimSpace(c.SubListID) == "" {
		return fmt.Errorf("%w: sub-list id is required", ErrValidation)
	}
	return nil
}
