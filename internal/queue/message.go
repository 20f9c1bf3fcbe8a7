package queue

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrSchemaViolation marks a dispatch job that does not match the wire schema.
var ErrSchemaViolation = errors.New("schema violation")

// SendPayload is the provider call carried by a dispatch job.
type SendPayload struct {
	Destination  string            `json:"destination"`
	TemplateName string            `json:"templateName"`
	Parameters   map[string]string `json:"parameters,omitempty"`
}

// DispatchJob is the broker payload for one outbound campaign message.
type DispatchJob struct {
	MessageID    string      `json:"messageId"`
	CampaignID   string      `json:"campaignId"`
	CampaignName string      `json:"campaignName"`
	LeadID       int64       `json:"leadId"`
	Payload      SendPayload `json:"payload"`
}

func (j DispatchJob) Validate() error {
	if strings.TrimSpace(j.MessageID) == "" {
		return fmt.Errorf("%w: messageId is required", ErrSchemaViolation)
	}
	if strings.TrimSpace(j.CampaignID) == "" {
		return fmt.Errorf("%w: campaignId is required", ErrSchemaViolation)
	}
	if strings.TrimSpace(j.CampaignName) == "" {
		return fmt.Errorf("%w: campaignName is required", ErrSchemaViolation)
	}
	if j.LeadID <= 0 {
		return fmt.Errorf("%w: leadId must be a positive integer", ErrSchemaViolation)
	}
	if strings.TrimSpace(j.Payload.Destination) == "" {
		return fmt.Errorf("%w: payload.destination is required", ErrSchemaViolation)
	}
	if strings.TrimSpace(j.Payload.TemplateName) == "" {
		return fmt.Errorf("%w: payload.templateName is required", ErrSchemaViolation)
	}
	return nil
}

// DecodeDispatchJob parses and validates a delivery body.
func DecodeDispatchJob(body []byte) (DispatchJob, error) {
	var job DispatchJob
	if err := json.Unmarshal(body, &job); err != nil {
		return DispatchJob{}, fmt.Errorf("%w: %v", ErrSchemaViolation, err)
	}
	if err := job.Validate(); err != nil {
		return DispatchJob{}, err
	}
	return job, nil
}
