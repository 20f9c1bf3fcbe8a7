package handler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/kursadbilgin/campaign-dispatch/internal/domain"
	"github.com/kursadbilgin/campaign-dispatch/internal/observability"
	"github.com/kursadbilgin/campaign-dispatch/internal/service"
)

type CampaignService interface {
	CreateCampaign(ctx context.Context, draft service.CampaignDraft, messages []service.MessageDraft) (*service.CreateCampaignResult, error)
	ScheduleCampaign(ctx context.Context, campaignID string) (*service.ScheduleResult, error)
	GetCampaignSummary(ctx context.Context, campaignID string) (*service.CampaignSummary, error)
}

type CampaignHandler struct {
	service CampaignService
}

func NewCampaignHandler(service CampaignService) (*CampaignHandler, error) {
	if service == nil {
		return nil, fmt.Errorf("campaign service is required")
	}
	return &CampaignHandler{service: service}, nil
}

func RegisterCampaignRoutes(router fiber.Router, service CampaignService) error {
	h, err := NewCampaignHandler(service)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1")
	v1.Post("/campaigns", h.CreateCampaign)
	v1.Post("/campaigns/:id/schedule", h.ScheduleCampaign)
	v1.Get("/campaigns/:id", h.GetCampaign)

	return nil
}

type createCampaignRequest struct {
	Name      string                 `json:"name"`
	Type      string                 `json:"type"`
	SubListID string                 `json:"subListId"`
	Messages  []createMessageRequest `json:"messages"`
}

type createMessageRequest struct {
	LeadID         int64             `json:"leadId"`
	Destination    string            `json:"destination"`
	TemplateName   string            `json:"templateName"`
	TemplateParams map[string]string `json:"templateParams,omitempty"`
	DisplayText    string            `json:"displayText"`
}

type createCampaignResponse struct {
	CampaignID    string            `json:"campaignId"`
	Name          string            `json:"name"`
	Type          string            `json:"type"`
	SubListID     string            `json:"subListId"`
	Requested     int               `json:"requested"`
	Persisted     int               `json:"persisted"`
	Published     int               `json:"published"`
	PublishFailed []string          `json:"publishFailed,omitempty"`
	Messages      []messageResponse `json:"messages"`
	Warning       string            `json:"warning,omitempty"`
}

type messageResponse struct {
	ID          string `json:"id"`
	LeadID      int64  `json:"leadId"`
	Destination string `json:"destination"`
	Status      string `json:"status"`
}

type scheduleCampaignResponse struct {
	CampaignID    string   `json:"campaignId"`
	Pending       int      `json:"pending"`
	Published     int      `json:"published"`
	PublishFailed []string `json:"publishFailed,omitempty"`
	Warning       string   `json:"warning,omitempty"`
}

type campaignSummaryResponse struct {
	CampaignID string            `json:"campaignId"`
	Name       string            `json:"name"`
	Type       string            `json:"type"`
	SubListID  string            `json:"subListId"`
	CreatedAt  time.Time         `json:"createdAt"`
	Total      int               `json:"total"`
	Counts     []statusCountItem `json:"counts"`
}

type statusCountItem struct {
	Status string `json:"status"`
	Count  int    `json:"count"`
}

func (h *CampaignHandler) CreateCampaign(c *fiber.Ctx) error {
	var req createCampaignRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	campaignType, err := domain.ParseCampaignTypeFromString(req.Type)
	if err != nil {
		return toHTTPError(err)
	}
	if len(req.Messages) == 0 {
		return toHTTPError(fmt.Errorf("%w: messages is required", domain.ErrValidation))
	}

	draft := service.CampaignDraft{
		Name:      req.Name,
		Type:      campaignType,
		SubListID: req.SubListID,
	}
	drafts := make([]service.MessageDraft, 0, len(req.Messages))
	for _, m := range req.Messages {
		drafts = append(drafts, service.MessageDraft{
			LeadID:         m.LeadID,
			Destination:    m.Destination,
			TemplateName:   m.TemplateName,
			TemplateParams: m.TemplateParams,
			DisplayText:    m.DisplayText,
		})
	}

	result, err := h.service.CreateCampaign(requestContext(c), draft, drafts)
	if err != nil {
		if !errors.Is(err, service.ErrPartialPublish) || result == nil {
			return toHTTPError(err)
		}

		resp := toCreateCampaignResponse(result, len(drafts))
		resp.Warning = err.Error()
		return c.Status(fiber.StatusAccepted).JSON(resp)
	}

	return c.Status(fiber.StatusAccepted).JSON(toCreateCampaignResponse(result, len(drafts)))
}

func (h *CampaignHandler) ScheduleCampaign(c *fiber.Ctx) error {
	id := strings.TrimSpace(c.Params("id"))
	result, err := h.service.ScheduleCampaign(requestContext(c), id)
	if err != nil {
		if !errors.Is(err, service.ErrPartialPublish) || result == nil {
			return toHTTPError(err)
		}

		return c.Status(fiber.StatusAccepted).JSON(scheduleCampaignResponse{
			CampaignID:    result.CampaignID,
			Pending:       result.Pending,
			Published:     result.Published,
			PublishFailed: result.PublishFailed,
			Warning:       err.Error(),
		})
	}

	return c.Status(fiber.StatusAccepted).JSON(scheduleCampaignResponse{
		CampaignID: result.CampaignID,
		Pending:    result.Pending,
		Published:  result.Published,
	})
}

func (h *CampaignHandler) GetCampaign(c *fiber.Ctx) error {
	id := strings.TrimSpace(c.Params("id"))
	summary, err := h.service.GetCampaignSummary(requestContext(c), id)
	if err != nil {
		return toHTTPError(err)
	}

	items := make([]statusCountItem, 0, len(summary.Counts))
	for _, count := range summary.Counts {
		items = append(items, statusCountItem{
			Status: count.Status.String(),
			Count:  count.Count,
		})
	}

	return c.Status(fiber.StatusOK).JSON(campaignSummaryResponse{
		CampaignID: summary.Campaign.ID,
		Name:       summary.Campaign.Name,
		Type:       summary.Campaign.Type.String(),
		SubListID:  summary.Campaign.SubListID,
		CreatedAt:  summary.Campaign.CreatedAt,
		Total:      summary.Total,
		Counts:     items,
	})
}

func toCreateCampaignResponse(result *service.CreateCampaignResult, requested int) createCampaignResponse {
	messages := make([]messageResponse, 0, len(result.Persisted))
	for _, m := range result.Persisted {
		messages = append(messages, messageResponse{
			ID:          m.ID,
			LeadID:      m.LeadID,
			Destination: m.Destination,
			Status:      m.Status.String(),
		})
	}

	return createCampaignResponse{
		CampaignID:    result.Campaign.ID,
		Name:          result.Campaign.Name,
		Type:          result.Campaign.Type.String(),
		SubListID:     result.Campaign.SubListID,
		Requested:     requested,
		Persisted:     len(result.Persisted),
		Published:     result.Published,
		PublishFailed: result.PublishFailed,
		Messages:      messages,
	}
}

// requestContext carries the request id into the service layer so that log
// lines written on behalf of the request can be correlated.
func requestContext(c *fiber.Ctx) context.Context {
	ctx := c.UserContext()
	if id := requestCorrelationID(c); id != "" {
		ctx = observability.WithCorrelationID(ctx, id)
	}
	return ctx
}

func requestCorrelationID(c *fiber.Ctx) string {
	if value := strings.TrimSpace(c.Get(fiber.HeaderXRequestID)); value != "" {
		return value
	}
	if value, ok := c.Locals("requestid").(string); ok {
		return strings.TrimSpace(value)
	}
	return ""
}

func toHTTPError(err error) error {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrConflict):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	default:
		return err
	}
}
