package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	defaultWhatsAppTimeout  = 10 * time.Second
	defaultLanguageCode     = "en"
	messagingProduct        = "whatsapp"
	templateComponentBody   = "body"
	templateParameterText   = "text"
	templateMessageTypeName = "template"
)

type whatsAppRequest struct {
	MessagingProduct string           `json:"messaging_product"`
	To               string           `json:"to"`
	Type             string           `json:"type"`
	Template         whatsAppTemplate `json:"template"`
}

type whatsAppTemplate struct {
	Name       string              `json:"name"`
	Language   whatsAppLanguage    `json:"language"`
	Components []whatsAppComponent `json:"components,omitempty"`
}

type whatsAppLanguage struct {
	Code string `json:"code"`
}

type whatsAppComponent struct {
	Type       string              `json:"type"`
	Parameters []whatsAppParameter `json:"parameters"`
}

type whatsAppParameter struct {
	Type          string `json:"type"`
	ParameterName string `json:"parameter_name"`
	Text          string `json:"text"`
}

type whatsAppResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
	Error *whatsAppError `json:"error"`
}

type whatsAppError struct {
	Message   string `json:"message"`
	Code      int    `json:"code"`
	ErrorData struct {
		Details string `json:"details"`
	} `json:"error_data"`
}

// WhatsAppProvider sends template messages through the WhatsApp Business
// Cloud API messages endpoint.
type WhatsAppProvider struct {
	client       *resty.Client
	endpoint     string
	languageCode string
}

func NewWhatsAppProvider(endpoint, accessToken, languageCode string) (*WhatsAppProvider, error) {
	client := resty.New()
	client.SetTimeout(defaultWhatsAppTimeout)
	client.SetRetryCount(0)
	if token := strings.TrimSpace(accessToken); token != "" {
		client.SetAuthToken(token)
	}

	return NewWhatsAppProviderWithClient(endpoint, languageCode, client)
}

func NewWhatsAppProviderWithClient(endpoint, languageCode string, client *resty.Client) (*WhatsAppProvider, error) {
	trimmedEndpoint := strings.TrimSpace(endpoint)
	if trimmedEndpoint == "" {
		return nil, fmt.Errorf("whatsapp endpoint is required")
	}
	if _, err := url.ParseRequestURI(trimmedEndpoint); err != nil {
		return nil, fmt.Errorf("invalid whatsapp endpoint: %w", err)
	}
	if client == nil {
		return nil, fmt.Errorf("resty client is required")
	}

	if client.GetClient().Timeout == 0 {
		client.SetTimeout(defaultWhatsAppTimeout)
	}
	client.SetRetryCount(0)

	lang := strings.TrimSpace(languageCode)
	if lang == "" {
		lang = defaultLanguageCode
	}

	return &WhatsAppProvider{
		client:       client,
		endpoint:     trimmedEndpoint,
		languageCode: lang,
	}, nil
}

func (p *WhatsAppProvider) Send(ctx context.Context, req SendRequest) (*SendResult, error) {
	if p == nil || p.client == nil {
		return nil, fmt.Errorf("provider is not initialized")
	}
	if strings.TrimSpace(req.Destination) == "" || strings.TrimSpace(req.TemplateName) == "" {
		return nil, &ProviderError{Message: "destination and template name are required"}
	}

	response, err := p.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(p.buildRequest(req)).
		Post(p.endpoint)
	if err != nil {
		return nil, &ProviderError{
			Message: "provider request failed",
			Cause:   err,
		}
	}
	if response == nil {
		return nil, &ProviderError{Message: "provider returned empty response"}
	}

	statusCode := response.StatusCode()
	body := strings.TrimSpace(response.String())

	var parsed whatsAppResponse
	decodeErr := json.Unmarshal(response.Body(), &parsed)

	if statusCode >= http.StatusOK && statusCode < http.StatusMultipleChoices && parsed.Error == nil {
		result := &SendResult{StatusCode: statusCode, Body: body}
		if decodeErr == nil && len(parsed.Messages) > 0 {
			result.MessageID = parsed.Messages[0].ID
		}
		return result, nil
	}

	providerErr := &ProviderError{StatusCode: statusCode}
	if decodeErr == nil && parsed.Error != nil {
		providerErr.Code = parsed.Error.Code
		providerErr.Message = parsed.Error.Message
		providerErr.Details = parsed.Error.ErrorData.Details
	} else {
		providerErr.Message = providerErrorMessage(statusCode, body)
	}

	return nil, providerErr
}

func (p *WhatsAppProvider) buildRequest(req SendRequest) whatsAppRequest {
	out := whatsAppRequest{
		MessagingProduct: messagingProduct,
		To:               req.Destination,
		Type:             templateMessageTypeName,
		Template: whatsAppTemplate{
			Name:     req.TemplateName,
			Language: whatsAppLanguage{Code: p.languageCode},
		},
	}

	if len(req.Parameters) == 0 {
		return out
	}

	params := make([]whatsAppParameter, 0, len(req.Parameters))
	for _, name := range slices.Sorted(maps.Keys(req.Parameters)) {
		params = append(params, whatsAppParameter{
			Type:          templateParameterText,
			ParameterName: name,
			Text:          req.Parameters[name],
		})
	}

	out.Template.Components = []whatsAppComponent{{
		Type:       templateComponentBody,
		Parameters: params,
	}}

	return out
}

func providerErrorMessage(statusCode int, body string) string {
	base := fmt.Sprintf("provider returned status %d", statusCode)
	if body == "" {
		return base
	}
	return fmt.Sprintf("%s: %s", base, body)
}
