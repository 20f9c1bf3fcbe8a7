package provider

import "context"

// Provider is the outbound messaging port.
type Provider interface {
	Send(ctx context.Context, req SendRequest) (*SendResult, error)
}

// SendRequest is a single templated message.
type SendRequest struct {
	Destination  string
	TemplateName string
	Parameters   map[string]string
}

// SendResult stores provider call metadata for logging.
type SendResult struct {
	MessageID  string
	StatusCode int
	Body       string
}
