package mailer

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/securetransfer/server/internal/config"
	"github.com/securetransfer/server/pkg/logger"
)

var ErrProvider = errors.New("email provider")

// SendResult is the provider's acknowledgement, returned to API callers as-is.
type SendResult struct {
	ID string `json:"id"`
}

type Sender interface {
	Send(ctx context.Context, msg Message) (SendResult, error)
}

func New(cfg config.MailConfig) (Sender, error) {
	switch cfg.Driver {
	case "", "log":
		return LogSender{}, nil
	case "resend":
		if cfg.APIKey == "" {
			return nil, errors.New("RESEND_API_KEY is required for the resend mail driver")
		}
		return NewResendSender(cfg), nil
	default:
		return nil, fmt.Errorf("unsupported mail driver %q", cfg.Driver)
	}
}

type ResendSender struct {
	client *resty.Client
}

type resendRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
}

type resendError struct {
	StatusCode int    `json:"statusCode"`
	Name       string `json:"name"`
	Message    string `json:"message"`
}

func NewResendSender(cfg config.MailConfig) *ResendSender {
	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetAuthToken(cfg.APIKey).
		SetTimeout(cfg.Timeout).
		SetHeader("Content-Type", "application/json")
	return &ResendSender{client: client}
}

func (s *ResendSender) Send(ctx context.Context, msg Message) (SendResult, error) {
	var result SendResult
	var apiErr resendError

	resp, err := s.client.R().
		SetContext(ctx).
		SetBody(resendRequest{From: msg.From, To: msg.To, Subject: msg.Subject, HTML: msg.HTML}).
		SetResult(&result).
		SetError(&apiErr).
		Post("/emails")
	if err != nil {
		return SendResult{}, fmt.Errorf("%w: %v", ErrProvider, err)
	}
	if resp.IsError() {
		return SendResult{}, fmt.Errorf("%w (HTTP Status: %d): %s: %s", ErrProvider, resp.StatusCode(), apiErr.Name, apiErr.Message)
	}

	logger.Info("email_sent", map[string]interface{}{
		"provider":   "resend",
		"message_id": result.ID,
		"to":         msg.To,
	})
	return result, nil
}

// LogSender writes messages to the structured log instead of delivering them.
type LogSender struct{}

func (LogSender) Send(_ context.Context, msg Message) (SendResult, error) {
	result := SendResult{ID: "log-" + uuid.NewString()}
	logger.Info("email_logged", map[string]interface{}{
		"message_id": result.ID,
		"from":       msg.From,
		"to":         msg.To,
		"subject":    msg.Subject,
	})
	return result, nil
}
