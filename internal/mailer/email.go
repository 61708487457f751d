package mailer

import (
	"bytes"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// TransferEmail is the payload of a transfer notification. FileSize arrives
// already formatted for display (for example "2.00 MB").
type TransferEmail struct {
	RecipientEmail string `json:"recipientEmail" validate:"required,max=255,email"`
	FileName       string `json:"fileName" validate:"min=1,max=255"`
	FileSize       string `json:"fileSize" validate:"min=1,max=50"`
	Message        string `json:"message,omitempty" validate:"max=1000"`
	SenderEmail    string `json:"senderEmail" validate:"required,max=255,email"`
	AppURL         string `json:"appUrl,omitempty" validate:"omitempty,url"`
	AccessToken    string `json:"accessToken" validate:"min=1"`
}

type Issue struct {
	Field   string `json:"field"`
	Rule    string `json:"rule"`
	Message string `json:"message"`
}

// ValidationError lists every field of a TransferEmail that failed its rules.
type ValidationError struct {
	Issues []Issue
}

func (e *ValidationError) Error() string {
	fields := make([]string, 0, len(e.Issues))
	for _, issue := range e.Issues {
		fields = append(fields, issue.Field)
	}
	return "invalid transfer email: " + strings.Join(fields, ", ")
}

func (e TransferEmail) Validate() error {
	err := validate.Struct(e)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}

	verr := &ValidationError{Issues: make([]Issue, 0, len(fieldErrs))}
	for _, fe := range fieldErrs {
		verr.Issues = append(verr.Issues, Issue{
			Field:   fe.Field(),
			Rule:    fe.Tag(),
			Message: issueMessage(fe),
		})
	}
	return verr
}

func issueMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "Required"
	case "email":
		return "Invalid email"
	case "url":
		return "Invalid url"
	case "min":
		return fmt.Sprintf("Must contain at least %s character(s)", fe.Param())
	case "max":
		return fmt.Sprintf("Must contain at most %s character(s)", fe.Param())
	default:
		return fmt.Sprintf("Failed %s validation", fe.Tag())
	}
}

// DownloadURL is the recipient-facing link that carries the access token.
func DownloadURL(appURL, token string) string {
	return strings.TrimRight(appURL, "/") + "/download?token=" + token
}

type Message struct {
	From    string
	To      []string
	Subject string
	HTML    string
}

// Composer turns a TransferEmail into a ready-to-send Message.
type Composer struct {
	From          string
	DefaultAppURL string
}

func (c Composer) Compose(e TransferEmail) (Message, error) {
	if err := e.Validate(); err != nil {
		return Message{}, err
	}

	appURL := e.AppURL
	if appURL == "" {
		appURL = c.DefaultAppURL
	}

	var buf bytes.Buffer
	err := transferTemplate.Execute(&buf, templateData{
		SenderEmail: e.SenderEmail,
		FileName:    e.FileName,
		FileSize:    e.FileSize,
		Message:     e.Message,
		DownloadURL: DownloadURL(appURL, e.AccessToken),
	})
	if err != nil {
		return Message{}, fmt.Errorf("failed rendering transfer email: %w", err)
	}

	return Message{
		From:    c.From,
		To:      []string{e.RecipientEmail},
		Subject: fmt.Sprintf("%s sent you a secure file: %s", e.SenderEmail, e.FileName),
		HTML:    buf.String(),
	}, nil
}
