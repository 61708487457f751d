package handlers

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/securetransfer/server/internal/mailer"
	"github.com/securetransfer/server/internal/services"
	"github.com/securetransfer/server/internal/validation"
	"github.com/securetransfer/server/pkg/logger"
	"github.com/securetransfer/server/pkg/utils"
)

var errInvalidExpiry = errors.New("expiryDate must be an RFC 3339 timestamp or a YYYY-MM-DD date")

// parseExpiryDate accepts a full timestamp or a bare date. A bare date
// means the end of that day in UTC.
func parseExpiryDate(value string) (*time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	if ts, err := time.Parse(time.RFC3339, value); err == nil {
		ts = ts.UTC()
		return &ts, nil
	}
	day, err := time.Parse(time.DateOnly, value)
	if err != nil {
		return nil, errInvalidExpiry
	}
	end := day.Add(24*time.Hour - time.Millisecond).UTC()
	return &end, nil
}

// respondError maps service and validation errors onto the response envelope.
func respondError(c *fiber.Ctx, err error) error {
	var rejection *validation.RejectionError
	if errors.As(err, &rejection) {
		return utils.Error(c, fiber.StatusBadRequest, rejection.Reason)
	}

	var emailErr *mailer.ValidationError
	if errors.As(err, &emailErr) {
		return utils.ErrorWithDetails(c, fiber.StatusBadRequest, "Invalid input data", emailErr.Issues)
	}

	switch {
	case errors.Is(err, services.ErrTokenRequired):
		return utils.Error(c, fiber.StatusBadRequest, "Access token is required")
	case errors.Is(err, services.ErrInvalidLink):
		return utils.Error(c, fiber.StatusNotFound, "Invalid or expired access link")
	case errors.Is(err, services.ErrTransferExpired):
		return utils.Error(c, fiber.StatusGone, "This transfer has expired")
	case errors.Is(err, services.ErrTransferIDRequired):
		return utils.Error(c, fiber.StatusBadRequest, "Transfer ID is required")
	case errors.Is(err, services.ErrTransferNotFound):
		return utils.Error(c, fiber.StatusNotFound, "Transfer not found")
	case errors.Is(err, services.ErrForbidden):
		return utils.Error(c, fiber.StatusForbidden, "Not authorized to access this file")
	case errors.Is(err, services.ErrUnauthorized):
		return utils.Error(c, fiber.StatusUnauthorized, "Unauthorized")
	case errors.Is(err, services.ErrSigningFailed):
		return utils.Error(c, fiber.StatusInternalServerError, "Failed to generate download URL")
	case errors.Is(err, services.ErrInvalidInput):
		return utils.Error(c, fiber.StatusBadRequest, err.Error())
	case errors.Is(err, services.ErrExpiryInPast):
		return utils.Error(c, fiber.StatusBadRequest, "Expiry date must be in the future")
	case errors.Is(err, services.ErrDigestMismatch):
		return utils.Error(c, fiber.StatusUnprocessableEntity, "File digest does not match uploaded content")
	case errors.Is(err, services.ErrUploadFailed):
		return utils.Error(c, fiber.StatusInternalServerError, "Failed to upload file")
	case errors.Is(err, services.ErrPersistFailed):
		return utils.Error(c, fiber.StatusInternalServerError, "Failed to save transfer")
	case errors.Is(err, mailer.ErrProvider):
		return utils.Error(c, fiber.StatusInternalServerError, err.Error())
	}

	logger.Error("unhandled_request_error", err, map[string]interface{}{
		"path": c.Path(),
	})
	return utils.Error(c, fiber.StatusInternalServerError, "internal server error")
}
