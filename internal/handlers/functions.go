package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/securetransfer/server/internal/mailer"
	"github.com/securetransfer/server/internal/middleware"
	"github.com/securetransfer/server/internal/services"
	"github.com/securetransfer/server/pkg/logger"
	"github.com/securetransfer/server/pkg/utils"
)

// FunctionsHandler serves the /functions/v1 endpoints. Successful responses
// are bare JSON bodies rather than the success envelope.
type FunctionsHandler struct {
	Resolver *services.ResolverService
	Notifier *services.NotificationService
}

func NewFunctionsHandler(resolver *services.ResolverService, notifier *services.NotificationService) *FunctionsHandler {
	return &FunctionsHandler{Resolver: resolver, Notifier: notifier}
}

type tokenRequest struct {
	Token string `json:"token"`
}

type downloadURLRequest struct {
	TransferID string `json:"transferId"`
}

func (h *FunctionsHandler) GetFileByToken(c *fiber.Ctx) error {
	var req tokenRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "Access token is required")
	}

	resolution, err := h.Resolver.ResolveToken(c.UserContext(), req.Token)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(resolution)
}

func (h *FunctionsHandler) GetFileDownloadURL(c *fiber.Ctx) error {
	identity, ok := middleware.GetIdentity(c)
	if !ok {
		return utils.Error(c, fiber.StatusUnauthorized, "Unauthorized")
	}

	var req downloadURLRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "Transfer ID is required")
	}

	grant, err := h.Resolver.ResolveForIdentity(c.UserContext(), identity, req.TransferID)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(grant)
}

func (h *FunctionsHandler) SendTransferEmail(c *fiber.Ctx) error {
	var req mailer.TransferEmail
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "Invalid input data")
	}

	result, err := h.Notifier.SendTransferEmail(c.UserContext(), req)
	if err != nil {
		logger.Error("send_transfer_email_failed", err, map[string]interface{}{
			"recipient": req.RecipientEmail,
		})
		return respondError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(result)
}
