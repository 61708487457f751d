package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/securetransfer/server/internal/middleware"
	"github.com/securetransfer/server/internal/models"
	"github.com/securetransfer/server/internal/services"
	"github.com/securetransfer/server/pkg/utils"
)

type TransfersHandler struct {
	Transfers *services.TransferService
	Resolver  *services.ResolverService
}

func NewTransfersHandler(transfers *services.TransferService, resolver *services.ResolverService) *TransfersHandler {
	return &TransfersHandler{Transfers: transfers, Resolver: resolver}
}

type createTransferResponse struct {
	Transfer           *models.Transfer `json:"transfer"`
	AccessToken        string           `json:"accessToken"`
	NotificationSent   bool             `json:"notificationSent"`
	NotificationQueued bool             `json:"notificationQueued"`
}

func (h *TransfersHandler) Create(c *fiber.Ctx) error {
	identity, ok := middleware.GetIdentity(c)
	if !ok {
		return utils.Error(c, fiber.StatusUnauthorized, "Unauthorized")
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "file is required")
	}

	expiry, err := parseExpiryDate(c.FormValue("expiryDate"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, err.Error())
	}

	file, err := fileHeader.Open()
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "failed reading uploaded file")
	}
	defer file.Close()

	result, err := h.Transfers.Submit(c.UserContext(), services.SubmitInput{
		Identity:       identity,
		RecipientEmail: c.FormValue("recipientEmail"),
		Message:        c.FormValue("message"),
		ExpiryDate:     expiry,
		File: services.FileUpload{
			Name:        fileHeader.Filename,
			Size:        fileHeader.Size,
			ContentType: fileHeader.Header.Get(fiber.HeaderContentType),
			Content:     file,
		},
		Digest: c.FormValue("fileHash"),
		AppURL: c.FormValue("appUrl"),
	})
	if err != nil {
		return respondError(c, err)
	}

	return utils.Success(c, fiber.StatusCreated, createTransferResponse{
		Transfer:           result.Transfer,
		AccessToken:        result.Transfer.AccessToken,
		NotificationSent:   result.NotificationSent,
		NotificationQueued: result.NotificationQueued,
	})
}

func (h *TransfersHandler) ListSent(c *fiber.Ctx) error {
	identity, ok := middleware.GetIdentity(c)
	if !ok {
		return utils.Error(c, fiber.StatusUnauthorized, "Unauthorized")
	}

	page := utils.ParsePagination(c)
	transfers, total, err := h.Transfers.ListSent(c.UserContext(), identity, page)
	if err != nil {
		return respondError(c, err)
	}
	return utils.Paginated(c, transfers, page.Page, page.Limit, total)
}

func (h *TransfersHandler) ListReceived(c *fiber.Ctx) error {
	identity, ok := middleware.GetIdentity(c)
	if !ok {
		return utils.Error(c, fiber.StatusUnauthorized, "Unauthorized")
	}

	page := utils.ParsePagination(c)
	transfers, total, err := h.Transfers.ListReceived(c.UserContext(), identity, page)
	if err != nil {
		return respondError(c, err)
	}
	return utils.Paginated(c, transfers, page.Page, page.Limit, total)
}

func (h *TransfersHandler) Get(c *fiber.Ctx) error {
	identity, ok := middleware.GetIdentity(c)
	if !ok {
		return utils.Error(c, fiber.StatusUnauthorized, "Unauthorized")
	}

	transfer, err := h.Resolver.Authorize(c.UserContext(), identity, c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return utils.Success(c, fiber.StatusOK, transfer)
}
