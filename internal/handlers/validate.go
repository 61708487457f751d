package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/securetransfer/server/internal/middleware"
	"github.com/securetransfer/server/internal/validation"
	"github.com/securetransfer/server/pkg/logger"
	"github.com/securetransfer/server/pkg/utils"
)

type ValidateHandler struct {
	Rules validation.Rules
}

func NewValidateHandler(rules validation.Rules) *ValidateHandler {
	return &ValidateHandler{Rules: rules}
}

type validateFileRequest struct {
	Name     string `json:"name"`
	Size     int64  `json:"size"`
	MimeType string `json:"mimeType"`
}

// Check screens declared file metadata. A rejected file is still a 200 with
// valid=false and the reason. Signed-in callers are logged by user id.
func (h *ValidateHandler) Check(c *fiber.Ctx) error {
	var req validateFileRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}
	if req.Name == "" {
		return utils.Error(c, fiber.StatusBadRequest, "name is required")
	}

	result := h.Rules.Check(validation.FileInfo{Name: req.Name, Size: req.Size, MimeType: req.MimeType})

	details := map[string]interface{}{
		"file_name": req.Name,
		"file_size": req.Size,
		"valid":     result.Valid,
	}
	if identity, ok := middleware.GetIdentity(c); ok {
		logger.InfoWithUser(identity.UserID.String(), "file_validation_checked", details)
	} else {
		logger.Info("file_validation_checked", details)
	}
	return utils.Success(c, fiber.StatusOK, result)
}
