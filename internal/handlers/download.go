package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/securetransfer/server/internal/services"
)

// DownloadHandler serves the link placed in notification emails.
type DownloadHandler struct {
	Resolver *services.ResolverService
}

func NewDownloadHandler(resolver *services.ResolverService) *DownloadHandler {
	return &DownloadHandler{Resolver: resolver}
}

func (h *DownloadHandler) Redirect(c *fiber.Ctx) error {
	resolution, err := h.Resolver.ResolveToken(c.UserContext(), c.Query("token"))
	if err != nil {
		return respondError(c, err)
	}

	c.Set(fiber.HeaderCacheControl, "no-store")
	return c.Redirect(resolution.SignedURL, fiber.StatusFound)
}
