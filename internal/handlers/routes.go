package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/securetransfer/server/internal/middleware"
)

type Handlers struct {
	Transfers *TransfersHandler
	Functions *FunctionsHandler
	Download  *DownloadHandler
	Validate  *ValidateHandler
}

func RegisterRoutes(app *fiber.App, h Handlers) {
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "ok"})
	})
	app.Get("/download", h.Download.Redirect)

	api := app.Group("/api")
	api.Get("/version", GetVersion)
	api.Post("/files/validate", middleware.OptionalAuth, h.Validate.Check)

	transferRoutes := api.Group("/transfers", middleware.RequireAuth)
	transferRoutes.Post("/", h.Transfers.Create)
	transferRoutes.Get("/", h.Transfers.ListSent)
	transferRoutes.Get("/received", h.Transfers.ListReceived)
	transferRoutes.Get("/:id", h.Transfers.Get)

	functions := app.Group("/functions/v1")
	functions.Post("/get-file-by-token", h.Functions.GetFileByToken)
	functions.Post("/get-file-download-url", middleware.RequireAuth, h.Functions.GetFileDownloadURL)
	functions.Post("/send-transfer-email", middleware.RequireAuth, h.Functions.SendTransferEmail)
}
