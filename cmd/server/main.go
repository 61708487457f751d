package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/securetransfer/server/internal/config"
	"github.com/securetransfer/server/internal/database"
	"github.com/securetransfer/server/internal/handlers"
	"github.com/securetransfer/server/internal/mailer"
	"github.com/securetransfer/server/internal/middleware"
	"github.com/securetransfer/server/internal/services"
	"github.com/securetransfer/server/internal/storage"
	"github.com/securetransfer/server/internal/validation"
	"github.com/securetransfer/server/pkg/logger"
	"github.com/securetransfer/server/pkg/utils"
)

// multipartOverhead is headroom above the file ceiling for form fields and
// part headers.
const multipartOverhead = 1024 * 1024

func main() {
	logger.Init()

	cfg := config.Load()
	utils.ConfigureJWT(cfg.JWT.Secret, cfg.JWT.ExpirationHours)

	db, err := database.Connect(cfg.DB)
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}

	store, err := storage.New(cfg.Storage)
	if err != nil {
		log.Fatalf("storage initialization failed: %v", err)
	}
	if err := store.EnsureBucket(context.Background()); err != nil {
		log.Fatalf("failed ensuring storage bucket: %v", err)
	}

	sender, err := mailer.New(cfg.Mail)
	if err != nil {
		log.Fatalf("mailer initialization failed: %v", err)
	}
	composer := mailer.Composer{From: cfg.Mail.From, DefaultAppURL: cfg.Server.AppURL}

	rules := validation.DefaultRules().WithMaxSize(cfg.Upload.MaxFileSize)

	notifier := services.NewNotificationService(db, sender, composer, cfg.Notify)
	if _, err := notifier.RecoverPending(); err != nil {
		logger.Error("notification_recovery_failed", err, nil)
	}
	transferService := services.NewTransferService(db, store, notifier, rules)
	resolver := services.NewResolverService(db, store)

	app := fiber.New(fiber.Config{BodyLimit: int(rules.MaxSize) + multipartOverhead})
	app.Use(recover.New(recover.Config{EnableStackTrace: true}))
	app.Use(middleware.CORS(cfg.Server.FrontendURL))
	app.Use(middleware.RequestLogger())
	app.Use(middleware.SecurityLogger())

	handlers.RegisterRoutes(app, handlers.Handlers{
		Transfers: handlers.NewTransfersHandler(transferService, resolver),
		Functions: handlers.NewFunctionsHandler(resolver, notifier),
		Download:  handlers.NewDownloadHandler(resolver),
		Validate:  handlers.NewValidateHandler(rules),
	})

	listenAddr := fmt.Sprintf(":%s", cfg.Server.Port)

	logger.Info("server_starting", map[string]interface{}{
		"port":           cfg.Server.Port,
		"address":        listenAddr,
		"storage_driver": cfg.Storage.Driver,
		"mail_driver":    cfg.Mail.Driver,
		"db_driver":      cfg.DB.Driver,
		"max_file_size":  utils.FormatSize(rules.MaxSize),
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- app.Listen(listenAddr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		log.Printf("shutting down server due to signal: %s", sig)
		shutdownDone := make(chan struct{})
		go func() {
			_ = app.Shutdown()
			close(shutdownDone)
		}()
		select {
		case <-shutdownDone:
		case <-time.After(10 * time.Second):
			log.Print("forced shutdown timeout reached")
		}
		notifier.Close()
	case err := <-errCh:
		if err != nil {
			log.Fatalf("server error: %v", err)
		}
	}
}
