package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"reflect"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-playground/validator/v10"
	"github.com/securetransfer/server/internal/models"
	"github.com/securetransfer/server/internal/storage"
	"github.com/securetransfer/server/internal/validation"
	"github.com/securetransfer/server/pkg/digest"
	"github.com/securetransfer/server/pkg/logger"
	"github.com/securetransfer/server/pkg/utils"
	"gorm.io/gorm"
)

// sniffLength is how much of the upload mimetype inspects when the client
// sent no content type.
const sniffLength = 3072

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		return field.Tag.Get("field")
	})
	return v
}

type FileUpload struct {
	Name        string `field:"fileName" validate:"required,max=255"`
	Size        int64
	ContentType string
	Content     io.Reader
}

type SubmitInput struct {
	Identity       Identity
	RecipientEmail string `field:"recipientEmail" validate:"required,max=255,email"`
	Message        string `field:"message" validate:"max=1000"`
	ExpiryDate     *time.Time
	File           FileUpload
	// Digest is the client-computed SHA-256; empty skips the comparison.
	Digest string `field:"fileHash" validate:"omitempty,len=64,hexadecimal"`
	AppURL string `field:"appUrl" validate:"omitempty,url"`
}

type SubmitResult struct {
	Transfer           *models.Transfer
	NotificationSent   bool
	NotificationQueued bool
}

type TransferService struct {
	DB       *gorm.DB
	Storage  storage.ObjectStore
	Notifier *NotificationService
	Rules    validation.Rules
	Now      func() time.Time
}

func NewTransferService(db *gorm.DB, store storage.ObjectStore, notifier *NotificationService, rules validation.Rules) *TransferService {
	return &TransferService{
		DB:       db,
		Storage:  store,
		Notifier: notifier,
		Rules:    rules,
		Now:      time.Now,
	}
}

// Submit uploads the file, records the transfer and notifies the recipient.
// A failed insert removes the uploaded object. A failed notification leaves
// the transfer in place and queues a retry.
func (s *TransferService) Submit(ctx context.Context, in SubmitInput) (*SubmitResult, error) {
	if in.Identity.IsZero() || in.Identity.Email == "" {
		return nil, ErrUnauthorized
	}
	in.RecipientEmail = strings.TrimSpace(in.RecipientEmail)
	in.Digest = strings.ToLower(strings.TrimSpace(in.Digest))
	if err := validateInput(in); err != nil {
		return nil, err
	}

	now := s.Now().UTC()
	if in.ExpiryDate != nil && !in.ExpiryDate.After(now) {
		return nil, ErrExpiryInPast
	}
	if in.File.Content == nil {
		return nil, fmt.Errorf("%w: file is required", ErrInvalidInput)
	}

	content, contentType, err := detectContentType(in.File.Content, in.File.ContentType)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}

	// Only a declared type is checked. The sniffed one is stored.
	check := s.Rules.Check(validation.FileInfo{
		Name:     in.File.Name,
		Size:     in.File.Size,
		MimeType: declaredType(in.File.ContentType),
	})
	if !check.Valid {
		return nil, check.Err
	}

	userID := in.Identity.UserID.String()
	objectPath := fmt.Sprintf("%s/%d-%s", userID, now.UnixMilli(), in.File.Name)

	tee := digest.NewTee(content)
	if err := s.Storage.Upload(ctx, objectPath, tee, in.File.Size, contentType); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}
	fileHash := tee.Sum()

	if in.Digest != "" && !digest.Equal(in.Digest, fileHash) {
		s.removeObject(ctx, userID, objectPath, "digest_mismatch")
		logger.WarnWithUser(userID, "transfer_digest_mismatch", map[string]interface{}{
			"file_name":       in.File.Name,
			"client_digest":   in.Digest,
			"computed_digest": fileHash,
		})
		return nil, ErrDigestMismatch
	}

	accessToken, err := utils.GenerateAccessToken()
	if err != nil {
		s.removeObject(ctx, userID, objectPath, "token_generation_failed")
		return nil, fmt.Errorf("%w: %v", ErrPersistFailed, err)
	}

	transfer := &models.Transfer{
		UserID:         in.Identity.UserID,
		SenderEmail:    in.Identity.Email,
		RecipientEmail: in.RecipientEmail,
		FileName:       in.File.Name,
		FileSize:       in.File.Size,
		MimeType:       contentType,
		FilePath:       objectPath,
		FileHash:       fileHash,
		ExpiryDate:     in.ExpiryDate,
		Status:         models.TransferStatusPending,
		AccessToken:    accessToken,
	}
	if in.Message != "" {
		message := in.Message
		transfer.Message = &message
	}

	if err := s.DB.WithContext(ctx).Create(transfer).Error; err != nil {
		s.removeObject(ctx, userID, objectPath, "insert_failed")
		logger.ErrorWithUser(userID, "transfer_insert_failed", err, map[string]interface{}{
			"file_path": objectPath,
		})
		return nil, fmt.Errorf("%w: %v", ErrPersistFailed, err)
	}

	logger.InfoWithUser(userID, "transfer_created", map[string]interface{}{
		"transfer_id": transfer.ID.String(),
		"file_name":   transfer.FileName,
		"file_size":   transfer.FileSize,
		"mime_type":   transfer.MimeType,
		"file_hash":   transfer.FileHash,
	})

	result := &SubmitResult{Transfer: transfer}
	if s.Notifier == nil {
		return result, nil
	}

	outcome, err := s.Notifier.NotifyTransfer(ctx, transfer, in.AppURL)
	result.NotificationSent = outcome.Sent
	result.NotificationQueued = outcome.Queued
	if err != nil {
		logger.ErrorWithUser(userID, "transfer_notification_failed", err, map[string]interface{}{
			"transfer_id": transfer.ID.String(),
			"queued":      outcome.Queued,
		})
	}
	return result, nil
}

func (s *TransferService) removeObject(ctx context.Context, userID, objectPath, reason string) {
	// The request context may already be cancelled; cleanup gets its own.
	cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()

	if err := s.Storage.Delete(cleanupCtx, objectPath); err != nil {
		logger.ErrorWithUser(userID, "transfer_orphan_cleanup_failed", err, map[string]interface{}{
			"file_path": objectPath,
			"reason":    reason,
		})
		return
	}
	logger.InfoWithUser(userID, "transfer_orphan_removed", map[string]interface{}{
		"file_path": objectPath,
		"reason":    reason,
	})
}

// ListSent returns the caller's own transfers, newest first.
func (s *TransferService) ListSent(ctx context.Context, identity Identity, page utils.PaginationParams) ([]models.Transfer, int64, error) {
	if identity.IsZero() {
		return nil, 0, ErrUnauthorized
	}
	query := s.DB.WithContext(ctx).Model(&models.Transfer{}).Where("user_id = ?", identity.UserID)
	return listTransfers(query, page)
}

// ListReceived returns transfers addressed to the caller's email, newest first.
func (s *TransferService) ListReceived(ctx context.Context, identity Identity, page utils.PaginationParams) ([]models.Transfer, int64, error) {
	email := strings.ToLower(strings.TrimSpace(identity.Email))
	if identity.IsZero() || email == "" {
		return nil, 0, ErrUnauthorized
	}
	query := s.DB.WithContext(ctx).Model(&models.Transfer{}).Where("LOWER(recipient_email) = ?", email)
	return listTransfers(query, page)
}

func listTransfers(query *gorm.DB, page utils.PaginationParams) ([]models.Transfer, int64, error) {
	query = query.Session(&gorm.Session{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var transfers []models.Transfer
	if err := query.Order("created_at DESC").Scopes(utils.Paginate(page)).Find(&transfers).Error; err != nil {
		return nil, 0, err
	}
	return transfers, total, nil
}

func validateInput(in SubmitInput) error {
	err := validate.Struct(in)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		return fmt.Errorf("%w: %s failed %s", ErrInvalidInput, fe.Field(), fe.Tag())
	}
	return fmt.Errorf("%w: %v", ErrInvalidInput, err)
}

// declaredType drops the generic binary type multipart encoders fall back to.
func declaredType(contentType string) string {
	contentType = strings.TrimSpace(contentType)
	if contentType == "application/octet-stream" {
		return ""
	}
	return contentType
}

// detectContentType keeps a declared type and sniffs the leading bytes
// otherwise. The returned reader still yields the whole content.
func detectContentType(content io.Reader, declared string) (io.Reader, string, error) {
	if declared = declaredType(declared); declared != "" {
		return content, declared, nil
	}

	head := make([]byte, sniffLength)
	n, err := io.ReadFull(content, head)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return nil, "", err
	}
	head = head[:n]

	return io.MultiReader(bytes.NewReader(head), content), mimetype.Detect(head).String(), nil
}
