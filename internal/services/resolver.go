package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/securetransfer/server/internal/models"
	"github.com/securetransfer/server/internal/storage"
	"github.com/securetransfer/server/pkg/logger"
	"gorm.io/gorm"
)

// SignedURLExpiry is how long a minted download URL stays valid.
const SignedURLExpiry = time.Hour

type TokenResolution struct {
	SignedURL   string  `json:"signedUrl"`
	FileName    string  `json:"fileName"`
	FileSize    int64   `json:"fileSize"`
	Message     *string `json:"message"`
	SenderEmail string  `json:"senderEmail"`
}

type DownloadGrant struct {
	SignedURL string `json:"signedUrl"`
	FileName  string `json:"fileName"`
}

type ResolverService struct {
	DB      *gorm.DB
	Storage storage.ObjectStore
	Now     func() time.Time
}

func NewResolverService(db *gorm.DB, store storage.ObjectStore) *ResolverService {
	return &ResolverService{DB: db, Storage: store, Now: time.Now}
}

// ResolveToken turns a recipient access token into a short-lived signed URL.
// Expired transfers never get a URL.
func (s *ResolverService) ResolveToken(ctx context.Context, token string) (*TokenResolution, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrTokenRequired
	}

	var transfer models.Transfer
	if err := s.DB.WithContext(ctx).First(&transfer, "access_token = ?", token).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidLink
		}
		return nil, fmt.Errorf("failed loading transfer: %w", err)
	}

	if transfer.IsExpired(s.Now()) {
		logger.Warn("transfer_link_expired", map[string]interface{}{
			"transfer_id": transfer.ID.String(),
			"expiry_date": transfer.ExpiryDate.String(),
		})
		return nil, ErrTransferExpired
	}

	signedURL, err := s.Storage.PresignedGetURLWithResponse(ctx, transfer.FilePath, SignedURLExpiry, "", storage.AttachmentDisposition(transfer.FileName))
	if err != nil {
		logger.Error("transfer_link_sign_failed", err, map[string]interface{}{
			"transfer_id": transfer.ID.String(),
		})
		return nil, fmt.Errorf("%w: %v", ErrSigningFailed, err)
	}

	logger.Info("transfer_link_resolved", map[string]interface{}{
		"transfer_id": transfer.ID.String(),
	})

	return &TokenResolution{
		SignedURL:   signedURL,
		FileName:    transfer.FileName,
		FileSize:    transfer.FileSize,
		Message:     transfer.Message,
		SenderEmail: transfer.SenderEmail,
	}, nil
}

// Authorize loads a transfer the caller sent or received.
func (s *ResolverService) Authorize(ctx context.Context, identity Identity, transferID string) (*models.Transfer, error) {
	if identity.IsZero() {
		return nil, ErrUnauthorized
	}

	transferID = strings.TrimSpace(transferID)
	if transferID == "" {
		return nil, ErrTransferIDRequired
	}

	id, err := uuid.Parse(transferID)
	if err != nil {
		return nil, ErrTransferNotFound
	}

	var transfer models.Transfer
	if err := s.DB.WithContext(ctx).First(&transfer, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTransferNotFound
		}
		return nil, fmt.Errorf("failed loading transfer: %w", err)
	}

	if !identity.CanAccess(&transfer) {
		logger.WarnWithUser(identity.UserID.String(), "transfer_access_denied", map[string]interface{}{
			"transfer_id": transfer.ID.String(),
		})
		return nil, ErrForbidden
	}

	return &transfer, nil
}

// ResolveForIdentity mints a signed URL for the transfer's sender or recipient.
func (s *ResolverService) ResolveForIdentity(ctx context.Context, identity Identity, transferID string) (*DownloadGrant, error) {
	transfer, err := s.Authorize(ctx, identity, transferID)
	if err != nil {
		return nil, err
	}

	signedURL, err := s.Storage.PresignedGetURL(ctx, transfer.FilePath, SignedURLExpiry)
	if err != nil {
		logger.ErrorWithUser(identity.UserID.String(), "transfer_download_sign_failed", err, map[string]interface{}{
			"transfer_id": transfer.ID.String(),
		})
		return nil, fmt.Errorf("%w: %v", ErrSigningFailed, err)
	}

	logger.InfoWithUser(identity.UserID.String(), "transfer_download_url_issued", map[string]interface{}{
		"transfer_id": transfer.ID.String(),
		"as_owner":    transfer.IsOwnedBy(identity.UserID),
	})

	return &DownloadGrant{SignedURL: signedURL, FileName: transfer.FileName}, nil
}
