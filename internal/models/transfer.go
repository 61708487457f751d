package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// TransferStatus is a display label. Records are created pending and the
// server never moves them to another state.
type TransferStatus string

const (
	TransferStatusPending   TransferStatus = "pending"
	TransferStatusCompleted TransferStatus = "completed"
	TransferStatusVerified  TransferStatus = "verified"
)

type Transfer struct {
	BaseModel
	UserID         uuid.UUID      `json:"userID" gorm:"type:uuid;not null;index"`
	SenderEmail    string         `json:"senderEmail" gorm:"type:varchar(255);not null"`
	RecipientEmail string         `json:"recipientEmail" gorm:"type:varchar(255);not null;index"`
	FileName       string         `json:"fileName" gorm:"type:varchar(255);not null"`
	FileSize       int64          `json:"fileSize" gorm:"not null"`
	MimeType       string         `json:"mimeType" gorm:"type:varchar(255)"`
	FilePath       string         `json:"filePath" gorm:"type:text;not null;uniqueIndex"`
	FileHash       string         `json:"fileHash" gorm:"type:varchar(64);not null"`
	Message        *string        `json:"message,omitempty" gorm:"type:text"`
	ExpiryDate     *time.Time     `json:"expiryDate,omitempty"`
	Status         TransferStatus `json:"status" gorm:"type:varchar(20);not null;default:pending"`
	AccessToken    string         `json:"-" gorm:"type:varchar(64);not null;uniqueIndex"`
}

func (Transfer) TableName() string {
	return "transfers"
}

// IsExpired reports whether the transfer carries an expiry that lies before now.
func (t *Transfer) IsExpired(now time.Time) bool {
	return t.ExpiryDate != nil && t.ExpiryDate.Before(now)
}

func (t *Transfer) IsOwnedBy(userID uuid.UUID) bool {
	return t.UserID == userID
}

func (t *Transfer) IsAddressedTo(email string) bool {
	return email != "" && strings.EqualFold(t.RecipientEmail, email)
}
