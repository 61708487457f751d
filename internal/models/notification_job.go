package models

import (
	"time"

	"github.com/google/uuid"
)

type NotificationJobStatus string

const (
	NotificationJobStatusPending NotificationJobStatus = "pending"
	NotificationJobStatusSent    NotificationJobStatus = "sent"
	NotificationJobStatusFailed  NotificationJobStatus = "failed"
)

// NotificationJob persists a transfer email that failed during submission so
// the dispatcher can try it again.
type NotificationJob struct {
	BaseModel
	TransferID  uuid.UUID             `json:"transferID" gorm:"type:uuid;not null;index"`
	AppURL      string                `json:"appUrl" gorm:"type:text"`
	Status      NotificationJobStatus `json:"status" gorm:"type:varchar(20);not null;default:pending;index"`
	Attempts    int                   `json:"attempts" gorm:"not null;default:0"`
	MaxAttempts int                   `json:"maxAttempts" gorm:"not null;default:2"`
	LastError   *string               `json:"lastError,omitempty" gorm:"type:text"`
	NextRetryAt *time.Time            `json:"nextRetryAt,omitempty" gorm:"index"`
	SentAt      *time.Time            `json:"sentAt,omitempty"`

	Transfer Transfer `json:"-" gorm:"foreignKey:TransferID"`
}

func (NotificationJob) TableName() string {
	return "notification_jobs"
}
