package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/securetransfer/server/internal/config"
	"github.com/securetransfer/server/internal/mailer"
	"github.com/securetransfer/server/internal/models"
	"github.com/securetransfer/server/pkg/logger"
	"github.com/securetransfer/server/pkg/utils"
	"gorm.io/gorm"
)

// sendTimeout bounds a single provider call made by the retry worker.
const sendTimeout = 30 * time.Second

type NotifyOutcome struct {
	Sent      bool
	Queued    bool
	MessageID string
}

// NotificationService sends transfer emails and retries failed ones from a
// persisted job table through a single background worker. Close stops the
// worker; jobs still pending stay in the table for RecoverPending.
type NotificationService struct {
	DB       *gorm.DB
	Sender   mailer.Sender
	Composer mailer.Composer
	queue    chan uuid.UUID
	config   config.NotifyConfig

	mu        sync.Mutex
	timers    map[*time.Timer]struct{}
	closed    bool
	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

func NewNotificationService(db *gorm.DB, sender mailer.Sender, composer mailer.Composer, cfg config.NotifyConfig) *NotificationService {
	if cfg.QueueBufferSize <= 0 {
		cfg.QueueBufferSize = 1
	}
	s := &NotificationService{
		DB:       db,
		Sender:   sender,
		Composer: composer,
		queue:    make(chan uuid.UUID, cfg.QueueBufferSize),
		config:   cfg,
		timers:   make(map[*time.Timer]struct{}),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	go s.processQueue()
	return s
}

// Close cancels scheduled retries and waits for the worker to finish the
// job in hand. It is safe to call more than once.
func (s *NotificationService) Close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		for timer := range s.timers {
			timer.Stop()
		}
		s.timers = nil
		s.mu.Unlock()
		close(s.stop)
	})
	<-s.done
}

// SendTransferEmail validates and delivers an explicit notification payload.
func (s *NotificationService) SendTransferEmail(ctx context.Context, email mailer.TransferEmail) (mailer.SendResult, error) {
	msg, err := s.Composer.Compose(email)
	if err != nil {
		return mailer.SendResult{}, err
	}

	logger.Info("transfer_email_sending", map[string]interface{}{
		"recipient": email.RecipientEmail,
	})
	return s.Sender.Send(ctx, msg)
}

// EmailFor builds the notification payload for a stored transfer.
func EmailFor(transfer *models.Transfer, appURL string) mailer.TransferEmail {
	email := mailer.TransferEmail{
		RecipientEmail: transfer.RecipientEmail,
		FileName:       transfer.FileName,
		FileSize:       utils.FormatSize(transfer.FileSize),
		SenderEmail:    transfer.SenderEmail,
		AppURL:         appURL,
		AccessToken:    transfer.AccessToken,
	}
	if transfer.Message != nil {
		email.Message = *transfer.Message
	}
	return email
}

// NotifyTransfer makes the first delivery attempt. When it fails with
// attempts to spare, a job is persisted and scheduled after RetryDelay.
func (s *NotificationService) NotifyTransfer(ctx context.Context, transfer *models.Transfer, appURL string) (NotifyOutcome, error) {
	result, err := s.SendTransferEmail(ctx, EmailFor(transfer, appURL))
	if err == nil {
		logger.Info("transfer_notification_sent", map[string]interface{}{
			"transfer_id": transfer.ID.String(),
			"message_id":  result.ID,
		})
		return NotifyOutcome{Sent: true, MessageID: result.ID}, nil
	}

	var verr *mailer.ValidationError
	if errors.As(err, &verr) {
		return NotifyOutcome{}, err
	}

	errStr := err.Error()
	job := models.NotificationJob{
		TransferID:  transfer.ID,
		AppURL:      appURL,
		Status:      models.NotificationJobStatusPending,
		Attempts:    1,
		MaxAttempts: s.config.MaxAttempts,
		LastError:   &errStr,
	}
	if job.Attempts >= job.MaxAttempts {
		job.Status = models.NotificationJobStatusFailed
	} else {
		nextRetry := time.Now().UTC().Add(s.config.RetryDelay)
		job.NextRetryAt = &nextRetry
	}

	if dbErr := s.DB.WithContext(ctx).Create(&job).Error; dbErr != nil {
		logger.Error("notification_job_create_failed", dbErr, map[string]interface{}{
			"transfer_id": transfer.ID.String(),
		})
		return NotifyOutcome{}, err
	}

	if job.Status == models.NotificationJobStatusFailed {
		return NotifyOutcome{}, err
	}

	s.schedule(job.ID, s.config.RetryDelay)
	logger.Warn("notification_retry_scheduled", map[string]interface{}{
		"job_id":      job.ID.String(),
		"transfer_id": transfer.ID.String(),
		"next_retry":  job.NextRetryAt.String(),
	})
	return NotifyOutcome{Queued: true}, err
}

func (s *NotificationService) GetJobByTransferID(transferID uuid.UUID) (*models.NotificationJob, error) {
	var job models.NotificationJob
	err := s.DB.Where("transfer_id = ?", transferID).
		Order("created_at DESC").
		First(&job).Error

	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &job, nil
}

func (s *NotificationService) schedule(jobID uuid.UUID, delay time.Duration) {
	if delay <= 0 {
		s.enqueue(jobID)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	var timer *time.Timer
	timer = time.AfterFunc(delay, func() {
		s.mu.Lock()
		delete(s.timers, timer)
		s.mu.Unlock()
		s.enqueue(jobID)
	})
	s.timers[timer] = struct{}{}
}

func (s *NotificationService) enqueue(jobID uuid.UUID) {
	select {
	case <-s.stop:
		return
	default:
	}

	select {
	case s.queue <- jobID:
	default:
		logger.Warn("notification_queue_full", map[string]interface{}{
			"job_id": jobID.String(),
		})
	}
}

func (s *NotificationService) processQueue() {
	defer close(s.done)
	for {
		select {
		case <-s.stop:
			logger.Info("notification_worker_stopped", nil)
			return
		case jobID := <-s.queue:
			s.processJob(jobID)
		}
	}
}

func (s *NotificationService) processJob(jobID uuid.UUID) {
	var job models.NotificationJob
	err := s.DB.Preload("Transfer").
		Where("id = ? AND status = ?", jobID, models.NotificationJobStatusPending).
		First(&job).Error
	if err != nil {
		if err != gorm.ErrRecordNotFound {
			logger.Error("notification_job_load_failed", err, map[string]interface{}{
				"job_id": jobID.String(),
			})
		}
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	defer cancel()

	result, sendErr := s.SendTransferEmail(ctx, EmailFor(&job.Transfer, job.AppURL))
	if sendErr != nil {
		s.markJobFailed(&job, sendErr)
		return
	}

	sentAt := time.Now().UTC()
	job.Attempts++
	job.Status = models.NotificationJobStatusSent
	job.SentAt = &sentAt
	job.NextRetryAt = nil

	if err := s.DB.Save(&job).Error; err != nil {
		logger.Error("notification_job_complete_failed", err, map[string]interface{}{
			"job_id": job.ID.String(),
		})
		return
	}

	logger.Info("notification_job_sent", map[string]interface{}{
		"job_id":      job.ID.String(),
		"transfer_id": job.TransferID.String(),
		"message_id":  result.ID,
		"attempts":    job.Attempts,
	})
}

func (s *NotificationService) markJobFailed(job *models.NotificationJob, jobErr error) {
	job.Attempts++
	errStr := jobErr.Error()
	job.LastError = &errStr

	if job.Attempts >= job.MaxAttempts {
		job.Status = models.NotificationJobStatusFailed
		job.NextRetryAt = nil
		logger.Error("notification_job_final_failure", jobErr, map[string]interface{}{
			"job_id":      job.ID.String(),
			"transfer_id": job.TransferID.String(),
			"attempts":    job.Attempts,
		})
	} else {
		nextRetry := time.Now().UTC().Add(s.config.RetryDelay)
		job.NextRetryAt = &nextRetry
		logger.Warn("notification_retry_scheduled", map[string]interface{}{
			"job_id":       job.ID.String(),
			"transfer_id":  job.TransferID.String(),
			"attempts":     job.Attempts,
			"max_attempts": job.MaxAttempts,
			"next_retry":   nextRetry.String(),
		})
	}

	if err := s.DB.Save(job).Error; err != nil {
		logger.Error("notification_job_failed_update_failed", err, map[string]interface{}{
			"job_id": job.ID.String(),
		})
		return
	}

	if job.Status == models.NotificationJobStatusPending {
		s.schedule(job.ID, s.config.RetryDelay)
	}
}

// RecoverPending reschedules jobs left pending by a previous process.
func (s *NotificationService) RecoverPending() (int, error) {
	var pending []models.NotificationJob
	if err := s.DB.Where("status = ?", models.NotificationJobStatusPending).Find(&pending).Error; err != nil {
		return 0, fmt.Errorf("failed loading pending notification jobs: %w", err)
	}

	now := time.Now().UTC()
	for _, job := range pending {
		var delay time.Duration
		if job.NextRetryAt != nil && job.NextRetryAt.After(now) {
			delay = job.NextRetryAt.Sub(now)
		}
		s.schedule(job.ID, delay)
	}

	if len(pending) > 0 {
		logger.Info("notification_jobs_recovered", map[string]interface{}{
			"count": len(pending),
		})
	}
	return len(pending), nil
}
