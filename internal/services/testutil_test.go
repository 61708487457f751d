package services

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/securetransfer/server/internal/config"
	"github.com/securetransfer/server/internal/mailer"
	"github.com/securetransfer/server/internal/models"
	"github.com/securetransfer/server/pkg/logger"
	"gorm.io/gorm"
)

func setupServicesTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	logger.Init()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed opening in-memory sqlite: %v", err)
	}

	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := db.AutoMigrate(&models.Transfer{}, &models.NotificationJob{}); err != nil {
		t.Fatalf("failed automigrating: %v", err)
	}
	return db
}

type fakeStore struct {
	mu         sync.Mutex
	objects    map[string][]byte
	deleted    []string
	presigned  []string
	uploadErr  error
	deleteErr  error
	presignErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{objects: map[string][]byte{}}
}

func (f *fakeStore) Upload(_ context.Context, objectName string, reader io.Reader, _ int64, _ string) error {
	data, err := io.ReadAll(reader)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.uploadErr != nil {
		return f.uploadErr
	}
	f.objects[objectName] = data
	return nil
}

func (f *fakeStore) Delete(_ context.Context, objectName string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, objectName)
	if f.deleteErr != nil {
		return f.deleteErr
	}
	delete(f.objects, objectName)
	return nil
}

func (f *fakeStore) PresignedGetURL(ctx context.Context, objectName string, expiry time.Duration) (string, error) {
	return f.PresignedGetURLWithResponse(ctx, objectName, expiry, "", "")
}

func (f *fakeStore) PresignedGetURLWithResponse(_ context.Context, objectName string, expiry time.Duration, _ string, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.presignErr != nil {
		return "", f.presignErr
	}
	f.presigned = append(f.presigned, objectName)
	return "https://storage.test/" + objectName + "?expires=" + expiry.String(), nil
}

func (f *fakeStore) EnsureBucket(context.Context) error { return nil }

func (f *fakeStore) object(name string) ([]byte, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[name]
	return data, ok
}

func (f *fakeStore) uploadCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.objects) + len(f.deleted)
}

func (f *fakeStore) deletedPaths() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.deleted...)
}

func (f *fakeStore) presignCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.presigned)
}

// fakeSender fails its first `failures` calls.
type fakeSender struct {
	mu       sync.Mutex
	failures int
	sent     []mailer.Message
	calls    int
}

func (f *fakeSender) Send(_ context.Context, msg mailer.Message) (mailer.SendResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.calls <= f.failures {
		return mailer.SendResult{}, errors.New("provider unavailable")
	}
	f.sent = append(f.sent, msg)
	return mailer.SendResult{ID: "email_" + uuid.NewString()}, nil
}

func (f *fakeSender) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeSender) lastMessage() (mailer.Message, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sent) == 0 {
		return mailer.Message{}, false
	}
	return f.sent[len(f.sent)-1], true
}

var testComposer = mailer.Composer{From: "SecureTransfer <onboarding@resend.dev>", DefaultAppURL: "http://localhost:5173"}

func newTestNotifier(t *testing.T, db *gorm.DB, sender mailer.Sender) *NotificationService {
	t.Helper()
	svc := NewNotificationService(db, sender, testComposer, config.NotifyConfig{
		QueueBufferSize: 10,
		MaxAttempts:     2,
		RetryDelay:      0,
	})
	t.Cleanup(svc.Close)
	return svc
}

func pdfContent(size int) []byte {
	data := bytes.Repeat([]byte{'x'}, size)
	copy(data, []byte("%PDF-1.4\n"))
	return data
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func createTransfer(t *testing.T, db *gorm.DB, transfer *models.Transfer) *models.Transfer {
	t.Helper()
	if transfer.UserID == uuid.Nil {
		transfer.UserID = uuid.New()
	}
	if transfer.SenderEmail == "" {
		transfer.SenderEmail = "alice@example.com"
	}
	if transfer.RecipientEmail == "" {
		transfer.RecipientEmail = "bob@example.com"
	}
	if transfer.FileName == "" {
		transfer.FileName = "report.pdf"
	}
	if transfer.FileSize == 0 {
		transfer.FileSize = 2 * 1024 * 1024
	}
	if transfer.FilePath == "" {
		transfer.FilePath = transfer.UserID.String() + "/" + uuid.NewString() + "-" + transfer.FileName
	}
	if transfer.FileHash == "" {
		transfer.FileHash = "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"
	}
	if transfer.AccessToken == "" {
		transfer.AccessToken = uuid.NewString()
	}
	if transfer.Status == "" {
		transfer.Status = models.TransferStatusPending
	}
	if err := db.Create(transfer).Error; err != nil {
		t.Fatalf("failed creating transfer: %v", err)
	}
	return transfer
}
