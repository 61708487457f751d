package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/securetransfer/server/internal/models"
	"github.com/securetransfer/server/internal/validation"
	"github.com/securetransfer/server/pkg/digest"
	"github.com/securetransfer/server/pkg/utils"
	"gorm.io/gorm"
)

var fixedNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestTransferService(t *testing.T, db *gorm.DB, store *fakeStore, sender *fakeSender) *TransferService {
	t.Helper()
	svc := NewTransferService(db, store, newTestNotifier(t, db, sender), validation.DefaultRules())
	svc.Now = func() time.Time { return fixedNow }
	return svc
}

func submitInput(identity Identity, data []byte) SubmitInput {
	return SubmitInput{
		Identity:       identity,
		RecipientEmail: "bob@example.com",
		Message:        "Q1 numbers",
		File: FileUpload{
			Name:        "report.pdf",
			Size:        int64(len(data)),
			ContentType: "application/pdf",
			Content:     bytes.NewReader(data),
		},
		AppURL: "https://transfer.example.com",
	}
}

func TestTransferService_Submit(t *testing.T) {
	identity := Identity{UserID: uuid.New(), Email: "alice@example.com"}

	t.Run("uploads, records and notifies", func(t *testing.T) {
		db := setupServicesTestDB(t)
		store := newFakeStore()
		sender := &fakeSender{}
		svc := newTestTransferService(t, db, store, sender)

		data := pdfContent(2 * 1024 * 1024)
		result, err := svc.Submit(context.Background(), submitInput(identity, data))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		transfer := result.Transfer
		wantPath := fmt.Sprintf("%s/%d-report.pdf", identity.UserID, fixedNow.UnixMilli())
		if transfer.FilePath != wantPath {
			t.Errorf("expected path %s, got %s", wantPath, transfer.FilePath)
		}
		if transfer.FileHash != digest.Bytes(data) {
			t.Errorf("expected hash %s, got %s", digest.Bytes(data), transfer.FileHash)
		}
		if transfer.Status != models.TransferStatusPending {
			t.Errorf("expected pending status, got %s", transfer.Status)
		}
		if transfer.SenderEmail != "alice@example.com" || transfer.UserID != identity.UserID {
			t.Errorf("unexpected owner fields: %+v", transfer)
		}
		if transfer.Message == nil || *transfer.Message != "Q1 numbers" {
			t.Errorf("expected message to be stored, got %v", transfer.Message)
		}
		if len(transfer.AccessToken) < 43 {
			t.Errorf("expected a 32-byte token, got %q", transfer.AccessToken)
		}

		stored, ok := store.object(wantPath)
		if !ok || !bytes.Equal(stored, data) {
			t.Fatal("expected uploaded bytes to match the input")
		}

		var count int64
		db.Model(&models.Transfer{}).Count(&count)
		if count != 1 {
			t.Errorf("expected 1 transfer row, got %d", count)
		}

		if !result.NotificationSent || result.NotificationQueued {
			t.Errorf("expected notification sent without queueing, got %+v", result)
		}
		msg, ok := sender.lastMessage()
		if !ok {
			t.Fatal("expected an email to be sent")
		}
		if msg.Subject != "alice@example.com sent you a secure file: report.pdf" {
			t.Errorf("unexpected subject %q", msg.Subject)
		}
		if !strings.Contains(msg.HTML, "https://transfer.example.com/download?token="+transfer.AccessToken) {
			t.Error("expected email to carry the download link")
		}
		if !strings.Contains(msg.HTML, "2.00 MB") {
			t.Error("expected formatted size in email")
		}
	})

	t.Run("sniffs content type when none is declared", func(t *testing.T) {
		db := setupServicesTestDB(t)
		svc := newTestTransferService(t, db, newFakeStore(), &fakeSender{})

		in := submitInput(identity, pdfContent(4096))
		in.File.ContentType = ""
		result, err := svc.Submit(context.Background(), in)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result.Transfer.MimeType != "application/pdf" {
			t.Errorf("expected sniffed application/pdf, got %s", result.Transfer.MimeType)
		}
	})

	t.Run("accepts a matching client digest in any case", func(t *testing.T) {
		db := setupServicesTestDB(t)
		svc := newTestTransferService(t, db, newFakeStore(), &fakeSender{})

		data := pdfContent(1024)
		in := submitInput(identity, data)
		in.Digest = strings.ToUpper(digest.Bytes(data))
		if _, err := svc.Submit(context.Background(), in); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("removes the object on digest mismatch", func(t *testing.T) {
		db := setupServicesTestDB(t)
		store := newFakeStore()
		svc := newTestTransferService(t, db, store, &fakeSender{})

		in := submitInput(identity, pdfContent(1024))
		in.Digest = digest.Bytes([]byte("something else"))
		_, err := svc.Submit(context.Background(), in)
		if !errors.Is(err, ErrDigestMismatch) {
			t.Fatalf("expected ErrDigestMismatch, got %v", err)
		}
		if len(store.deletedPaths()) != 1 {
			t.Errorf("expected uploaded object to be deleted, got %v", store.deletedPaths())
		}
		var count int64
		db.Model(&models.Transfer{}).Count(&count)
		if count != 0 {
			t.Errorf("expected no transfer rows, got %d", count)
		}
	})

	t.Run("rejects files the validator refuses before uploading", func(t *testing.T) {
		db := setupServicesTestDB(t)
		store := newFakeStore()
		svc := newTestTransferService(t, db, store, &fakeSender{})

		in := submitInput(identity, []byte("MZ binary"))
		in.File.Name = "setup.exe"
		in.File.ContentType = "application/x-msdownload"
		_, err := svc.Submit(context.Background(), in)
		if !errors.Is(err, validation.ErrExtensionNotAllowed) {
			t.Fatalf("expected ErrExtensionNotAllowed, got %v", err)
		}
		if _, ok := store.object(fmt.Sprintf("%s/%d-setup.exe", identity.UserID, fixedNow.UnixMilli())); ok {
			t.Error("expected nothing to be uploaded")
		}
	})

	t.Run("checks only the declared type against the mime allow-list", func(t *testing.T) {
		opaque := []byte{0x00, 0x9f, 0x12, 0xfe, 0x01, 0x7f, 0xc3, 0x00, 0x42, 0x8e}
		for _, declared := range []string{"", "application/octet-stream"} {
			db := setupServicesTestDB(t)
			svc := newTestTransferService(t, db, newFakeStore(), &fakeSender{})

			in := submitInput(identity, opaque)
			in.File.Name = "export.csv"
			in.File.ContentType = declared
			result, err := svc.Submit(context.Background(), in)
			if err != nil {
				t.Fatalf("declared %q: unexpected error: %v", declared, err)
			}
			if result.Transfer.MimeType != "application/octet-stream" {
				t.Errorf("declared %q: expected sniffed type to be stored, got %s", declared, result.Transfer.MimeType)
			}
		}
	})

	t.Run("rejects a file name longer than 255 characters before uploading", func(t *testing.T) {
		db := setupServicesTestDB(t)
		store := newFakeStore()
		svc := newTestTransferService(t, db, store, &fakeSender{})

		in := submitInput(identity, pdfContent(1024))
		in.File.Name = strings.Repeat("a", 252) + ".pdf"
		_, err := svc.Submit(context.Background(), in)
		if !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("expected ErrInvalidInput, got %v", err)
		}
		if !strings.Contains(err.Error(), "fileName failed max") {
			t.Errorf("expected the file name to be reported, got %v", err)
		}
		if store.uploadCount() != 0 {
			t.Error("expected nothing to be uploaded")
		}
	})

	t.Run("rejects an expiry that is not in the future", func(t *testing.T) {
		db := setupServicesTestDB(t)
		svc := newTestTransferService(t, db, newFakeStore(), &fakeSender{})

		in := submitInput(identity, pdfContent(1024))
		past := fixedNow.Add(-time.Hour)
		in.ExpiryDate = &past
		if _, err := svc.Submit(context.Background(), in); !errors.Is(err, ErrExpiryInPast) {
			t.Fatalf("expected ErrExpiryInPast, got %v", err)
		}
	})

	t.Run("rejects invalid recipient and anonymous callers", func(t *testing.T) {
		db := setupServicesTestDB(t)
		svc := newTestTransferService(t, db, newFakeStore(), &fakeSender{})

		in := submitInput(identity, pdfContent(1024))
		in.RecipientEmail = "not-an-email"
		if _, err := svc.Submit(context.Background(), in); !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("expected ErrInvalidInput, got %v", err)
		}

		anon := submitInput(Identity{}, pdfContent(1024))
		if _, err := svc.Submit(context.Background(), anon); !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("expected ErrUnauthorized, got %v", err)
		}
	})

	t.Run("fails without a record when upload fails", func(t *testing.T) {
		db := setupServicesTestDB(t)
		store := newFakeStore()
		store.uploadErr = errors.New("bucket offline")
		svc := newTestTransferService(t, db, store, &fakeSender{})

		if _, err := svc.Submit(context.Background(), submitInput(identity, pdfContent(1024))); !errors.Is(err, ErrUploadFailed) {
			t.Fatalf("expected ErrUploadFailed, got %v", err)
		}
		var count int64
		db.Model(&models.Transfer{}).Count(&count)
		if count != 0 {
			t.Errorf("expected no transfer rows, got %d", count)
		}
	})

	t.Run("deletes the uploaded object when the insert fails", func(t *testing.T) {
		db := setupServicesTestDB(t)
		if err := db.Callback().Create().Before("gorm:create").Register("test:fail_transfers", func(tx *gorm.DB) {
			if tx.Statement.Table == "transfers" {
				_ = tx.AddError(errors.New("disk full"))
			}
		}); err != nil {
			t.Fatalf("failed registering callback: %v", err)
		}
		store := newFakeStore()
		sender := &fakeSender{}
		svc := newTestTransferService(t, db, store, sender)

		_, err := svc.Submit(context.Background(), submitInput(identity, pdfContent(1024)))
		if !errors.Is(err, ErrPersistFailed) {
			t.Fatalf("expected ErrPersistFailed, got %v", err)
		}
		wantPath := fmt.Sprintf("%s/%d-report.pdf", identity.UserID, fixedNow.UnixMilli())
		deleted := store.deletedPaths()
		if len(deleted) != 1 || deleted[0] != wantPath {
			t.Errorf("expected %s to be deleted, got %v", wantPath, deleted)
		}
		if _, ok := store.object(wantPath); ok {
			t.Error("expected no orphaned object")
		}
		if sender.callCount() != 0 {
			t.Error("expected no email for a failed submission")
		}
	})

	t.Run("keeps the transfer and retries once when the email fails", func(t *testing.T) {
		db := setupServicesTestDB(t)
		sender := &fakeSender{failures: 1}
		svc := newTestTransferService(t, db, newFakeStore(), sender)

		result, err := svc.Submit(context.Background(), submitInput(identity, pdfContent(1024)))
		if err != nil {
			t.Fatalf("expected submission to succeed, got %v", err)
		}
		if result.NotificationSent || !result.NotificationQueued {
			t.Fatalf("expected notification to be queued, got %+v", result)
		}

		waitFor(t, 2*time.Second, func() bool {
			job, err := svc.Notifier.GetJobByTransferID(result.Transfer.ID)
			return err == nil && job != nil && job.Status == models.NotificationJobStatusSent
		})
		job, _ := svc.Notifier.GetJobByTransferID(result.Transfer.ID)
		if job.Attempts != 2 {
			t.Errorf("expected 2 attempts, got %d", job.Attempts)
		}
		if sender.callCount() != 2 {
			t.Errorf("expected 2 send calls, got %d", sender.callCount())
		}
	})

	t.Run("gives up after the retry fails", func(t *testing.T) {
		db := setupServicesTestDB(t)
		sender := &fakeSender{failures: 5}
		svc := newTestTransferService(t, db, newFakeStore(), sender)

		result, err := svc.Submit(context.Background(), submitInput(identity, pdfContent(1024)))
		if err != nil {
			t.Fatalf("expected submission to succeed, got %v", err)
		}

		waitFor(t, 2*time.Second, func() bool {
			job, err := svc.Notifier.GetJobByTransferID(result.Transfer.ID)
			return err == nil && job != nil && job.Status == models.NotificationJobStatusFailed
		})
		job, _ := svc.Notifier.GetJobByTransferID(result.Transfer.ID)
		if job.Attempts != 2 || job.LastError == nil {
			t.Errorf("expected 2 attempts with an error, got %+v", job)
		}
		if sender.callCount() != 2 {
			t.Errorf("expected exactly one retry, got %d calls", sender.callCount())
		}
	})
}

func TestTransferService_Lists(t *testing.T) {
	db := setupServicesTestDB(t)
	svc := newTestTransferService(t, db, newFakeStore(), &fakeSender{})

	alice := Identity{UserID: uuid.New(), Email: "alice@example.com"}
	bob := Identity{UserID: uuid.New(), Email: "bob@example.com"}

	createTransfer(t, db, &models.Transfer{UserID: alice.UserID, RecipientEmail: "Bob@Example.com"})
	createTransfer(t, db, &models.Transfer{UserID: alice.UserID, RecipientEmail: "carol@example.com"})
	createTransfer(t, db, &models.Transfer{UserID: bob.UserID, SenderEmail: bob.Email, RecipientEmail: "alice@example.com"})

	page := utils.PaginationParams{Page: 1, Limit: 20}

	sent, total, err := svc.ListSent(context.Background(), alice, page)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 2 || len(sent) != 2 {
		t.Errorf("expected 2 sent transfers, got %d (total %d)", len(sent), total)
	}

	received, total, err := svc.ListReceived(context.Background(), bob, page)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 1 || len(received) != 1 {
		t.Errorf("expected 1 received transfer, got %d (total %d)", len(received), total)
	}

	limited, total, _ := svc.ListSent(context.Background(), alice, utils.PaginationParams{Page: 2, Limit: 1, Offset: 1})
	if total != 2 || len(limited) != 1 {
		t.Errorf("expected second page with one row, got %d (total %d)", len(limited), total)
	}

	if _, _, err := svc.ListReceived(context.Background(), Identity{}, page); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized, got %v", err)
	}
}

func TestDetectContentType(t *testing.T) {
	reader, contentType, err := detectContentType(strings.NewReader("plain words"), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(contentType, "text/plain") {
		t.Errorf("expected text/plain, got %s", contentType)
	}
	var buf bytes.Buffer
	_, _ = buf.ReadFrom(reader)
	if buf.String() != "plain words" {
		t.Errorf("expected content to survive sniffing, got %q", buf.String())
	}

	_, declared, _ := detectContentType(strings.NewReader("x"), "image/png")
	if declared != "image/png" {
		t.Errorf("expected declared type to win, got %s", declared)
	}
}
