package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/google/uuid"
	"github.com/securetransfer/server/internal/config"
	"github.com/securetransfer/server/internal/mailer"
	"github.com/securetransfer/server/internal/middleware"
	"github.com/securetransfer/server/internal/models"
	"github.com/securetransfer/server/internal/services"
	"github.com/securetransfer/server/internal/validation"
	"github.com/securetransfer/server/pkg/logger"
	"github.com/securetransfer/server/pkg/utils"
	"gorm.io/gorm"
)

var testSetupOnce sync.Once

type testEnv struct {
	app      *fiber.App
	db       *gorm.DB
	store    *memoryStore
	sender   *recordingSender
	resolver *services.ResolverService
	clock    *testClock
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()

	testSetupOnce.Do(func() {
		logger.Init()
		utils.ConfigureJWT("test-secret", 24)
	})

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed opening in-memory sqlite database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed getting sql.DB from gorm: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	t.Cleanup(func() {
		_ = sqlDB.Close()
	})

	if err := db.AutoMigrate(&models.Transfer{}, &models.NotificationJob{}); err != nil {
		t.Fatalf("failed automigrating models: %v", err)
	}

	clock := &testClock{now: time.Now().UTC()}
	store := newMemoryStore()
	sender := &recordingSender{}
	rules := validation.DefaultRules()

	notifier := services.NewNotificationService(db, sender,
		mailer.Composer{From: "SecureTransfer <onboarding@resend.dev>", DefaultAppURL: "http://localhost:5173"},
		config.NotifyConfig{QueueBufferSize: 10, MaxAttempts: 2, RetryDelay: 0},
	)
	t.Cleanup(notifier.Close)
	transferService := services.NewTransferService(db, store, notifier, rules)
	transferService.Now = clock.Now
	resolver := services.NewResolverService(db, store)
	resolver.Now = clock.Now

	app := fiber.New(fiber.Config{BodyLimit: 101 * 1024 * 1024})
	app.Use(recover.New(recover.Config{EnableStackTrace: true}))
	app.Use(middleware.CORS("http://localhost:5173"))
	app.Use(middleware.RequestLogger())
	app.Use(middleware.SecurityLogger())

	RegisterRoutes(app, Handlers{
		Transfers: NewTransfersHandler(transferService, resolver),
		Functions: NewFunctionsHandler(resolver, notifier),
		Download:  NewDownloadHandler(resolver),
		Validate:  NewValidateHandler(rules),
	})

	return &testEnv{app: app, db: db, store: store, sender: sender, resolver: resolver, clock: clock}
}

type testUser struct {
	ID    uuid.UUID
	Email string
	Token string
}

func createTestUser(t *testing.T, email string) testUser {
	t.Helper()
	id := uuid.New()
	token, err := utils.GenerateToken(id, email)
	if err != nil {
		t.Fatalf("failed generating auth token: %v", err)
	}
	return testUser{ID: id, Email: email, Token: token}
}

func authHeaders(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

func performRequest(t *testing.T, app *fiber.App, method, path string, body io.Reader, headers map[string]string) *http.Response {
	t.Helper()

	req := httptest.NewRequest(method, path, body)
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := app.Test(req, int((10 * time.Second).Milliseconds()))
	if err != nil {
		t.Fatalf("request %s %s failed: %v", method, path, err)
	}

	return resp
}

func performJSONRequest(t *testing.T, app *fiber.App, method, path string, payload any, headers map[string]string) *http.Response {
	t.Helper()

	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("failed to marshal payload: %v", err)
		}
		body = bytes.NewReader(encoded)
	}

	requestHeaders := map[string]string{}
	for key, value := range headers {
		requestHeaders[key] = value
	}
	if payload != nil {
		requestHeaders["Content-Type"] = "application/json"
	}

	return performRequest(t, app, method, path, body, requestHeaders)
}

type uploadForm struct {
	FileName    string
	ContentType string
	Content     []byte
	Fields      map[string]string
}

func performUpload(t *testing.T, app *fiber.App, form uploadForm, headers map[string]string) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	for key, value := range form.Fields {
		if err := writer.WriteField(key, value); err != nil {
			t.Fatalf("failed writing field %s: %v", key, err)
		}
	}

	partHeader := make(textproto.MIMEHeader)
	partHeader.Set("Content-Disposition", `form-data; name="file"; filename="`+form.FileName+`"`)
	if form.ContentType != "" {
		partHeader.Set("Content-Type", form.ContentType)
	}
	part, err := writer.CreatePart(partHeader)
	if err != nil {
		t.Fatalf("failed creating file part: %v", err)
	}
	if _, err := part.Write(form.Content); err != nil {
		t.Fatalf("failed writing file part: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("failed closing multipart writer: %v", err)
	}

	requestHeaders := map[string]string{"Content-Type": writer.FormDataContentType()}
	for key, value := range headers {
		requestHeaders[key] = value
	}
	return performRequest(t, app, http.MethodPost, "/api/transfers", &buf, requestHeaders)
}

func decodeJSONMap(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed reading response body: %v", err)
	}

	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		t.Fatalf("failed decoding JSON response: %v body=%q", err, string(raw))
	}

	return payload
}

func assertStatus(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Fatalf("expected status %d, got %d", expected, resp.StatusCode)
	}
}

func assertEnvelopeError(t *testing.T, body map[string]any, expected string) {
	t.Helper()
	if success, _ := body["success"].(bool); success {
		t.Fatalf("expected success=false, got %+v", body)
	}
	if got, _ := body["error"].(string); got != expected {
		t.Fatalf("expected error %q, got %q", expected, got)
	}
}

func pdfBytes(size int) []byte {
	data := bytes.Repeat([]byte{'0'}, size)
	copy(data, []byte("%PDF-1.4\n"))
	return data
}

type memoryStore struct {
	mu         sync.Mutex
	objects    map[string][]byte
	presignErr error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{objects: map[string][]byte{}}
}

func (m *memoryStore) Upload(_ context.Context, objectName string, reader io.Reader, _ int64, _ string) error {
	data, err := io.ReadAll(reader)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[objectName] = data
	return nil
}

func (m *memoryStore) Delete(_ context.Context, objectName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, objectName)
	return nil
}

func (m *memoryStore) PresignedGetURL(ctx context.Context, objectName string, expiry time.Duration) (string, error) {
	return m.PresignedGetURLWithResponse(ctx, objectName, expiry, "", "")
}

func (m *memoryStore) PresignedGetURLWithResponse(_ context.Context, objectName string, expiry time.Duration, _ string, _ string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.presignErr != nil {
		return "", m.presignErr
	}
	if _, ok := m.objects[objectName]; !ok {
		return "", errors.New("object not found")
	}
	return "https://storage.test/secure-transfers/" + objectName + "?X-Amz-Expires=" + expiry.String(), nil
}

func (m *memoryStore) EnsureBucket(context.Context) error { return nil }

func (m *memoryStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects)
}

type recordingSender struct {
	mu   sync.Mutex
	fail bool
	sent []mailer.Message
}

func (r *recordingSender) Send(_ context.Context, msg mailer.Message) (mailer.SendResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return mailer.SendResult{}, errors.New("provider offline")
	}
	r.sent = append(r.sent, msg)
	return mailer.SendResult{ID: "email_" + uuid.NewString()}, nil
}

func (r *recordingSender) messages() []mailer.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]mailer.Message(nil), r.sent...)
}
