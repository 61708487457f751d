// Package client talks to a SecureTransfer server over its HTTP API.
package client

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-resty/resty/v2"
	"github.com/securetransfer/server/pkg/digest"
)

// Response is the standard { success, data, error } envelope.
type Response[T any] struct {
	Success    bool        `json:"success"`
	Data       T           `json:"data"`
	Error      string      `json:"error,omitempty"`
	Pagination *Pagination `json:"pagination,omitempty"`
}

type Pagination struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"totalPages"`
}

type errorBody struct {
	Error   string `json:"error"`
	Details []struct {
		Field   string `json:"field"`
		Message string `json:"message"`
	} `json:"details,omitempty"`
}

// APIError is returned when the server sends a non-2xx status.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api: %d: %s", e.Status, e.Message)
}

type Client struct {
	BaseURL string
	Token   string
	http    *resty.Client
	// download carries no credentials; signed URLs authenticate themselves.
	download *resty.Client
}

// New creates a Client from a server base URL (e.g. http://localhost:8080)
// and an optional bearer token.
func New(baseURL, token string) *Client {
	baseURL = strings.TrimRight(baseURL, "/")
	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(5*time.Minute).
		SetHeader("Accept", "application/json")
	if token != "" {
		httpClient.SetAuthToken(token)
	}
	return &Client{
		BaseURL:  baseURL,
		Token:    token,
		http:     httpClient,
		download: resty.New().SetTimeout(30 * time.Minute),
	}
}

func (c *Client) request(ctx context.Context) *resty.Request {
	return c.http.R().SetContext(ctx).SetError(&errorBody{})
}

func asError(resp *resty.Response, err error) error {
	if err != nil {
		return err
	}
	if !resp.IsError() {
		return nil
	}
	if body, ok := resp.Error().(*errorBody); ok && body.Error != "" {
		msg := body.Error
		if len(body.Details) > 0 {
			parts := make([]string, 0, len(body.Details))
			for _, d := range body.Details {
				parts = append(parts, d.Field+": "+d.Message)
			}
			msg += " (" + strings.Join(parts, "; ") + ")"
		}
		return &APIError{Status: resp.StatusCode(), Message: msg}
	}
	return &APIError{Status: resp.StatusCode(), Message: strings.TrimSpace(resp.String())}
}

func (c *Client) Version(ctx context.Context) (VersionInfo, error) {
	var out Response[VersionInfo]
	resp, err := c.request(ctx).SetResult(&out).Get("/api/version")
	if err := asError(resp, err); err != nil {
		return VersionInfo{}, err
	}
	return out.Data, nil
}

// Check asks the server whether a file with this metadata would be accepted.
func (c *Client) Check(ctx context.Context, name string, size int64, mimeType string) (CheckResult, error) {
	var out Response[CheckResult]
	resp, err := c.request(ctx).
		SetBody(map[string]interface{}{"name": name, "size": size, "mimeType": mimeType}).
		SetResult(&out).
		Post("/api/files/validate")
	if err := asError(resp, err); err != nil {
		return CheckResult{}, err
	}
	return out.Data, nil
}

type SendRequest struct {
	Path           string
	RecipientEmail string
	Message        string
	ExpiryDate     string
	AppURL         string
	// SkipDigest leaves fileHash empty so the server does not compare.
	SkipDigest bool
}

// Send uploads a local file as a new transfer. The file digest is computed
// locally and sent along so the server can reject corrupted uploads.
func (c *Client) Send(ctx context.Context, req SendRequest) (*CreatedTransfer, error) {
	contentType := "application/octet-stream"
	if mtype, err := mimetype.DetectFile(req.Path); err == nil {
		contentType = mtype.String()
	}

	fields := map[string]string{"recipientEmail": req.RecipientEmail}
	if req.Message != "" {
		fields["message"] = req.Message
	}
	if req.ExpiryDate != "" {
		fields["expiryDate"] = req.ExpiryDate
	}
	if req.AppURL != "" {
		fields["appUrl"] = req.AppURL
	}
	if !req.SkipDigest {
		sum, err := FileDigest(req.Path)
		if err != nil {
			return nil, err
		}
		fields["fileHash"] = sum
	}

	f, err := os.Open(req.Path)
	if err != nil {
		return nil, fmt.Errorf("opening file: %w", err)
	}
	defer f.Close()

	var out Response[CreatedTransfer]
	resp, err := c.request(ctx).
		SetFormData(fields).
		SetMultipartField("file", filepath.Base(req.Path), contentType, f).
		SetResult(&out).
		Post("/api/transfers")
	if err := asError(resp, err); err != nil {
		return nil, err
	}
	return &out.Data, nil
}

func (c *Client) ListSent(ctx context.Context, page, limit int) (*Response[[]Transfer], error) {
	return c.list(ctx, "/api/transfers", page, limit)
}

func (c *Client) ListReceived(ctx context.Context, page, limit int) (*Response[[]Transfer], error) {
	return c.list(ctx, "/api/transfers/received", page, limit)
}

func (c *Client) list(ctx context.Context, path string, page, limit int) (*Response[[]Transfer], error) {
	var out Response[[]Transfer]
	resp, err := c.request(ctx).
		SetQueryParam("page", strconv.Itoa(page)).
		SetQueryParam("limit", strconv.Itoa(limit)).
		SetResult(&out).
		Get(path)
	if err := asError(resp, err); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetTransfer(ctx context.Context, id string) (*Transfer, error) {
	var out Response[Transfer]
	resp, err := c.request(ctx).SetPathParam("id", id).SetResult(&out).Get("/api/transfers/{id}")
	if err := asError(resp, err); err != nil {
		return nil, err
	}
	return &out.Data, nil
}

// ResolveToken exchanges a recipient access token for a signed URL. It needs
// no credentials.
func (c *Client) ResolveToken(ctx context.Context, token string) (*TokenResolution, error) {
	var out TokenResolution
	resp, err := c.request(ctx).
		SetBody(map[string]string{"token": token}).
		SetResult(&out).
		Post("/functions/v1/get-file-by-token")
	if err := asError(resp, err); err != nil {
		return nil, err
	}
	return &out, nil
}

// DownloadURL asks for a signed URL as the transfer's sender or recipient.
func (c *Client) DownloadURL(ctx context.Context, transferID string) (*DownloadGrant, error) {
	var out DownloadGrant
	resp, err := c.request(ctx).
		SetBody(map[string]string{"transferId": transferID}).
		SetResult(&out).
		Post("/functions/v1/get-file-download-url")
	if err := asError(resp, err); err != nil {
		return nil, err
	}
	return &out, nil
}

// Fetch streams a signed URL into w and returns the byte count and digest
// of what was written.
func (c *Client) Fetch(ctx context.Context, signedURL string, w io.Writer) (int64, string, error) {
	resp, err := c.download.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		Get(signedURL)
	if err != nil {
		return 0, "", err
	}
	body := resp.RawBody()
	defer body.Close()

	if resp.StatusCode() >= http.StatusBadRequest {
		data, _ := io.ReadAll(io.LimitReader(body, 4096))
		return 0, "", &APIError{Status: resp.StatusCode(), Message: strings.TrimSpace(string(data))}
	}

	tee := digest.NewTee(body)
	n, err := io.Copy(w, tee)
	if err != nil {
		return n, "", fmt.Errorf("downloading: %w", err)
	}
	return n, tee.Sum(), nil
}

// FileDigest hashes a local file.
func FileDigest(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening file: %w", err)
	}
	defer f.Close()

	sum, _, err := digest.Reader(f)
	if err != nil {
		return "", fmt.Errorf("hashing file: %w", err)
	}
	return sum, nil
}
