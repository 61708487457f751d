package client

import "time"

// Transfer mirrors the server's transfer record as returned by the API.
type Transfer struct {
	ID             string     `json:"id"`
	UserID         string     `json:"userID"`
	SenderEmail    string     `json:"senderEmail"`
	RecipientEmail string     `json:"recipientEmail"`
	FileName       string     `json:"fileName"`
	FileSize       int64      `json:"fileSize"`
	MimeType       string     `json:"mimeType"`
	FilePath       string     `json:"filePath"`
	FileHash       string     `json:"fileHash"`
	Message        *string    `json:"message,omitempty"`
	ExpiryDate     *time.Time `json:"expiryDate,omitempty"`
	Status         string     `json:"status"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}

// CreatedTransfer is the body of a successful submission.
type CreatedTransfer struct {
	Transfer           Transfer `json:"transfer"`
	AccessToken        string   `json:"accessToken"`
	NotificationSent   bool     `json:"notificationSent"`
	NotificationQueued bool     `json:"notificationQueued"`
}

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

type CheckResult struct {
	Valid  bool   `json:"valid"`
	Reason string `json:"reason,omitempty"`
}

type VersionInfo struct {
	Version    string `json:"version"`
	APIVersion string `json:"apiVersion"`
}
