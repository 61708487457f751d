// Package validation screens uploads by their declared metadata before any
// bytes are stored. Nothing here sniffs content.
package validation

import (
	"errors"
	"fmt"
	"strings"

	"github.com/samber/lo"
)

var (
	ErrFileTooLarge        = errors.New("file too large")
	ErrEmptyFile           = errors.New("empty file")
	ErrExtensionNotAllowed = errors.New("extension not allowed")
	ErrSuspiciousName      = errors.New("suspicious file name")
	ErrMimeNotAllowed      = errors.New("mime type not allowed")
)

const DefaultMaxFileSize int64 = 100 * 1024 * 1024

var defaultExtensions = []string{
	"pdf", "doc", "docx", "xls", "xlsx", "ppt", "pptx",
	"txt", "csv", "zip", "rar", "7z",
	"jpg", "jpeg", "png", "gif", "webp",
	"mp4", "mov", "avi", "mp3", "wav",
}

var defaultBlockedPatterns = []string{".exe", ".bat", ".cmd", ".com", ".scr", ".vbs", ".js"}

var defaultMimePrefixes = []string{
	"application/pdf",
	"application/msword",
	"application/vnd.openxmlformats-officedocument",
	"application/vnd.ms-excel",
	"application/vnd.ms-powerpoint",
	"text/",
	"image/",
	"video/",
	"audio/",
	"application/zip",
	"application/x-rar",
	"application/x-7z-compressed",
}

// FileInfo is what a client declares about a file.
type FileInfo struct {
	Name     string `json:"name"`
	Size     int64  `json:"size"`
	MimeType string `json:"mimeType"`
}

type Rules struct {
	MaxSize         int64
	Extensions      []string
	BlockedPatterns []string
	MimePrefixes    []string
}

func DefaultRules() Rules {
	return Rules{
		MaxSize:         DefaultMaxFileSize,
		Extensions:      append([]string(nil), defaultExtensions...),
		BlockedPatterns: append([]string(nil), defaultBlockedPatterns...),
		MimePrefixes:    append([]string(nil), defaultMimePrefixes...),
	}
}

// WithMaxSize returns a copy of r with a different size ceiling. Non-positive
// values keep the current one.
func (r Rules) WithMaxSize(maxSize int64) Rules {
	if maxSize > 0 {
		r.MaxSize = maxSize
	}
	return r
}

// Result carries the human-readable reason alongside the sentinel in Err.
type Result struct {
	Valid  bool   `json:"valid"`
	Reason string `json:"reason,omitempty"`
	Err    error  `json:"-"`
}

// RejectionError carries the user-facing reason next to the sentinel it wraps.
type RejectionError struct {
	Kind   error
	Reason string
}

func (e *RejectionError) Error() string {
	return e.Kind.Error() + ": " + e.Reason
}

func (e *RejectionError) Unwrap() error {
	return e.Kind
}

func reject(sentinel error, reason string) Result {
	return Result{Valid: false, Reason: reason, Err: &RejectionError{Kind: sentinel, Reason: reason}}
}

// Check runs the rules in order: size ceiling, empty file, extension
// allow-list, blocked name patterns, declared MIME prefix.
func (r Rules) Check(file FileInfo) Result {
	if file.Size > r.MaxSize {
		return reject(ErrFileTooLarge, fmt.Sprintf("File size exceeds maximum limit of %sMB", formatMegabytes(r.MaxSize)))
	}

	if file.Size == 0 {
		return reject(ErrEmptyFile, "Cannot upload empty files")
	}

	name := strings.ToLower(file.Name)
	ext := Extension(name)
	if !lo.Contains(r.Extensions, ext) {
		return reject(ErrExtensionNotAllowed, fmt.Sprintf("File type .%s is not allowed. Allowed types: %s", ext, strings.Join(r.Extensions, ", ")))
	}

	for _, pattern := range r.BlockedPatterns {
		if strings.Contains(name, pattern) {
			return reject(ErrSuspiciousName, "File contains suspicious patterns and cannot be uploaded")
		}
	}

	if file.MimeType != "" && !lo.ContainsBy(r.MimePrefixes, func(prefix string) bool { return strings.HasPrefix(file.MimeType, prefix) }) {
		return reject(ErrMimeNotAllowed, fmt.Sprintf("Invalid file type: %s", file.MimeType))
	}

	return Result{Valid: true}
}

// Validate is Check for callers that only need the error.
func (r Rules) Validate(file FileInfo) error {
	return r.Check(file).Err
}

// ValidateFile checks file against DefaultRules.
func ValidateFile(file FileInfo) Result {
	return DefaultRules().Check(file)
}

// Extension returns the segment after the last dot, or the whole name when
// there is no dot.
func Extension(name string) string {
	if idx := strings.LastIndex(name, "."); idx >= 0 {
		return name[idx+1:]
	}
	return name
}

func formatMegabytes(size int64) string {
	mb := float64(size) / 1024 / 1024
	if mb == float64(int64(mb)) {
		return fmt.Sprintf("%d", int64(mb))
	}
	return fmt.Sprintf("%.2f", mb)
}
