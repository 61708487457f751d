package services

import "errors"

var (
	ErrInvalidInput   = errors.New("invalid input")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrExpiryInPast   = errors.New("expiry date must be in the future")
	ErrDigestMismatch = errors.New("file digest does not match uploaded content")
	ErrUploadFailed   = errors.New("failed uploading file")
	ErrPersistFailed  = errors.New("failed saving transfer")

	ErrTokenRequired      = errors.New("access token is required")
	ErrInvalidLink        = errors.New("invalid or expired access link")
	ErrTransferExpired    = errors.New("transfer has expired")
	ErrTransferIDRequired = errors.New("transfer id is required")
	ErrTransferNotFound   = errors.New("transfer not found")
	ErrForbidden          = errors.New("not authorized to access this file")
	ErrSigningFailed      = errors.New("failed to generate download url")
)
