package services

import (
	"strings"

	"github.com/google/uuid"
	"github.com/securetransfer/server/internal/models"
)

// Identity is the verified caller, taken from the bearer token claims.
type Identity struct {
	UserID uuid.UUID
	Email  string
}

func (i Identity) IsZero() bool {
	return i.UserID == uuid.Nil
}

// CanAccess reports whether the caller sent or received the transfer.
func (i Identity) CanAccess(transfer *models.Transfer) bool {
	if i.IsZero() {
		return false
	}
	return transfer.IsOwnedBy(i.UserID) || transfer.IsAddressedTo(strings.TrimSpace(i.Email))
}
