package models

import (
	"time"

	"github.com/google/uuid"
)

// Signature is an e-signature attached to a file
type Signature struct {
	ID            uuid.UUID `json:"id" db:"id"`
	FileID        uuid.UUID `json:"file_id" db:"file_id"`
	UserID        uuid.UUID `json:"user_id" db:"user_id"`
	Role          string    `json:"role" db:"role"`
	SignatureData string    `json:"signature_data" db:"signature_data"`
	SignedAt      time.Time `json:"signed_at" db:"signed_at"`
}
