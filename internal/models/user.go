package models

import (
	"time"

	"github.com/google/uuid"
)

// User is a read-only directory entry synced from the identity provider
type User struct {
	ID         uuid.UUID `json:"id" db:"id"`
	Name       string    `json:"name" db:"name"`
	Role       string    `json:"role" db:"role"`
	Department *string   `json:"department,omitempty" db:"department"`
	Active     bool      `json:"active" db:"active"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}
