package models

import "github.com/google/uuid"

// Actor is the authenticated caller, resolved by the identity provider
type Actor struct {
	ID         uuid.UUID `json:"id"`
	Role       string    `json:"role"`
	Department *string   `json:"department,omitempty"`
}
