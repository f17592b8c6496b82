package models

import (
	"time"

	"github.com/google/uuid"
)

// File is the e-file routed through a workflow. Only the fields the
// workflow engine reads or maintains are modelled here.
type File struct {
	ID             uuid.UUID  `json:"id" db:"id"`
	FileNumber     string     `json:"file_number" db:"file_number"`
	Subject        string     `json:"subject" db:"subject"`
	CreatedBy      uuid.UUID  `json:"created_by" db:"created_by"`
	Department     *string    `json:"department,omitempty" db:"department"`
	CurrentStageID *uuid.UUID `json:"current_stage_id,omitempty" db:"current_stage_id"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at" db:"updated_at"`
}
