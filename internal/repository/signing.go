package repository

import (
	"context"

	"github.com/davidmoltin/efiling-workflows/internal/models"
	"github.com/google/uuid"
)

// SigningTx is one e-signing transaction. GetFileForUpdate locks the file
// row until the transaction ends, so signatures on a file are serialized.
type SigningTx interface {
	GetFileForUpdate(ctx context.Context, id uuid.UUID) (*models.File, error)
	GetLatestFileMovement(ctx context.Context, fileID uuid.UUID) (*models.FileMovement, error)
	GetLatestSignature(ctx context.Context, fileID, userID uuid.UUID) (*models.Signature, error)
	CreateSignature(ctx context.Context, sig *models.Signature) error
}
