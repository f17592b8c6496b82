package postgres

import (
	"context"
	"fmt"

	"github.com/davidmoltin/efiling-workflows/internal/models"
	"github.com/google/uuid"
)

// SignatureRepository stores e-signatures on files
type SignatureRepository struct {
	db queryer
}

// NewSignatureRepository creates a new signature repository
func NewSignatureRepository(db queryer) *SignatureRepository {
	return &SignatureRepository{db: db}
}

// CountSignatures counts a user's signatures on a file
func (r *SignatureRepository) CountSignatures(ctx context.Context, fileID, userID uuid.UUID) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM file_signatures WHERE file_id = $1 AND user_id = $2`, fileID, userID,
	).Scan(&n)
	if err != nil {
		return 0, wrapErr(err, "failed to count signatures on file %s", fileID)
	}
	return n, nil
}

// GetLatestSignature returns a user's newest signature on a file
func (r *SignatureRepository) GetLatestSignature(ctx context.Context, fileID, userID uuid.UUID) (*models.Signature, error) {
	var s models.Signature
	err := r.db.QueryRowContext(ctx, `
		SELECT id, file_id, user_id, role, signature_data, signed_at
		FROM file_signatures
		WHERE file_id = $1 AND user_id = $2
		ORDER BY signed_at DESC, id DESC
		LIMIT 1`, fileID, userID,
	).Scan(&s.ID, &s.FileID, &s.UserID, &s.Role, &s.SignatureData, &s.SignedAt)
	if err != nil {
		return nil, rowErr(err, "failed to get latest signature on file %s", fileID)
	}
	return &s, nil
}

// CreateSignature stores a signature
func (r *SignatureRepository) CreateSignature(ctx context.Context, sig *models.Signature) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO file_signatures (id, file_id, user_id, role, signature_data, signed_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		sig.ID, sig.FileID, sig.UserID, sig.Role, sig.SignatureData, sig.SignedAt,
	)
	if err != nil {
		return wrapErr(err, "failed to store signature on file %s", sig.FileID)
	}
	return nil
}

// ListSignatures returns a file's signatures in signing order
func (r *SignatureRepository) ListSignatures(ctx context.Context, fileID uuid.UUID) ([]models.Signature, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, file_id, user_id, role, signature_data, signed_at
		FROM file_signatures
		WHERE file_id = $1
		ORDER BY signed_at`, fileID)
	if err != nil {
		return nil, wrapErr(err, "failed to list signatures on file %s", fileID)
	}
	defer rows.Close()

	var sigs []models.Signature
	for rows.Next() {
		var s models.Signature
		if err := rows.Scan(&s.ID, &s.FileID, &s.UserID, &s.Role, &s.SignatureData, &s.SignedAt); err != nil {
			return nil, fmt.Errorf("failed to scan signature: %w", err)
		}
		sigs = append(sigs, s)
	}
	return sigs, rows.Err()
}
