package postgres

import (
	"context"
	"time"

	"github.com/davidmoltin/efiling-workflows/internal/models"
	"github.com/google/uuid"
)

// FileRepository handles file database operations
type FileRepository struct {
	db queryer
}

// NewFileRepository creates a new file repository
func NewFileRepository(db queryer) *FileRepository {
	return &FileRepository{db: db}
}

// CreateFile registers a new file
func (r *FileRepository) CreateFile(ctx context.Context, f *models.File) error {
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO files (id, file_number, subject, created_by, department)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at`,
		f.ID, f.FileNumber, f.Subject, f.CreatedBy, f.Department,
	).Scan(&f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		return wrapErr(err, "failed to create file %s", f.FileNumber)
	}
	return nil
}

// GetFile retrieves a file by ID
func (r *FileRepository) GetFile(ctx context.Context, id uuid.UUID) (*models.File, error) {
	f := &models.File{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, file_number, subject, created_by, department, current_stage_id, created_at, updated_at
		FROM files
		WHERE id = $1`, id,
	).Scan(&f.ID, &f.FileNumber, &f.Subject, &f.CreatedBy, &f.Department, &f.CurrentStageID, &f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		return nil, rowErr(err, "failed to get file %s", id)
	}
	return f, nil
}

// GetFileForUpdate retrieves a file and locks its row
func (r *FileRepository) GetFileForUpdate(ctx context.Context, id uuid.UUID) (*models.File, error) {
	f := &models.File{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, file_number, subject, created_by, department, current_stage_id, created_at, updated_at
		FROM files
		WHERE id = $1
		FOR UPDATE`, id,
	).Scan(&f.ID, &f.FileNumber, &f.Subject, &f.CreatedBy, &f.Department, &f.CurrentStageID, &f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		return nil, rowErr(err, "failed to lock file %s", id)
	}
	return f, nil
}

// UpdateFileCurrentStage moves the file's stage pointer
func (r *FileRepository) UpdateFileCurrentStage(ctx context.Context, fileID uuid.UUID, stageID *uuid.UUID, at time.Time) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE files
		SET current_stage_id = $2, updated_at = $3
		WHERE id = $1`, fileID, stageID, at)
	if err != nil {
		return wrapErr(err, "failed to update file %s", fileID)
	}
	return expectOne(result, "file "+fileID.String())
}
