package postgres

import (
	"context"
	"fmt"

	"github.com/davidmoltin/efiling-workflows/internal/models"
	"github.com/google/uuid"
)

const movementColumns = `
	id, file_id, from_user_id, from_role, to_user_id, action_type, remarks,
	created_at, workflow_action_id, stage_transition_id`

// MovementRepository appends and reads the file movement log. Rows are
// append-only; a trigger rejects updates and deletes.
type MovementRepository struct {
	db queryer
}

// NewMovementRepository creates a new movement repository
func NewMovementRepository(db queryer) *MovementRepository {
	return &MovementRepository{db: db}
}

func scanMovement(row rowScanner) (*models.FileMovement, error) {
	m := &models.FileMovement{}
	err := row.Scan(
		&m.ID, &m.FileID, &m.FromUserID, &m.FromRole, &m.ToUserID, &m.ActionType, &m.Remarks,
		&m.CreatedAt, &m.WorkflowActionID, &m.StageTransitionID,
	)
	return m, err
}

// CreateFileMovement appends one custody change
func (r *MovementRepository) CreateFileMovement(ctx context.Context, m *models.FileMovement) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO file_movements (`+movementColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		m.ID, m.FileID, m.FromUserID, m.FromRole, m.ToUserID, m.ActionType, m.Remarks,
		m.CreatedAt, m.WorkflowActionID, m.StageTransitionID,
	)
	if err != nil {
		return wrapErr(err, "failed to record %s movement of file %s", m.ActionType, m.FileID)
	}
	return nil
}

// ListFileMovements returns the full movement history of a file, oldest
// first. Cost grows with the history length.
func (r *MovementRepository) ListFileMovements(ctx context.Context, fileID uuid.UUID) ([]models.FileMovement, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+movementColumns+` FROM file_movements WHERE file_id = $1 ORDER BY created_at, seq`, fileID)
	if err != nil {
		return nil, wrapErr(err, "failed to list movements of file %s", fileID)
	}
	defer rows.Close()

	var movements []models.FileMovement
	for rows.Next() {
		m, err := scanMovement(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan movement: %w", err)
		}
		movements = append(movements, *m)
	}
	return movements, rows.Err()
}

// GetLatestFileMovement returns the most recent movement of a file
func (r *MovementRepository) GetLatestFileMovement(ctx context.Context, fileID uuid.UUID) (*models.FileMovement, error) {
	m, err := scanMovement(r.db.QueryRowContext(ctx,
		`SELECT `+movementColumns+` FROM file_movements WHERE file_id = $1 ORDER BY created_at DESC, seq DESC LIMIT 1`, fileID))
	if err != nil {
		return nil, rowErr(err, "failed to get latest movement of file %s", fileID)
	}
	return m, nil
}
