package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/davidmoltin/efiling-workflows/internal/engine"
	"github.com/davidmoltin/efiling-workflows/internal/models"
	"github.com/davidmoltin/efiling-workflows/internal/repository"
	"github.com/davidmoltin/efiling-workflows/pkg/database"
	"github.com/davidmoltin/efiling-workflows/pkg/logger"
	"github.com/lib/pq"
)

// Store is the PostgreSQL implementation of the engine store plus the
// read-side queries used by services and workers
type Store struct {
	*TemplateRepository
	*UserRepository
	*FileRepository
	*WorkflowRepository
	*StageInstanceRepository
	*ActionRepository
	*MovementRepository
	*NotificationRepository
	*SignatureRepository

	db     *database.PostgresDB
	logger *logger.Logger
}

// NewStore creates a store over db
func NewStore(db *database.PostgresDB, log *logger.Logger) *Store {
	return &Store{
		TemplateRepository:      NewTemplateRepository(db),
		UserRepository:          NewUserRepository(db),
		FileRepository:          NewFileRepository(db),
		WorkflowRepository:      NewWorkflowRepository(db),
		StageInstanceRepository: NewStageInstanceRepository(db),
		ActionRepository:        NewActionRepository(db),
		MovementRepository:      NewMovementRepository(db),
		NotificationRepository:  NewNotificationRepository(db),
		SignatureRepository:     NewSignatureRepository(db),
		db:                      db,
		logger:                  log,
	}
}

// WithTransaction runs fn in a READ COMMITTED transaction. Workflow rows
// are locked with SELECT ... FOR UPDATE and guarded by their version, so
// the weaker isolation level is enough.
func (s *Store) WithTransaction(ctx context.Context, fn func(tx engine.Tx) error) error {
	return s.inTransaction(ctx, func(sqlTx *sql.Tx) error {
		return fn(newTx(sqlTx))
	})
}

// WithSigningTransaction runs fn in a READ COMMITTED transaction over the
// file, movement and signature tables
func (s *Store) WithSigningTransaction(ctx context.Context, fn func(tx repository.SigningTx) error) error {
	return s.inTransaction(ctx, func(sqlTx *sql.Tx) error {
		return fn(&signingTx{
			FileRepository:      NewFileRepository(sqlTx),
			MovementRepository:  NewMovementRepository(sqlTx),
			SignatureRepository: NewSignatureRepository(sqlTx),
		})
	})
}

func (s *Store) inTransaction(ctx context.Context, fn func(sqlTx *sql.Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return wrapErr(err, "failed to begin transaction")
	}

	if err := fn(sqlTx); err != nil {
		if rbErr := sqlTx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			s.logger.Error("Failed to roll back transaction", logger.Err(rbErr))
		}
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return wrapErr(err, "failed to commit transaction")
	}
	return nil
}

// CreateTemplate stores a template and its stages in one transaction
func (s *Store) CreateTemplate(ctx context.Context, tmpl *models.WorkflowTemplate) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return wrapErr(err, "failed to begin transaction")
	}

	if err := NewTemplateRepository(sqlTx).CreateTemplate(ctx, tmpl); err != nil {
		_ = sqlTx.Rollback()
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return wrapErr(err, "failed to commit template %s", tmpl.Code)
	}
	return nil
}

// tx binds every repository to one *sql.Tx
type tx struct {
	*FileRepository
	*WorkflowRepository
	*StageInstanceRepository
	*ActionRepository
	*MovementRepository
	*NotificationRepository

	sqlTx *sql.Tx
}

func newTx(sqlTx *sql.Tx) *tx {
	return &tx{
		FileRepository:          NewFileRepository(sqlTx),
		WorkflowRepository:      NewWorkflowRepository(sqlTx),
		StageInstanceRepository: NewStageInstanceRepository(sqlTx),
		ActionRepository:        NewActionRepository(sqlTx),
		MovementRepository:      NewMovementRepository(sqlTx),
		NotificationRepository:  NewNotificationRepository(sqlTx),
		sqlTx:                   sqlTx,
	}
}

// Savepoint runs fn between SAVEPOINT and RELEASE, rolling back to the
// savepoint when fn fails
func (t *tx) Savepoint(ctx context.Context, name string, fn func() error) error {
	ident := pq.QuoteIdentifier(name)

	if _, err := t.sqlTx.ExecContext(ctx, "SAVEPOINT "+ident); err != nil {
		return fmt.Errorf("failed to create savepoint %s: %w", name, err)
	}

	if err := fn(); err != nil {
		if _, rbErr := t.sqlTx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT "+ident); rbErr != nil {
			return fmt.Errorf("failed to roll back to savepoint %s: %w (after %v)", name, rbErr, err)
		}
		return err
	}

	if _, err := t.sqlTx.ExecContext(ctx, "RELEASE SAVEPOINT "+ident); err != nil {
		return fmt.Errorf("failed to release savepoint %s: %w", name, err)
	}
	return nil
}

// signingTx binds the e-signing repositories to one *sql.Tx
type signingTx struct {
	*FileRepository
	*MovementRepository
	*SignatureRepository
}

var _ repository.SigningTx = (*signingTx)(nil)
var _ engine.Tx = (*tx)(nil)
var _ engine.Store = (*Store)(nil)
