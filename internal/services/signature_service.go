package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/davidmoltin/efiling-workflows/internal/engine"
	"github.com/davidmoltin/efiling-workflows/internal/models"
	"github.com/davidmoltin/efiling-workflows/internal/repository"
	"github.com/davidmoltin/efiling-workflows/pkg/logger"
	"github.com/google/uuid"
)

// SignatureStore persists e-signatures and exposes the movement log
type SignatureStore interface {
	WithSigningTransaction(ctx context.Context, fn func(tx repository.SigningTx) error) error
	ListSignatures(ctx context.Context, fileID uuid.UUID) ([]models.Signature, error)
}

// SignatureService applies the e-signing rules. A user signs a file once.
// The creator may sign again once per return of the file to them by a
// higher authority.
type SignatureService struct {
	store     SignatureStore
	authority map[string]struct{}
	logger    *logger.Logger
	now       func() time.Time
}

// NewSignatureService creates a signature service. authorityRoles are the
// roles whose RETURN unlocks a repeat signature.
func NewSignatureService(store SignatureStore, authorityRoles []string, log *logger.Logger) *SignatureService {
	authority := make(map[string]struct{}, len(authorityRoles))
	for _, r := range authorityRoles {
		authority[strings.ToUpper(strings.TrimSpace(r))] = struct{}{}
	}
	return &SignatureService{store: store, authority: authority, logger: log, now: time.Now}
}

// WithClock makes the service stamp signatures from now. It must share a
// clock with the engine that stamps movements.
func (s *SignatureService) WithClock(now func() time.Time) *SignatureService {
	s.now = now
	return s
}

// SignFile records actor's signature on a file. The check and the insert
// share one transaction holding the file lock.
func (s *SignatureService) SignFile(ctx context.Context, fileID uuid.UUID, actor models.Actor, signatureData string) (*models.Signature, error) {
	if strings.TrimSpace(signatureData) == "" {
		return nil, engine.InvalidAction("signature data is required")
	}

	var (
		sig    *models.Signature
		repeat bool
	)
	err := s.store.WithSigningTransaction(ctx, func(tx repository.SigningTx) error {
		file, err := tx.GetFileForUpdate(ctx, fileID)
		if errors.Is(err, repository.ErrNotFound) {
			return engine.NotFound("file %s not found", fileID)
		}
		if err != nil {
			return engine.Internal(err, "failed to load file %s", fileID)
		}

		previous, err := tx.GetLatestSignature(ctx, fileID, actor.ID)
		switch {
		case errors.Is(err, repository.ErrNotFound):
		case err != nil:
			return engine.Internal(err, "failed to load signatures on file %s", fileID)
		default:
			repeat = true
			allowed, err := s.canResign(ctx, tx, file, actor, previous)
			if err != nil {
				return err
			}
			if !allowed {
				return engine.Forbidden("file %s is already signed; re-signing requires a new return from a higher authority", file.FileNumber)
			}
		}

		sig = &models.Signature{
			ID:            uuid.New(),
			FileID:        fileID,
			UserID:        actor.ID,
			Role:          actor.Role,
			SignatureData: signatureData,
			SignedAt:      s.now().UTC(),
		}
		if err := tx.CreateSignature(ctx, sig); err != nil {
			return engine.Internal(err, "failed to store signature on file %s", fileID)
		}
		return nil
	})
	var engErr *engine.Error
	switch {
	case err == nil:
	case errors.As(err, &engErr):
		return nil, err
	case errors.Is(err, repository.ErrConflict):
		return nil, engine.Conflict(err, "concurrent signature on file %s", fileID)
	default:
		return nil, engine.Internal(err, "failed to sign file %s", fileID)
	}

	s.logger.Info("File signed",
		logger.UUID("file_id", fileID),
		logger.UUID("user_id", actor.ID),
		logger.Any("repeat", repeat),
	)
	return sig, nil
}

// canResign reports whether the file's latest movement returned it to its
// creator from a role in the authority list after the creator's previous
// signature. The actor must be the creator.
func (s *SignatureService) canResign(ctx context.Context, tx repository.SigningTx, file *models.File, actor models.Actor, previous *models.Signature) (bool, error) {
	if actor.ID != file.CreatedBy {
		return false, nil
	}

	latest, err := tx.GetLatestFileMovement(ctx, file.ID)
	if errors.Is(err, repository.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, engine.Internal(err, "failed to load movements of file %s", file.ID)
	}

	if latest.ActionType != models.MovementReturn || latest.ToUserID == nil || *latest.ToUserID != file.CreatedBy {
		return false, nil
	}
	if latest.FromRole == nil {
		return false, nil
	}
	if _, ok := s.authority[strings.ToUpper(*latest.FromRole)]; !ok {
		return false, nil
	}
	// one re-signature per return
	return previous.SignedAt.Before(latest.CreatedAt), nil
}

// ListSignatures returns a file's signatures in signing order
func (s *SignatureService) ListSignatures(ctx context.Context, fileID uuid.UUID) ([]models.Signature, error) {
	sigs, err := s.store.ListSignatures(ctx, fileID)
	if err != nil {
		return nil, engine.Internal(err, "failed to list signatures on file %s", fileID)
	}
	if sigs == nil {
		sigs = []models.Signature{}
	}
	return sigs, nil
}
