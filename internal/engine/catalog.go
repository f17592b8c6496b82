package engine

import (
	"context"
	"errors"
	"sync"

	"github.com/davidmoltin/efiling-workflows/internal/models"
	"github.com/davidmoltin/efiling-workflows/internal/repository"
	"github.com/davidmoltin/efiling-workflows/internal/validators"
	"github.com/davidmoltin/efiling-workflows/pkg/logger"
	"github.com/davidmoltin/efiling-workflows/pkg/metrics"
	"github.com/google/uuid"
)

// TemplateCache is a shared second-level cache in front of the template source
type TemplateCache interface {
	Get(ctx context.Context, id uuid.UUID) (*models.WorkflowTemplate, bool, error)
	Set(ctx context.Context, tmpl *models.WorkflowTemplate) error
}

// Catalog is the read-only stage lookup. Templates are immutable, so a
// loaded template is kept in process for the life of the catalog.
type Catalog struct {
	source    TemplateSource
	shared    TemplateCache
	validator *validators.TemplateValidator
	metrics   *metrics.Metrics
	logger    *logger.Logger

	mu    sync.RWMutex
	local map[uuid.UUID]*models.WorkflowTemplate
}

// NewCatalog creates a catalog. shared and m may be nil.
func NewCatalog(source TemplateSource, shared TemplateCache, m *metrics.Metrics, log *logger.Logger) *Catalog {
	return &Catalog{
		source:    source,
		shared:    shared,
		validator: validators.NewTemplateValidator(),
		metrics:   m,
		logger:    log,
		local:     make(map[uuid.UUID]*models.WorkflowTemplate),
	}
}

// Template returns the template with stages sorted by order. An unknown or
// malformed template is a configuration fault and reported as INTERNAL.
func (c *Catalog) Template(ctx context.Context, id uuid.UUID) (*models.WorkflowTemplate, error) {
	c.mu.RLock()
	tmpl, ok := c.local[id]
	c.mu.RUnlock()
	if ok {
		c.metrics.TemplateLookup("local", "hit")
		return tmpl, nil
	}

	if c.shared != nil {
		cached, found, err := c.shared.Get(ctx, id)
		switch {
		case err != nil:
			c.logger.Warnf("Template cache read failed for %s: %v", id, err)
		case found:
			c.metrics.TemplateLookup("shared", "hit")
			return c.remember(cached), nil
		default:
			c.metrics.TemplateLookup("shared", "miss")
		}
	}

	tmpl, err := c.source.GetTemplate(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, Internal(err, "workflow template %s is not configured", id)
	}
	if err != nil {
		return nil, Internal(err, "failed to load workflow template %s", id)
	}
	if err := c.validator.Validate(tmpl); err != nil {
		return nil, Internal(err, "workflow template %s is malformed", id)
	}
	c.metrics.TemplateLookup("source", "hit")

	tmpl = c.remember(tmpl)
	if c.shared != nil {
		if err := c.shared.Set(ctx, tmpl); err != nil {
			c.logger.Warnf("Template cache write failed for %s: %v", id, err)
		}
	}

	return tmpl, nil
}

func (c *Catalog) remember(tmpl *models.WorkflowTemplate) *models.WorkflowTemplate {
	tmpl.SortStages()
	c.mu.Lock()
	c.local[tmpl.ID] = tmpl
	c.mu.Unlock()
	return tmpl
}

// FirstStage returns the stage with order 1
func (c *Catalog) FirstStage(tmpl *models.WorkflowTemplate) (*models.StageDefinition, error) {
	stage, ok := tmpl.StageByOrder(1)
	if !ok {
		return nil, Internal(nil, "workflow template %s has no first stage", tmpl.ID)
	}
	return stage, nil
}

// NextStage returns the stage after currentOrder, or false when the
// workflow is at its final stage
func (c *Catalog) NextStage(tmpl *models.WorkflowTemplate, currentOrder int) (*models.StageDefinition, bool) {
	return tmpl.StageByOrder(currentOrder + 1)
}
