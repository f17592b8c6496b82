// Package cache holds the Redis backed caches and ledgers.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/davidmoltin/efiling-workflows/internal/models"
	"github.com/google/uuid"
)

// KV is the subset of Redis used here. *database.RedisClient satisfies it.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) (bool, error)
}

// TemplateCache shares loaded workflow templates between API replicas
type TemplateCache struct {
	kv  KV
	ttl time.Duration
}

// NewTemplateCache creates a template cache; entries expire after ttl
func NewTemplateCache(kv KV, ttl time.Duration) *TemplateCache {
	return &TemplateCache{kv: kv, ttl: ttl}
}

func templateKey(id uuid.UUID) string {
	return "efiling:template:" + id.String()
}

// Get returns the cached template; found is false on a miss
func (c *TemplateCache) Get(ctx context.Context, id uuid.UUID) (*models.WorkflowTemplate, bool, error) {
	raw, found, err := c.kv.Get(ctx, templateKey(id))
	if err != nil || !found {
		return nil, false, err
	}

	tmpl := &models.WorkflowTemplate{}
	if err := json.Unmarshal(raw, tmpl); err != nil {
		return nil, false, fmt.Errorf("failed to decode cached template %s: %w", id, err)
	}
	return tmpl, true, nil
}

// Set stores tmpl
func (c *TemplateCache) Set(ctx context.Context, tmpl *models.WorkflowTemplate) error {
	raw, err := json.Marshal(tmpl)
	if err != nil {
		return fmt.Errorf("failed to encode template %s: %w", tmpl.ID, err)
	}
	return c.kv.Set(ctx, templateKey(tmpl.ID), raw, c.ttl)
}
