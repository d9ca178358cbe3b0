package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"veritax/internal/statute/models"
	id "veritax/pkg/domain"
)

const (
	validatedKeyPrefix = "statutes:validated:"
	cacheTTL           = 5 * time.Minute
)

// Backend is the store surface the cache decorates.
type Backend interface {
	Create(ctx context.Context, override *models.Override) error
	FindByID(ctx context.Context, orgID id.OrgID, overrideID id.OverrideID) (*models.Override, error)
	ListByOrg(ctx context.Context, orgID id.OrgID) ([]*models.Override, error)
	ListValidated(ctx context.Context, orgID id.OrgID, stateCode id.StateCode, taxType id.TaxType, asOf time.Time) ([]*models.Override, error)
	Execute(ctx context.Context, orgID id.OrgID, overrideID id.OverrideID, validate func(*models.Override) error, mutate func(*models.Override)) (*models.Override, error)
}

// RedisCache is a read-through cache over ListValidated, the query on the
// threshold-evaluation hot path. Validation invalidates the affected key so
// a freshly validated override takes effect immediately, not after TTL.
// Cache failures degrade to the backend; they never fail an evaluation.
type RedisCache struct {
	Backend
	client *redis.Client
}

func NewRedisCache(backend Backend, client *redis.Client) *RedisCache {
	return &RedisCache{Backend: backend, client: client}
}

func validatedKey(orgID id.OrgID, stateCode id.StateCode, taxType id.TaxType) string {
	return fmt.Sprintf("%s%s:%s:%s", validatedKeyPrefix, orgID, stateCode, taxType)
}

func (c *RedisCache) ListValidated(ctx context.Context, orgID id.OrgID, stateCode id.StateCode, taxType id.TaxType, asOf time.Time) ([]*models.Override, error) {
	key := validatedKey(orgID, stateCode, taxType)

	cached, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		var overrides []*models.Override
		if err := json.Unmarshal(cached, &overrides); err == nil {
			return filterEffective(overrides, asOf), nil
		}
	} else if !errors.Is(err, redis.Nil) {
		// Degrade to the backend on cache outage.
		return c.Backend.ListValidated(ctx, orgID, stateCode, taxType, asOf)
	}

	// Cache the full validated set; asOf filtering happens on read so one
	// key serves every evaluation date.
	overrides, err := c.Backend.ListValidated(ctx, orgID, stateCode, taxType, farFuture)
	if err != nil {
		return nil, err
	}
	if payload, err := json.Marshal(overrides); err == nil {
		_ = c.client.Set(ctx, key, payload, cacheTTL).Err()
	}
	return filterEffective(overrides, asOf), nil
}

// Execute delegates, then drops the cache key for the override's
// (state, taxType) so validation is immediately visible.
func (c *RedisCache) Execute(
	ctx context.Context,
	orgID id.OrgID,
	overrideID id.OverrideID,
	validate func(*models.Override) error,
	mutate func(*models.Override),
) (*models.Override, error) {
	override, err := c.Backend.Execute(ctx, orgID, overrideID, validate, mutate)
	if err != nil {
		return nil, err
	}
	_ = c.client.Del(ctx, validatedKey(orgID, override.StateCode, override.TaxType)).Err()
	return override, nil
}

// farFuture pulls every validated override regardless of effective date.
var farFuture = time.Date(9999, 1, 1, 0, 0, 0, 0, time.UTC)

func filterEffective(overrides []*models.Override, asOf time.Time) []*models.Override {
	var effective []*models.Override
	for _, override := range overrides {
		if !override.EffectiveDate.After(asOf) {
			effective = append(effective, override)
		}
	}
	return effective
}
