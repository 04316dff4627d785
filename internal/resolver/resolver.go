// Package resolver translates free-text category and brand names into
// reference ids, caching positive lookups in Redis.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/shopcore/catalog/internal/domain"
	"github.com/shopcore/catalog/internal/repository"
	apperrors "github.com/shopcore/catalog/pkg/errors"
)

const keyPrefix = "catalog:ref:"

// DefaultTTL is how long a resolved name stays cached.
const DefaultTTL = 5 * time.Minute

// Resolver looks up the first reference whose name contains a given text.
// A nil cache client or a zero TTL disables caching.
type Resolver struct {
	refs   repository.ReferenceRepository
	cache  *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// New creates a Resolver backed by refs.
func New(refs repository.ReferenceRepository, cache *redis.Client, ttl time.Duration, logger *slog.Logger) *Resolver {
	return &Resolver{
		refs:   refs,
		cache:  cache,
		ttl:    ttl,
		logger: logger,
	}
}

func (r *Resolver) cacheEnabled() bool {
	return r.cache != nil && r.ttl > 0
}

func cacheKey(kind domain.ReferenceKind, name string) string {
	return keyPrefix + string(kind) + ":" + strings.ToLower(name)
}

// Resolve returns the id of the first entity of kind whose name contains name
// case-insensitively. ok is false when nothing matches; that is not an error.
func (r *Resolver) Resolve(ctx context.Context, kind domain.ReferenceKind, name string) (string, bool, error) {
	if !kind.Valid() {
		return "", false, fmt.Errorf("resolve %s: unknown reference kind", kind)
	}
	if name == "" {
		return "", false, nil
	}

	key := cacheKey(kind, name)

	if r.cacheEnabled() {
		id, err := r.cache.Get(ctx, key).Result()
		switch {
		case err == nil:
			return id, true, nil
		case errors.Is(err, redis.Nil):
		default:
			r.logger.WarnContext(ctx, "reference cache read failed",
				slog.String("key", key),
				slog.String("error", err.Error()),
			)
		}
	}

	ref, err := r.refs.FindFirstByName(ctx, kind, name)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("resolve %s %q: %w", kind, name, err)
	}

	if r.cacheEnabled() {
		if err := r.cache.Set(ctx, key, ref.ID, r.ttl).Err(); err != nil {
			r.logger.WarnContext(ctx, "reference cache write failed",
				slog.String("key", key),
				slog.String("error", err.Error()),
			)
		}
	}

	return ref.ID, true, nil
}

// Invalidate drops every cached resolution of kind.
func (r *Resolver) Invalidate(ctx context.Context, kind domain.ReferenceKind) error {
	if r.cache == nil {
		return nil
	}

	pattern := keyPrefix + string(kind) + ":*"
	var removed int64

	iter := r.cache.Scan(ctx, 0, pattern, 100).Iterator()
	var batch []string
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == 100 {
			n, err := r.cache.Del(ctx, batch...).Result()
			if err != nil {
				return fmt.Errorf("redis del %s keys: %w", kind, err)
			}
			removed += n
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("redis scan %s keys: %w", kind, err)
	}
	if len(batch) > 0 {
		n, err := r.cache.Del(ctx, batch...).Result()
		if err != nil {
			return fmt.Errorf("redis del %s keys: %w", kind, err)
		}
		removed += n
	}

	r.logger.InfoContext(ctx, "reference cache invalidated",
		slog.String("kind", string(kind)),
		slog.Int64("removed", removed),
	)
	return nil
}
