package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/iho/ledgercore/internal/domain"
)

// Resolver maps an external entity reference, either an ID or a business
// code, to the stable entity ID. Only IDs are ever persisted.
type Resolver struct {
	entityRepo EntityRepository
	cache      Cache
	ttl        time.Duration
}

// NewResolver creates a Resolver. cache may be nil.
func NewResolver(entityRepo EntityRepository, cache Cache, ttl time.Duration) *Resolver {
	if ttl <= 0 {
		ttl = DefaultResolverCacheTTL
	}
	return &Resolver{
		entityRepo: entityRepo,
		cache:      cache,
		ttl:        ttl,
	}
}

// Resolve returns the entity ID for ref. An unmapped ref fails with
// domain.ErrUnknownReference.
func (r *Resolver) Resolve(ctx context.Context, ref string) (string, error) {
	entity, err := r.ResolveEntity(ctx, ref)
	if err != nil {
		return "", err
	}
	return entity.ID, nil
}

// ResolveEntity resolves ref and loads the entity.
func (r *Resolver) ResolveEntity(ctx context.Context, ref string) (*domain.Entity, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, domain.ErrMissingEntity
	}

	if r.cache != nil {
		if entity, err := r.cached(ctx, ref); entity != nil || err != nil {
			return entity, err
		}
	}

	entity, err := r.lookup(ctx, ref)
	if err != nil {
		return nil, err
	}

	if r.cache != nil && entity.Code != nil && *entity.Code == ref {
		_ = r.cache.Set(ctx, codeCacheKey(ref), []byte(entity.ID), r.ttl)
	}

	return entity, nil
}

// cached returns the entity a cached code points at, or nil when there is no
// usable entry. An entry whose entity is gone or now carries another code is
// dropped.
func (r *Resolver) cached(ctx context.Context, ref string) (*domain.Entity, error) {
	id, err := r.cache.Get(ctx, codeCacheKey(ref))
	if err != nil || len(id) == 0 {
		return nil, nil
	}

	entity, err := r.entityRepo.GetByID(ctx, string(id))
	switch {
	case err == nil && entity.Code != nil && *entity.Code == ref:
		return entity, nil
	case err != nil && !errors.Is(err, domain.ErrEntityNotFound):
		return nil, err
	}

	r.Invalidate(ctx, ref)
	return nil, nil
}

// Invalidate drops cached mappings for codes.
func (r *Resolver) Invalidate(ctx context.Context, codes ...string) {
	if r.cache == nil {
		return
	}
	for _, code := range codes {
		_ = r.cache.Delete(ctx, codeCacheKey(code))
	}
}

func (r *Resolver) lookup(ctx context.Context, ref string) (*domain.Entity, error) {
	entity, err := r.entityRepo.GetByID(ctx, ref)
	if err == nil {
		return entity, nil
	}
	if !errors.Is(err, domain.ErrEntityNotFound) {
		return nil, err
	}

	entity, err = r.entityRepo.GetByCode(ctx, ref)
	if errors.Is(err, domain.ErrEntityNotFound) {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownReference, ref)
	}
	return entity, err
}

func codeCacheKey(code string) string {
	return "entity:code:" + code
}
