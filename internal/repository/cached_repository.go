package repository

import (
	"context"

	"github.com/jmdto/linkshort/internal/cache"
	"github.com/jmdto/linkshort/internal/metrics"
	"github.com/jmdto/linkshort/internal/models"
)

// CachedLinkRepository wraps a LinkRepository with a read-through cache on
// the two lookups the redirect hot path performs. Cache failures are never
// surfaced; the database remains the source of truth.
//
// Mutations invalidate rather than update: the next lookup repopulates.
// Existence checks deliberately bypass the cache, since allocation
// correctness depends on the store's view, not a possibly stale copy.
type CachedLinkRepository struct {
	LinkRepository
	cache *cache.LinkCache
}

// NewCachedLinkRepository creates a cached link repository.
func NewCachedLinkRepository(repo LinkRepository, linkCache *cache.LinkCache) *CachedLinkRepository {
	return &CachedLinkRepository{LinkRepository: repo, cache: linkCache}
}

// GetByCode checks the cache first, falling back to the database.
func (c *CachedLinkRepository) GetByCode(ctx context.Context, code string) (*models.Link, error) {
	if cached, err := c.cache.GetLink(ctx, code); err == nil {
		metrics.CacheHitsTotal.Inc()
		return cached, nil
	}
	metrics.CacheMissesTotal.Inc()

	link, err := c.LinkRepository.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}

	_ = c.cache.SetLink(ctx, link)
	return link, nil
}

// GetVariantByCode checks the cache first, falling back to the database.
func (c *CachedLinkRepository) GetVariantByCode(ctx context.Context, code string) (*models.Variant, error) {
	if cached, err := c.cache.GetVariant(ctx, code); err == nil {
		metrics.CacheHitsTotal.Inc()
		return cached, nil
	}
	metrics.CacheMissesTotal.Inc()

	variant, err := c.LinkRepository.GetVariantByCode(ctx, code)
	if err != nil {
		return nil, err
	}

	_ = c.cache.SetVariant(ctx, variant)
	return variant, nil
}

// UpdateLongURL updates the link and evicts it, along with its variants:
// variant cache entries embed the parent's destination.
func (c *CachedLinkRepository) UpdateLongURL(ctx context.Context, id, longURL string) (*models.Link, error) {
	link, err := c.LinkRepository.UpdateLongURL(ctx, id, longURL)
	if err != nil {
		return nil, err
	}
	c.evictLinkTree(ctx, id, link.ShortCode)
	return link, nil
}

// Delete evicts the link and its variants before the cascade removes them.
func (c *CachedLinkRepository) Delete(ctx context.Context, id string) error {
	if link, err := c.LinkRepository.GetByID(ctx, id); err == nil {
		codes := make([]string, 0, len(link.Variants))
		for _, v := range link.Variants {
			codes = append(codes, v.ShortCode)
		}
		_ = c.cache.DeleteLink(ctx, link.ShortCode)
		_ = c.cache.DeleteVariants(ctx, codes...)
	}
	return c.LinkRepository.Delete(ctx, id)
}

// DeleteVariant removes the variant and evicts its cache entry.
func (c *CachedLinkRepository) DeleteVariant(ctx context.Context, id string) (string, error) {
	code, err := c.LinkRepository.DeleteVariant(ctx, id)
	if err != nil {
		return "", err
	}
	_ = c.cache.DeleteVariants(ctx, code)
	return code, nil
}

// HealthCheck verifies both the cache and the underlying repository.
func (c *CachedLinkRepository) HealthCheck(ctx context.Context) error {
	if err := c.cache.Ping(ctx); err != nil {
		return err
	}
	return c.LinkRepository.HealthCheck(ctx)
}

func (c *CachedLinkRepository) evictLinkTree(ctx context.Context, id, shortCode string) {
	_ = c.cache.DeleteLink(ctx, shortCode)
	if link, err := c.LinkRepository.GetByID(ctx, id); err == nil {
		codes := make([]string, 0, len(link.Variants))
		for _, v := range link.Variants {
			codes = append(codes, v.ShortCode)
		}
		_ = c.cache.DeleteVariants(ctx, codes...)
	}
}
