package verification

import (
	"context"
	"fmt"

	"github.com/SaiYadav1818/settlement-core/internal/cache"
	"github.com/SaiYadav1818/settlement-core/internal/domain/model"
	"github.com/SaiYadav1818/settlement-core/internal/hashing"
	"github.com/SaiYadav1818/settlement-core/internal/metrics"
	"github.com/SaiYadav1818/settlement-core/internal/store"
)

// DirectoryResolver resolves digest secrets from the merchant directory,
// falling back to the platform's own gateway credential pair when the
// routing key is blank or names no directory entry. The fallback keeps
// verification decidable for non-merchant-scoped transactions; whether
// the merchant is routable is the router's concern, not the guard's.
type DirectoryResolver struct {
	merchants store.MerchantRepository
	cache     *cache.LRU[string, model.Merchant]
	fallback  hashing.Secret
}

func NewDirectoryResolver(
	merchants store.MerchantRepository,
	merchantCache *cache.LRU[string, model.Merchant],
	fallback hashing.Secret,
) *DirectoryResolver {
	return &DirectoryResolver{
		merchants: merchants,
		cache:     merchantCache,
		fallback:  fallback,
	}
}

func (r *DirectoryResolver) ResolveSecret(ctx context.Context, routingKey string) (hashing.Secret, string, error) {
	if routingKey == "" {
		return r.fallback, "", nil
	}

	if m, ok := r.cache.Get(routingKey); ok {
		metrics.MerchantCacheHits.Inc()
		return hashing.Secret{Prefix: m.SecretKey, Suffix: m.SecretSalt}, m.ID, nil
	}
	metrics.MerchantCacheMisses.Inc()

	m, err := r.merchants.FindByID(ctx, routingKey)
	if err != nil {
		return hashing.Secret{}, "", fmt.Errorf("merchant lookup %q: %w", routingKey, err)
	}
	if m == nil {
		return r.fallback, routingKey, nil
	}

	r.cache.Put(routingKey, *m)
	return hashing.Secret{Prefix: m.SecretKey, Suffix: m.SecretSalt}, m.ID, nil
}
