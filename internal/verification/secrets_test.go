package verification

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SaiYadav1818/settlement-core/internal/cache"
	"github.com/SaiYadav1818/settlement-core/internal/domain/model"
	"github.com/SaiYadav1818/settlement-core/internal/hashing"
)

type mockMerchantRepo struct {
	merchants map[string]*model.Merchant
	err       error
	findCalls int
}

func (m *mockMerchantRepo) FindByID(_ context.Context, id string) (*model.Merchant, error) {
	m.findCalls++
	if m.err != nil {
		return nil, m.err
	}
	return m.merchants[id], nil
}

func (m *mockMerchantRepo) ListActive(_ context.Context) ([]model.Merchant, error) {
	return nil, nil
}

func newResolverFixture() (*mockMerchantRepo, *DirectoryResolver) {
	repo := &mockMerchantRepo{
		merchants: map[string]*model.Merchant{
			"merchant-7": {
				ID:         "merchant-7",
				IsActive:   true,
				SecretKey:  "m7-key",
				SecretSalt: "m7-salt",
			},
		},
	}
	resolver := NewDirectoryResolver(
		repo,
		cache.NewLRU[string, model.Merchant](16, time.Minute),
		hashing.Secret{Prefix: "platform-key", Suffix: "platform-salt"},
	)
	return repo, resolver
}

func TestResolveSecretMerchantScoped(t *testing.T) {
	_, resolver := newResolverFixture()

	secret, merchantID, err := resolver.ResolveSecret(context.Background(), "merchant-7")
	require.NoError(t, err)
	assert.Equal(t, "merchant-7", merchantID)
	assert.Equal(t, hashing.Secret{Prefix: "m7-key", Suffix: "m7-salt"}, secret)
}

func TestResolveSecretBlankKeyFallsBack(t *testing.T) {
	repo, resolver := newResolverFixture()

	secret, merchantID, err := resolver.ResolveSecret(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, merchantID)
	assert.Equal(t, "platform-key", secret.Prefix)
	assert.Zero(t, repo.findCalls, "blank key never hits the directory")
}

func TestResolveSecretUnknownMerchantFallsBack(t *testing.T) {
	_, resolver := newResolverFixture()

	secret, merchantID, err := resolver.ResolveSecret(context.Background(), "no-such-merchant")
	require.NoError(t, err)
	// The routing key is still reported so routing can surface it.
	assert.Equal(t, "no-such-merchant", merchantID)
	assert.Equal(t, "platform-key", secret.Prefix)
}

func TestResolveSecretUsesCache(t *testing.T) {
	repo, resolver := newResolverFixture()

	_, _, err := resolver.ResolveSecret(context.Background(), "merchant-7")
	require.NoError(t, err)
	_, _, err = resolver.ResolveSecret(context.Background(), "merchant-7")
	require.NoError(t, err)

	assert.Equal(t, 1, repo.findCalls, "second resolution comes from cache")
}
