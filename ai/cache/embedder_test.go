package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/poiesic/groundwork/ai"
	"github.com/poiesic/groundwork/ai/mock"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T, opts ...Option) (*CachingEmbedder, *mock.MockEmbedder, *miniredis.Miniredis) {
	t.Helper()
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { client.Close() })

	inner := mock.NewMockEmbedder(4)
	c, err := NewCachingEmbedder(inner, client, opts...)
	require.NoError(t, err)
	return c, inner, srv
}

func TestCachingEmbedder_HitSkipsProvider(t *testing.T) {
	c, inner, _ := setup(t)
	ctx := context.Background()

	first, err := c.EmbedText(ctx, "what is the refund policy?")
	require.NoError(t, err)
	second, err := c.EmbedText(ctx, "what is the refund policy?")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, inner.CallCount())
}

func TestCachingEmbedder_TTLAndNamespace(t *testing.T) {
	c, inner, srv := setup(t, WithTTL(time.Minute), WithNamespace("text-embedding-3-small"))
	ctx := context.Background()

	_, err := c.EmbedText(ctx, "q")
	require.NoError(t, err)

	keys := srv.Keys()
	require.Len(t, keys, 1)
	assert.Contains(t, keys[0], "groundwork:qemb:text-embedding-3-small:")
	assert.Equal(t, time.Minute, srv.TTL(keys[0]))

	srv.FastForward(2 * time.Minute)
	_, err = c.EmbedText(ctx, "q")
	require.NoError(t, err)
	assert.Equal(t, 2, inner.CallCount(), "expired entry is re-embedded")
}

func TestCachingEmbedder_ModelChangeMisses(t *testing.T) {
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { client.Close() })
	ctx := context.Background()

	tests := []struct {
		name  string
		model string
		dims  int
	}{
		{"new dimension", "nomic-embed-text", 8},
		{"new model same dimension", "mxbai-embed-large", 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv.FlushAll()
			before, err := NewCachingEmbedder(mock.NewMockEmbedder(4), client,
				WithModel("openai", "nomic-embed-text", 4))
			require.NoError(t, err)
			_, err = before.EmbedText(ctx, "what is mitosis")
			require.NoError(t, err)

			inner := mock.NewMockEmbedder(tt.dims)
			after, err := NewCachingEmbedder(inner, client, WithModel("openai", tt.model, tt.dims))
			require.NoError(t, err)
			v, err := after.EmbedText(ctx, "what is mitosis")
			require.NoError(t, err)

			assert.Len(t, v, tt.dims)
			assert.Equal(t, 1, inner.CallCount())
			assert.Len(t, srv.Keys(), 2)
		})
	}
}

func TestCachingEmbedder_WrongSizeEntryIsMiss(t *testing.T) {
	c, inner, srv := setup(t, WithModel("mock", "m", 4))
	require.NoError(t, srv.Set(c.key("q"), string(encodeVector([]float32{1, 2, 3, 4, 5, 6, 7, 8}))))

	v, err := c.EmbedText(context.Background(), "q")
	require.NoError(t, err)
	assert.Len(t, v, 4)
	assert.Equal(t, 1, inner.CallCount())
}

func TestCachingEmbedder_CorruptEntry(t *testing.T) {
	c, inner, srv := setup(t)
	require.NoError(t, srv.Set(c.key("q"), "garbage"))

	v, err := c.EmbedText(context.Background(), "q")
	require.NoError(t, err)
	assert.Len(t, v, 4)
	assert.Equal(t, 1, inner.CallCount())
}

func TestCachingEmbedder_RedisDown(t *testing.T) {
	c, inner, srv := setup(t)
	srv.Close()

	v, err := c.EmbedText(context.Background(), "q")
	require.NoError(t, err, "cache failures fall back to the provider")
	assert.Len(t, v, 4)
	assert.Equal(t, 1, inner.CallCount())
}

func TestCachingEmbedder_ProviderError(t *testing.T) {
	c, inner, srv := setup(t)
	inner.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		return nil, ai.ProviderError(errors.New("down"))
	}

	_, err := c.EmbedText(context.Background(), "q")
	assert.ErrorIs(t, err, ai.ErrEmbeddingProvider)
	assert.Empty(t, srv.Keys(), "failures are not cached")
}

func TestCachingEmbedder_EmbedTextsPassThrough(t *testing.T) {
	c, inner, srv := setup(t)

	got, err := c.EmbedTexts(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Equal(t, 1, inner.CallCount())
	assert.Empty(t, srv.Keys())
}

func TestVectorCodec(t *testing.T) {
	v := []float32{0.25, -1, 3.5}
	got, err := decodeVector(encodeVector(v))
	require.NoError(t, err)
	assert.Equal(t, v, got)

	_, err = decodeVector(encodeVector(v)[:5])
	assert.Error(t, err)
}

func TestConnect(t *testing.T) {
	srv := miniredis.RunT(t)

	client, err := Connect(context.Background(), srv.Addr())
	require.NoError(t, err)
	client.Close()

	client, err = Connect(context.Background(), "redis://"+srv.Addr()+"/0")
	require.NoError(t, err)
	client.Close()

	srv.Close()
	_, err = Connect(context.Background(), srv.Addr())
	assert.Error(t, err)
}
