package pagecache

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/edgecomet/blogkeywords/internal/common/configtypes"
	"github.com/edgecomet/blogkeywords/internal/common/redis"
	"github.com/edgecomet/blogkeywords/pkg/types"
)

func newTestCache(t *testing.T, compression string) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)

	client, err := redis.NewClient(&configtypes.RedisConfig{Addr: mr.Addr()}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	return New(client, time.Hour, compression, zap.NewNop()), mr
}

func TestKey(t *testing.T) {
	a := Key("https://blog.example.com/")
	b := Key("https://blog.example.com/post")

	assert.True(t, strings.HasPrefix(a, "page:"))
	assert.NotEqual(t, a, b)
	assert.Equal(t, a, Key("https://blog.example.com/"))
}

func TestCache_PutGet(t *testing.T) {
	for _, compression := range []string{types.CompressionNone, types.CompressionSnappy, types.CompressionLZ4} {
		t.Run(compression, func(t *testing.T) {
			cache, mr := newTestCache(t, compression)
			ctx := context.Background()
			pageURL := "https://blog.example.com/2024/05/post"
			entry := &Entry{
				FinalURL:    "https://www.blog.example.com/2024/05/post/",
				ContentType: "text/html; charset=iso-8859-1",
				Body:        []byte("<html><body>" + strings.Repeat("content\n", 500) + "</body></html>"),
			}

			_, hit, err := cache.Get(ctx, pageURL)
			require.NoError(t, err)
			assert.False(t, hit)

			require.NoError(t, cache.Put(ctx, pageURL, entry))
			assert.Equal(t, time.Hour, mr.TTL(Key(pageURL)))

			got, hit, err := cache.Get(ctx, pageURL)
			require.NoError(t, err)
			assert.True(t, hit)
			assert.Equal(t, entry, got)

			mr.FastForward(61 * time.Minute)
			_, hit, err = cache.Get(ctx, pageURL)
			require.NoError(t, err)
			assert.False(t, hit)
		})
	}
}

func TestCache_CorruptEntryIsMiss(t *testing.T) {
	cache, mr := newTestCache(t, types.CompressionSnappy)
	pageURL := "https://blog.example.com/"

	require.NoError(t, mr.Set(Key(pageURL), string([]byte{types.MarkerSnappy, 0xff, 0xff})))

	_, hit, err := cache.Get(context.Background(), pageURL)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.False(t, mr.Exists(Key(pageURL)))
}

func TestCache_EntryWithoutHeaderIsMiss(t *testing.T) {
	cache, mr := newTestCache(t, types.CompressionNone)
	pageURL := "https://blog.example.com/"

	payload, err := Compress([]byte("<html>no header</html>"), types.CompressionNone)
	require.NoError(t, err)
	require.NoError(t, mr.Set(Key(pageURL), string(payload)))

	_, hit, err := cache.Get(context.Background(), pageURL)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.False(t, mr.Exists(Key(pageURL)))
}

func TestCache_EmptyBody(t *testing.T) {
	cache, _ := newTestCache(t, types.CompressionSnappy)
	ctx := context.Background()

	require.NoError(t, cache.Put(ctx, "https://blog.example.com/", &Entry{FinalURL: "https://blog.example.com/"}))

	got, hit, err := cache.Get(ctx, "https://blog.example.com/")
	require.NoError(t, err)
	require.True(t, hit)
	assert.Equal(t, "https://blog.example.com/", got.FinalURL)
	assert.Empty(t, got.ContentType)
	assert.Empty(t, got.Body)
}
