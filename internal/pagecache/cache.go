// Package pagecache keeps raw fetched HTML in Redis so repeated runs against the
// same blog do not hit the network again within the TTL.
package pagecache

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"go.uber.org/zap"
)

const keyPrefix = "page:"

// Store is the subset of the Redis client the cache needs
type Store interface {
	GetBytes(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Del(ctx context.Context, keys ...string) error
}

// Entry is a cached page: the body plus what is needed to parse it again,
// the post-redirect URL and the response content type.
type Entry struct {
	FinalURL    string
	ContentType string
	Body        []byte
}

// ErrInvalidEntry is returned when a decompressed payload has no entry header
var ErrInvalidEntry = errors.New("invalid page cache entry")

// Cache stores compressed page entries keyed by URL hash
type Cache struct {
	store       Store
	ttl         time.Duration
	compression string
	logger      *zap.Logger
}

// New creates a page cache over store
func New(store Store, ttl time.Duration, compression string, logger *zap.Logger) *Cache {
	return &Cache{
		store:       store,
		ttl:         ttl,
		compression: compression,
		logger:      logger,
	}
}

// Key returns the Redis key for a page URL: "page:<xxhash64 hex>"
func Key(pageURL string) string {
	return keyPrefix + strconv.FormatUint(xxhash.Sum64String(pageURL), 16)
}

// Get returns the cached entry for pageURL. A corrupt entry is deleted and reported as a miss.
func (c *Cache) Get(ctx context.Context, pageURL string) (*Entry, bool, error) {
	key := Key(pageURL)

	payload, err := c.store.GetBytes(ctx, key)
	if err != nil {
		return nil, false, fmt.Errorf("page cache get: %w", err)
	}
	if payload == nil {
		return nil, false, nil
	}

	entry, err := decodePayload(payload)
	if err != nil {
		if errors.Is(err, ErrDecompression) || errors.Is(err, ErrInvalidEntry) {
			c.logger.Warn("Dropping corrupt page cache entry",
				zap.String("url", pageURL),
				zap.String("key", key),
				zap.Error(err))
			_ = c.store.Del(ctx, key)
			return nil, false, nil
		}
		return nil, false, err
	}

	return entry, true, nil
}

// Put stores entry for pageURL with the configured TTL
func (c *Cache) Put(ctx context.Context, pageURL string, entry *Entry) error {
	payload, err := Compress(encodeEntry(entry), c.compression)
	if err != nil {
		return fmt.Errorf("page cache compress: %w", err)
	}

	if err := c.store.Set(ctx, Key(pageURL), payload, c.ttl); err != nil {
		return fmt.Errorf("page cache put: %w", err)
	}

	c.logger.Debug("Cached page",
		zap.String("url", pageURL),
		zap.String("final_url", entry.FinalURL),
		zap.Int("size", len(entry.Body)),
		zap.Int("stored_size", len(payload)),
		zap.String("compression", c.compression))
	return nil
}

// encodeEntry lays an entry out as "<final url>\n<content type>\n<body>".
// Neither header value can contain a newline.
func encodeEntry(entry *Entry) []byte {
	buf := make([]byte, 0, len(entry.FinalURL)+len(entry.ContentType)+len(entry.Body)+2)
	buf = append(buf, entry.FinalURL...)
	buf = append(buf, '\n')
	buf = append(buf, strings.ReplaceAll(entry.ContentType, "\n", " ")...)
	buf = append(buf, '\n')
	return append(buf, entry.Body...)
}

func decodePayload(payload []byte) (*Entry, error) {
	raw, err := Decompress(payload)
	if err != nil {
		return nil, err
	}

	finalURL, rest, ok := bytes.Cut(raw, []byte{'\n'})
	if !ok || len(finalURL) == 0 {
		return nil, ErrInvalidEntry
	}
	contentType, body, ok := bytes.Cut(rest, []byte{'\n'})
	if !ok {
		return nil, ErrInvalidEntry
	}
	return &Entry{
		FinalURL:    string(finalURL),
		ContentType: string(contentType),
		Body:        body,
	}, nil
}
