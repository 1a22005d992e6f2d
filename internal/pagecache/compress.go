package pagecache

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/snappy"
	"github.com/pierrec/lz4/v4"

	"github.com/edgecomet/blogkeywords/pkg/types"
)

// ErrDecompression is returned when a cached payload cannot be decoded.
// Use errors.Is(err, ErrDecompression) to check for decompression errors.
var ErrDecompression = errors.New("decompression failed")

// Compress encodes content with the given algorithm and prefixes the result with
// a one-byte marker naming the encoding. Content below types.CompressionMinSize,
// or an unknown algorithm, is stored raw.
func Compress(content []byte, algorithm string) ([]byte, error) {
	if len(content) < types.CompressionMinSize {
		return withMarker(types.MarkerRaw, content), nil
	}

	switch algorithm {
	case types.CompressionSnappy:
		return withMarker(types.MarkerSnappy, snappy.Encode(nil, content)), nil

	case types.CompressionLZ4:
		var buf bytes.Buffer
		buf.WriteByte(types.MarkerLZ4)
		w := lz4.NewWriter(&buf)
		if _, err := w.Write(content); err != nil {
			w.Close()
			return nil, fmt.Errorf("lz4 compression failed: %w", err)
		}
		if err := w.Close(); err != nil {
			return nil, fmt.Errorf("lz4 compression close failed: %w", err)
		}
		return buf.Bytes(), nil

	default:
		return withMarker(types.MarkerRaw, content), nil
	}
}

// Decompress reverses Compress using the leading marker byte
func Decompress(payload []byte) ([]byte, error) {
	if len(payload) == 0 {
		return nil, fmt.Errorf("%w: empty payload", ErrDecompression)
	}

	marker, body := payload[0], payload[1:]
	switch marker {
	case types.MarkerRaw:
		return body, nil

	case types.MarkerSnappy:
		decoded, err := snappy.Decode(nil, body)
		if err != nil {
			return nil, fmt.Errorf("%w: snappy: %v", ErrDecompression, err)
		}
		return decoded, nil

	case types.MarkerLZ4:
		decoded, err := io.ReadAll(lz4.NewReader(bytes.NewReader(body)))
		if err != nil {
			return nil, fmt.Errorf("%w: lz4: %v", ErrDecompression, err)
		}
		return decoded, nil

	default:
		return nil, fmt.Errorf("%w: unknown marker %d", ErrDecompression, marker)
	}
}

func withMarker(marker byte, content []byte) []byte {
	out := make([]byte, 0, len(content)+1)
	out = append(out, marker)
	return append(out, content...)
}
