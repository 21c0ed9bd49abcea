package export

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// Compression selects how an artifact is encoded before it is stored.
type Compression string

const (
	CompressionNone Compression = "none"
	CompressionGzip Compression = "gzip"
	CompressionZstd Compression = "zstd"
)

// ParseCompression accepts none|gzip|zstd; empty means none.
func ParseCompression(raw string) (Compression, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "none":
		return CompressionNone, nil
	case "gzip", "gz":
		return CompressionGzip, nil
	case "zstd", "zst":
		return CompressionZstd, nil
	default:
		return "", fmt.Errorf("invalid compression %q (expected none|gzip|zstd)", raw)
	}
}

// Extension is appended to the artifact name.
func (c Compression) Extension() string {
	switch c {
	case CompressionGzip:
		return ".gz"
	case CompressionZstd:
		return ".zst"
	default:
		return ""
	}
}

// ContentType of an artifact encoded with c.
func (c Compression) ContentType() string {
	switch c {
	case CompressionGzip:
		return "application/gzip"
	case CompressionZstd:
		return "application/zstd"
	default:
		return ContentType
	}
}

// Compress encodes data with c and returns the adjusted artifact name.
func Compress(name string, data []byte, c Compression) (string, []byte, error) {
	var buf bytes.Buffer
	var w io.WriteCloser
	switch c {
	case "", CompressionNone:
		return name, data, nil
	case CompressionGzip:
		gw, err := gzip.NewWriterLevel(&buf, gzip.BestCompression)
		if err != nil {
			return "", nil, err
		}
		gw.Name = name
		w = gw
	case CompressionZstd:
		zw, err := zstd.NewWriter(&buf, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
		if err != nil {
			return "", nil, err
		}
		w = zw
	default:
		return "", nil, fmt.Errorf("unsupported compression %q", c)
	}

	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return "", nil, fmt.Errorf("compress %s: %w", name, err)
	}
	if err := w.Close(); err != nil {
		return "", nil, fmt.Errorf("compress %s: %w", name, err)
	}
	return name + c.Extension(), buf.Bytes(), nil
}
