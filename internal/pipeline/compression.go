package pipeline

import (
	"fmt"
	"sync"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"
)

// Compression algorithms
const (
	CompressionNone   = "none"
	CompressionZstd   = "zstd"
	CompressionSnappy = "snappy"
)

// Compressor provides compression and decompression.
type Compressor interface {
	Compress(data []byte) ([]byte, error)
	Decompress(data []byte) ([]byte, error)
	Algorithm() string
}

// ZstdCompressor implements Compressor using zstd.
type ZstdCompressor struct {
	level       int
	encoder     *zstd.Encoder
	decoder     *zstd.Decoder
	encoderOnce sync.Once
	decoderOnce sync.Once
	encoderErr  error
	decoderErr  error
}

// NewZstdCompressor creates a zstd compressor at the given level.
func NewZstdCompressor(level int) (*ZstdCompressor, error) {
	if level < 1 || level > 19 {
		return nil, fmt.Errorf("zstd level must be 1-19, got %d", level)
	}
	return &ZstdCompressor{level: level}, nil
}

// DefaultZstdCompressor creates a compressor with default settings (level 3).
func DefaultZstdCompressor() (*ZstdCompressor, error) {
	return NewZstdCompressor(3)
}

func (c *ZstdCompressor) getEncoder() (*zstd.Encoder, error) {
	c.encoderOnce.Do(func() {
		c.encoder, c.encoderErr = zstd.NewWriter(nil,
			zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(c.level)),
			zstd.WithEncoderConcurrency(1),
		)
	})
	return c.encoder, c.encoderErr
}

func (c *ZstdCompressor) getDecoder() (*zstd.Decoder, error) {
	c.decoderOnce.Do(func() {
		c.decoder, c.decoderErr = zstd.NewReader(nil,
			zstd.WithDecoderConcurrency(1),
			zstd.WithDecoderMaxMemory(256*1024*1024),
		)
	})
	return c.decoder, c.decoderErr
}

func (c *ZstdCompressor) Compress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return data, nil
	}
	encoder, err := c.getEncoder()
	if err != nil {
		return nil, fmt.Errorf("failed to get encoder: %w", err)
	}
	return encoder.EncodeAll(data, make([]byte, 0, len(data))), nil
}

func (c *ZstdCompressor) Decompress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return data, nil
	}
	decoder, err := c.getDecoder()
	if err != nil {
		return nil, fmt.Errorf("failed to get decoder: %w", err)
	}
	return decoder.DecodeAll(data, nil)
}

func (c *ZstdCompressor) Algorithm() string { return CompressionZstd }

// SnappyCompressor implements Compressor using snappy block encoding.
// Faster than zstd at a worse ratio; useful for very frequent backups.
type SnappyCompressor struct{}

func NewSnappyCompressor() *SnappyCompressor { return &SnappyCompressor{} }

func (c *SnappyCompressor) Compress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return data, nil
	}
	return snappy.Encode(nil, data), nil
}

func (c *SnappyCompressor) Decompress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return data, nil
	}
	out, err := snappy.Decode(nil, data)
	if err != nil {
		return nil, fmt.Errorf("snappy decode: %w", err)
	}
	return out, nil
}

func (c *SnappyCompressor) Algorithm() string { return CompressionSnappy }

// NoopCompressor is a pass-through compressor.
type NoopCompressor struct{}

func NewNoopCompressor() *NoopCompressor { return &NoopCompressor{} }

func (c *NoopCompressor) Compress(data []byte) ([]byte, error)   { return data, nil }
func (c *NoopCompressor) Decompress(data []byte) ([]byte, error) { return data, nil }
func (c *NoopCompressor) Algorithm() string                      { return CompressionNone }

// NewCompressor creates a compressor for the named algorithm.
func NewCompressor(algorithm string) (Compressor, error) {
	switch algorithm {
	case CompressionZstd:
		return DefaultZstdCompressor()
	case CompressionSnappy:
		return NewSnappyCompressor(), nil
	case CompressionNone, "":
		return NewNoopCompressor(), nil
	default:
		return nil, fmt.Errorf("unsupported compression algorithm: %s", algorithm)
	}
}
