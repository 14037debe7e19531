package cache

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Codec identifies the compression applied to an entry's payloads. It is
// persisted per entry so data written under one setting decodes under another.
type Codec uint8

const (
	CodecNone Codec = 0
	CodecLZ4  Codec = 1
	CodecZstd Codec = 2
)

func (c Codec) String() string {
	switch c {
	case CodecNone:
		return "none"
	case CodecLZ4:
		return "lz4"
	case CodecZstd:
		return "zstd"
	default:
		return fmt.Sprintf("codec(%d)", uint8(c))
	}
}

func ParseCodec(name string) (Codec, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "zstd":
		return CodecZstd, nil
	case "lz4":
		return CodecLZ4, nil
	case "none":
		return CodecNone, nil
	default:
		return CodecNone, fmt.Errorf("unknown compression codec %q", name)
	}
}

// Compressor must be safe for concurrent use.
type Compressor interface {
	Codec() Codec
	Compress(src []byte) ([]byte, error)
	Decompress(src []byte) ([]byte, error)
}

// NewCompressor builds a compressor for codec. level only applies to zstd and
// follows the zstd command line scale (1-22).
func NewCompressor(codec Codec, level int) (Compressor, error) {
	switch codec {
	case CodecNone:
		return noneCompressor{}, nil
	case CodecLZ4:
		return lz4Compressor{}, nil
	case CodecZstd:
		return newZstdCompressor(level)
	default:
		return nil, fmt.Errorf("unsupported codec %s", codec)
	}
}

var (
	defaultZstdOnce sync.Once
	defaultZstd     *zstdCompressor
	defaultZstdErr  error
)

// decompressorFor returns a decoder for data written with codec, independent
// of the codec the cache is currently configured with.
func decompressorFor(codec Codec, current Compressor) (Compressor, error) {
	if current != nil && current.Codec() == codec {
		return current, nil
	}
	switch codec {
	case CodecNone:
		return noneCompressor{}, nil
	case CodecLZ4:
		return lz4Compressor{}, nil
	case CodecZstd:
		defaultZstdOnce.Do(func() {
			defaultZstd, defaultZstdErr = newZstdCompressor(3)
		})
		return defaultZstd, defaultZstdErr
	default:
		return nil, fmt.Errorf("unsupported codec %s", codec)
	}
}

type noneCompressor struct{}

func (noneCompressor) Codec() Codec { return CodecNone }

func (noneCompressor) Compress(src []byte) ([]byte, error) { return src, nil }

func (noneCompressor) Decompress(src []byte) ([]byte, error) { return src, nil }

// zstdCompressor shares one encoder and one decoder; EncodeAll and DecodeAll
// are safe for concurrent use.
type zstdCompressor struct {
	enc *zstd.Encoder
	dec *zstd.Decoder
}

func newZstdCompressor(level int) (*zstdCompressor, error) {
	enc, err := zstd.NewWriter(nil,
		zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(level)),
		zstd.WithEncoderConcurrency(1),
	)
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(0))
	if err != nil {
		_ = enc.Close()
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	return &zstdCompressor{enc: enc, dec: dec}, nil
}

func (z *zstdCompressor) Codec() Codec { return CodecZstd }

func (z *zstdCompressor) Compress(src []byte) ([]byte, error) {
	if len(src) == 0 {
		return nil, nil
	}
	return z.enc.EncodeAll(src, make([]byte, 0, len(src)/2)), nil
}

func (z *zstdCompressor) Decompress(src []byte) ([]byte, error) {
	if len(src) == 0 {
		return nil, nil
	}
	return z.dec.DecodeAll(src, nil)
}

// lz4 blocks carry their own header:
// [UncompressedSize uint32][CompressedSize uint32][Data...]
// CompressedSize == 0 means the data is stored raw.
const lz4HeaderSize = 8

type lz4Compressor struct{}

func (lz4Compressor) Codec() Codec { return CodecLZ4 }

func (lz4Compressor) Compress(src []byte) ([]byte, error) {
	if len(src) == 0 {
		return nil, nil
	}
	buf := make([]byte, lz4HeaderSize+lz4.CompressBlockBound(len(src)))
	n, err := lz4.CompressBlock(src, buf[lz4HeaderSize:], nil)
	if err != nil {
		return nil, err
	}
	binary.LittleEndian.PutUint32(buf[0:], uint32(len(src)))
	// Incompressible input (n == 0) or no gain: store raw.
	if n == 0 || n >= len(src) {
		binary.LittleEndian.PutUint32(buf[4:], 0)
		out := append(buf[:lz4HeaderSize], src...)
		return out, nil
	}
	binary.LittleEndian.PutUint32(buf[4:], uint32(n))
	return buf[:lz4HeaderSize+n], nil
}

func (lz4Compressor) Decompress(src []byte) ([]byte, error) {
	if len(src) == 0 {
		return nil, nil
	}
	if len(src) < lz4HeaderSize {
		return nil, errors.New("lz4 block too small for header")
	}
	rawSize := binary.LittleEndian.Uint32(src[0:])
	packedSize := binary.LittleEndian.Uint32(src[4:])
	body := src[lz4HeaderSize:]

	if packedSize == 0 {
		if uint32(len(body)) != rawSize {
			return nil, errors.New("lz4 raw block size mismatch")
		}
		return append([]byte(nil), body...), nil
	}
	if uint32(len(body)) != packedSize {
		return nil, errors.New("lz4 block data size mismatch")
	}
	out := make([]byte, rawSize)
	n, err := lz4.UncompressBlock(body, out)
	if err != nil {
		return nil, err
	}
	if uint32(n) != rawSize {
		return nil, errors.New("lz4 decompressed size mismatch")
	}
	return out, nil
}
