package cache

import (
	"bytes"
	"crypto/rand"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompressorRoundTrip(t *testing.T) {
	compressible := bytes.Repeat([]byte("impl Display for Widget {}\n"), 512)
	random := make([]byte, 4096)
	_, err := rand.Read(random)
	require.NoError(t, err)

	for _, codec := range []Codec{CodecNone, CodecLZ4, CodecZstd} {
		comp, err := NewCompressor(codec, 3)
		require.NoError(t, err)
		assert.Equal(t, codec, comp.Codec())

		for name, input := range map[string][]byte{"compressible": compressible, "random": random, "empty": nil} {
			t.Run(codec.String()+"/"+name, func(t *testing.T) {
				packed, err := comp.Compress(input)
				require.NoError(t, err)
				out, err := comp.Decompress(packed)
				require.NoError(t, err)
				assert.True(t, bytes.Equal(input, out))
			})
		}

		if codec != CodecNone {
			packed, err := comp.Compress(compressible)
			require.NoError(t, err)
			assert.Less(t, len(packed), len(compressible)/4)
		}
	}
}

func TestLZ4RejectsTruncatedBlock(t *testing.T) {
	packed, err := lz4Compressor{}.Compress(bytes.Repeat([]byte("abc"), 100))
	require.NoError(t, err)
	_, err = lz4Compressor{}.Decompress(packed[:len(packed)-1])
	assert.Error(t, err)
	_, err = lz4Compressor{}.Decompress([]byte{1, 2})
	assert.Error(t, err)
}

func TestParseCodec(t *testing.T) {
	for name, want := range map[string]Codec{"": CodecZstd, "zstd": CodecZstd, "LZ4": CodecLZ4, "none": CodecNone} {
		got, err := ParseCodec(name)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseCodec("gzip")
	assert.Error(t, err)
}

func TestEntryFrameDetectsCorruption(t *testing.T) {
	data, err := encodeEntry(storedEntry{
		Fingerprint: 99,
		CreatedAt:   time.Unix(1_700_000_000, 5),
		Codec:       CodecNone,
		PayloadA:    []byte("a"),
		Metadata:    Metadata{Dependencies: []string{"/x/y.rs"}},
	})
	require.NoError(t, err)

	decoded, err := decodeEntry(data)
	require.NoError(t, err)
	assert.Equal(t, uint64(99), decoded.Fingerprint)
	assert.Equal(t, []string{"/x/y.rs"}, decoded.Metadata.Dependencies)
	assert.True(t, decoded.CreatedAt.Equal(time.Unix(1_700_000_000, 5)))

	flipped := append([]byte(nil), data...)
	flipped[len(flipped)-1] ^= 0xff
	_, err = decodeEntry(flipped)
	assert.True(t, errors.Is(err, errChecksum))

	_, err = decodeEntry(data[:10])
	assert.Error(t, err)

	_, err = decodeIndex(data)
	assert.True(t, errors.Is(err, errBadMagic), "entry frame must not decode as an index")
}
