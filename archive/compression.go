package archive

import (
	"fmt"
	"sync"

	"github.com/klauspost/compress/s2"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// CompressionCodec identifies the block compression applied to column
// payloads. The codec byte is stored per batch, so a reader never needs to
// know what the writer chose.
type CompressionCodec uint8

const (
	// CodecNone stores payloads raw.
	CodecNone CompressionCodec = 0
	// CodecS2 is a fast general-purpose codec with modest ratios.
	CodecS2 CompressionCodec = 1
	// CodecZstd is the high-ratio codec; levels follow zstd (1-22).
	CodecZstd CompressionCodec = 2
	// CodecLZ4 is the alternative high-ratio codec; levels follow lz4 (0-9).
	CodecLZ4 CompressionCodec = 3
)

// String implements fmt.Stringer.
func (c CompressionCodec) String() string {
	switch c {
	case CodecNone:
		return "none"
	case CodecS2:
		return "s2"
	case CodecZstd:
		return "zstd"
	case CodecLZ4:
		return "lz4"
	default:
		return fmt.Sprintf("codec(%d)", uint8(c))
	}
}

// Compression selects a codec and level for one write call. It is never
// persisted as index metadata; each batch self-describes its codec.
type Compression struct {
	Codec CompressionCodec
	Level int
}

// NoCompression stores payloads raw.
var NoCompression = Compression{Codec: CodecNone}

// S2 compresses with the fast general-purpose codec.
var S2 = Compression{Codec: CodecS2}

// Zstd compresses with zstd at the given level (1 fastest, 22 strongest).
func Zstd(level int) Compression {
	return Compression{Codec: CodecZstd, Level: level}
}

// LZ4 compresses with lz4 at the given level (0 fast mode, 1-9 increasing effort).
func LZ4(level int) Compression {
	return Compression{Codec: CodecLZ4, Level: level}
}

// DefaultCompression is used when a write call does not choose a codec:
// the high-ratio codec near its maximum setting.
var DefaultCompression = Zstd(19)

// compressor holds per-writer codec state. zstd keeps a configured encoder
// for the writer's lifetime; the other codecs are stateless.
type compressor struct {
	compression Compression
	zenc        *zstd.Encoder
}

func newCompressor(c Compression) (*compressor, error) {
	comp := &compressor{compression: c}
	if c.Codec == CodecZstd {
		enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(c.Level)))
		if err != nil {
			return nil, err
		}
		comp.zenc = enc
	}
	return comp, nil
}

// compress returns the compressed payload, or nil when the payload should be
// stored raw (codec none, or compression did not shrink the data).
func (c *compressor) compress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}

	var compressed []byte
	switch c.compression.Codec {
	case CodecNone:
		return nil, nil
	case CodecS2:
		compressed = s2.Encode(nil, data)
	case CodecZstd:
		compressed = c.zenc.EncodeAll(data, nil)
	case CodecLZ4:
		bound := lz4.CompressBlockBound(len(data))
		buf := make([]byte, bound)
		n, err := lz4CompressBlock(data, buf, c.compression.Level)
		if err != nil {
			return nil, err
		}
		compressed = buf[:n]
		if n == 0 {
			return nil, nil // incompressible
		}
	default:
		return nil, fmt.Errorf("archive: unknown compression codec %d", c.compression.Codec)
	}

	if len(compressed) >= len(data) {
		return nil, nil
	}
	return compressed, nil
}

func (c *compressor) close() error {
	if c.zenc != nil {
		return c.zenc.Close()
	}
	return nil
}

func lz4CompressBlock(src, dst []byte, level int) (int, error) {
	if level <= 0 {
		var fast lz4.Compressor
		return fast.CompressBlock(src, dst)
	}
	hc := lz4.CompressorHC{Level: lz4Level(level)}
	return hc.CompressBlock(src, dst)
}

func lz4Level(level int) lz4.CompressionLevel {
	switch {
	case level <= 1:
		return lz4.Level1
	case level == 2:
		return lz4.Level2
	case level == 3:
		return lz4.Level3
	case level == 4:
		return lz4.Level4
	case level == 5:
		return lz4.Level5
	case level == 6:
		return lz4.Level6
	case level == 7:
		return lz4.Level7
	case level == 8:
		return lz4.Level8
	default:
		return lz4.Level9
	}
}

var zstdDecoderPool = sync.Pool{
	New: func() any {
		dec, _ := zstd.NewReader(nil)
		return dec
	},
}

// decompress expands a payload according to the codec byte recorded in the
// batch header. uncompressed is the expected decoded size.
func decompress(codec CompressionCodec, src []byte, uncompressed int) ([]byte, error) {
	var out []byte
	switch codec {
	case CodecS2:
		decoded, err := s2.Decode(make([]byte, 0, uncompressed), src)
		if err != nil {
			return nil, err
		}
		out = decoded
	case CodecZstd:
		dec := zstdDecoderPool.Get().(*zstd.Decoder)
		decoded, err := dec.DecodeAll(src, make([]byte, 0, uncompressed))
		zstdDecoderPool.Put(dec)
		if err != nil {
			return nil, err
		}
		out = decoded
	case CodecLZ4:
		buf := make([]byte, uncompressed)
		n, err := lz4.UncompressBlock(src, buf)
		if err != nil {
			return nil, err
		}
		out = buf[:n]
	default:
		return nil, fmt.Errorf("archive: unknown compression codec %d", codec)
	}

	if len(out) != uncompressed {
		return nil, fmt.Errorf("archive: decompressed %d bytes, expected %d", len(out), uncompressed)
	}
	return out, nil
}
