package snapshot

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression identifies how a snapshot blob is compressed. The value is
// stored as the first byte of every blob, so the constants must not change.
type Compression uint8

const (
	CompressionNone Compression = 0
	CompressionLZ4  Compression = 1
	CompressionZstd Compression = 2
)

func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionLZ4:
		return "lz4"
	case CompressionZstd:
		return "zstd"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(c))
	}
}

// ParseCompression parses the configuration name of a compression.
func ParseCompression(name string) (Compression, error) {
	switch name {
	case "none", "":
		return CompressionNone, nil
	case "lz4":
		return CompressionLZ4, nil
	case "zstd":
		return CompressionZstd, nil
	default:
		return 0, fmt.Errorf("snapshot: unknown compression %q", name)
	}
}

var errIncompressible = errors.New("data is incompressible")

// Shared across calls; both are safe for concurrent use.
var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("snapshot: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("snapshot: zstd decoder initialization failed: " + err.Error())
	}
}

// pack frames data as tag, uvarint length, payload. Data that does not
// shrink is stored uncompressed.
func pack(data []byte, c Compression) ([]byte, error) {
	payload, err := compress(data, c)
	if errors.Is(err, errIncompressible) {
		c, payload, err = CompressionNone, data, nil
	}
	if err != nil {
		return nil, err
	}
	out := make([]byte, 1, 1+binary.MaxVarintLen64+len(payload))
	out[0] = byte(c)
	out = binary.AppendUvarint(out, uint64(len(data)))
	return append(out, payload...), nil
}

func unpack(blob []byte) ([]byte, error) {
	if len(blob) < 2 {
		return nil, errors.New("snapshot: blob too short")
	}
	c := Compression(blob[0])
	size, n := binary.Uvarint(blob[1:])
	if n <= 0 {
		return nil, errors.New("snapshot: bad length prefix")
	}
	payload := blob[1+n:]
	switch c {
	case CompressionNone:
		if uint64(len(payload)) != size {
			return nil, fmt.Errorf("snapshot: size %d does not match expected %d", len(payload), size)
		}
		return payload, nil
	case CompressionLZ4:
		dst := make([]byte, size)
		read, err := lz4.UncompressBlock(payload, dst)
		if err != nil {
			return nil, fmt.Errorf("lz4 decompress: %w", err)
		}
		if uint64(read) != size {
			return nil, fmt.Errorf("lz4 decompress: got %d bytes, expected %d", read, size)
		}
		return dst, nil
	case CompressionZstd:
		out, err := zstdDecoder.DecodeAll(payload, make([]byte, 0, size))
		if err != nil {
			return nil, fmt.Errorf("zstd decompress: %w", err)
		}
		if uint64(len(out)) != size {
			return nil, fmt.Errorf("zstd decompress: got %d bytes, expected %d", len(out), size)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("snapshot: unsupported compression %d", uint8(c))
	}
}

func compress(data []byte, c Compression) ([]byte, error) {
	switch c {
	case CompressionNone:
		return data, nil
	case CompressionLZ4:
		dst := make([]byte, lz4.CompressBlockBound(len(data)))
		written, err := lz4.CompressBlock(data, dst, nil)
		if err != nil {
			return nil, fmt.Errorf("lz4 compress: %w", err)
		}
		if written == 0 || written >= len(data) {
			return nil, errIncompressible
		}
		return dst[:written], nil
	case CompressionZstd:
		out := zstdEncoder.EncodeAll(data, nil)
		if len(out) >= len(data) {
			return nil, errIncompressible
		}
		return out, nil
	default:
		return nil, fmt.Errorf("snapshot: unsupported compression %d", uint8(c))
	}
}
