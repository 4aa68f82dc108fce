// Package compress implements whole-block compression for index files.
package compress

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Algorithm identifies a block compression algorithm. Its numeric value is
// stored in file headers and must not change.
type Algorithm uint8

const (
	// None stores blocks verbatim.
	None Algorithm = 0
	// LZ4 is fast block compression for hot data.
	LZ4 Algorithm = 1
	// ZSTD gives a better ratio at a higher CPU cost.
	ZSTD Algorithm = 2
)

var (
	// ErrUnknownAlgorithm is returned for unsupported algorithm ids or names.
	ErrUnknownAlgorithm = errors.New("unknown compression algorithm")

	// ErrSizeMismatch is returned when a block does not decompress to the expected size.
	ErrSizeMismatch = errors.New("decompressed size mismatch")
)

func (a Algorithm) String() string {
	switch a {
	case None:
		return "none"
	case LZ4:
		return "lz4"
	case ZSTD:
		return "zstd"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(a))
	}
}

// Valid reports whether a is a supported algorithm.
func (a Algorithm) Valid() bool {
	return a <= ZSTD
}

// ParseAlgorithm converts a name ("none", "lz4", "zstd") into an Algorithm.
func ParseAlgorithm(s string) (Algorithm, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return None, nil
	case "lz4":
		return LZ4, nil
	case "zstd", "zstandard":
		return ZSTD, nil
	default:
		return None, fmt.Errorf("%w: %q", ErrUnknownAlgorithm, s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (a Algorithm) MarshalText() ([]byte, error) {
	if !a.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownAlgorithm, uint8(a))
	}
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Algorithm) UnmarshalText(text []byte) error {
	parsed, err := ParseAlgorithm(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

const (
	// maxLZ4Ratio is the best ratio the LZ4 block format can reach.
	maxLZ4Ratio = 255
	// maxPrealloc caps the buffer reserved from an untrusted size.
	maxPrealloc = 64 << 20
)

var (
	zstdEncoderPool sync.Pool
	zstdDecoderPool sync.Pool
)

func getZstdEncoder() (*zstd.Encoder, error) {
	if v := zstdEncoderPool.Get(); v != nil {
		return v.(*zstd.Encoder), nil
	}
	return zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
}

func getZstdDecoder() (*zstd.Decoder, error) {
	if v := zstdDecoderPool.Get(); v != nil {
		return v.(*zstd.Decoder), nil
	}
	return zstd.NewReader(nil)
}

// Compress compresses data as a single block. The caller records len(data)
// to size the buffer for Decompress.
func Compress(a Algorithm, data []byte) ([]byte, error) {
	switch a {
	case None:
		return data, nil
	case LZ4:
		if len(data) == 0 {
			return data, nil
		}
		dst := make([]byte, lz4.CompressBlockBound(len(data)))
		n, err := lz4.CompressBlock(data, dst, nil)
		if err != nil {
			return nil, err
		}
		if n == 0 {
			// Incompressible input. The block format still needs a valid
			// encoding, so fall back to literal-only output.
			return lz4Literals(data), nil
		}
		return dst[:n], nil
	case ZSTD:
		enc, err := getZstdEncoder()
		if err != nil {
			return nil, err
		}
		defer zstdEncoderPool.Put(enc)
		return enc.EncodeAll(data, nil), nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownAlgorithm, uint8(a))
	}
}

// Decompress reverses Compress. rawLen is the uncompressed size.
func Decompress(a Algorithm, data []byte, rawLen int) ([]byte, error) {
	switch a {
	case None:
		if len(data) != rawLen {
			return nil, ErrSizeMismatch
		}
		return data, nil
	case LZ4:
		if rawLen == 0 {
			if len(data) != 0 {
				return nil, ErrSizeMismatch
			}
			return []byte{}, nil
		}
		if rawLen > maxLZ4Ratio*len(data)+16 {
			return nil, ErrSizeMismatch
		}
		dst := make([]byte, rawLen)
		n, err := lz4.UncompressBlock(data, dst)
		if err != nil {
			return nil, err
		}
		if n != rawLen {
			return nil, ErrSizeMismatch
		}
		return dst, nil
	case ZSTD:
		dec, err := getZstdDecoder()
		if err != nil {
			return nil, err
		}
		defer zstdDecoderPool.Put(dec)
		out, err := dec.DecodeAll(data, make([]byte, 0, min(rawLen, maxPrealloc)))
		if err != nil {
			return nil, err
		}
		if len(out) != rawLen {
			return nil, ErrSizeMismatch
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownAlgorithm, uint8(a))
	}
}

// lz4Literals encodes data as one LZ4 sequence made only of literals.
func lz4Literals(data []byte) []byte {
	n := len(data)
	out := make([]byte, 0, n+n/255+2)
	if n < 15 {
		out = append(out, byte(n<<4))
	} else {
		out = append(out, 0xF0)
		rest := n - 15
		for rest >= 255 {
			out = append(out, 255)
			rest -= 255
		}
		out = append(out, byte(rest))
	}
	return append(out, data...)
}
