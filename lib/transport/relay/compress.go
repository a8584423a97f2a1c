// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package relay

import (
	"fmt"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression selects how a put request's events are packed.
type Compression uint8

const (
	CompressionNone Compression = iota

	// CompressionLZ4 is LZ4 block compression: cheap on CPU, modest
	// ratio.
	CompressionLZ4

	// CompressionZstd is zstd at the default level: better ratio on
	// log text.
	CompressionZstd
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
		return fmt.Sprintf("unknown(%d)", c)
	}
}

// ParseCompression parses "none", "lz4", or "zstd". The empty string
// means none.
func ParseCompression(name string) (Compression, error) {
	switch name {
	case "", "none":
		return CompressionNone, nil
	case "lz4":
		return CompressionLZ4, nil
	case "zstd":
		return CompressionZstd, nil
	default:
		return 0, fmt.Errorf("unknown compression %q", name)
	}
}

// Shared codecs; both are safe for concurrent use.
var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("relay: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil, zstd.WithDecoderMaxMemory(maxMessageSize))
	if err != nil {
		panic("relay: zstd decoder initialization failed: " + err.Error())
	}
}

// compress packs data with the requested algorithm. Data that does
// not shrink is sent uncompressed; the returned Compression says
// which was used.
func compress(data []byte, requested Compression) ([]byte, Compression, error) {
	switch requested {
	case CompressionNone:
		return data, CompressionNone, nil

	case CompressionLZ4:
		destination := make([]byte, lz4.CompressBlockBound(len(data)))
		written, err := lz4.CompressBlock(data, destination, nil)
		if err != nil {
			return nil, 0, fmt.Errorf("lz4 compress: %w", err)
		}
		if written == 0 || written >= len(data) {
			return data, CompressionNone, nil
		}
		return destination[:written], CompressionLZ4, nil

	case CompressionZstd:
		compressed := zstdEncoder.EncodeAll(data, nil)
		if len(compressed) >= len(data) {
			return data, CompressionNone, nil
		}
		return compressed, CompressionZstd, nil

	default:
		return nil, 0, fmt.Errorf("unsupported compression %v", requested)
	}
}

// decompress unpacks data, which must expand to exactly rawSize
// bytes.
func decompress(data []byte, compression Compression, rawSize int) ([]byte, error) {
	var (
		result []byte
		err    error
	)
	switch compression {
	case CompressionNone:
		result = data

	case CompressionLZ4:
		destination := make([]byte, rawSize)
		var read int
		read, err = lz4.UncompressBlock(data, destination)
		result = destination[:max(read, 0)]

	case CompressionZstd:
		result, err = zstdDecoder.DecodeAll(data, make([]byte, 0, rawSize))

	default:
		return nil, fmt.Errorf("unsupported compression %v", compression)
	}
	if err != nil {
		return nil, fmt.Errorf("%s decompress: %w", compression, err)
	}
	if len(result) != rawSize {
		return nil, fmt.Errorf("%s decompress: got %d bytes, expected %d", compression, len(result), rawSize)
	}
	return result, nil
}
