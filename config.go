// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

package fountain

import (
	"storj.io/common/memory"
	"storj.io/fountain/private/compression"
	"storj.io/fountain/private/degree"
)

const (
	// DefaultSliceSize is the slice size used when EncoderConfig.SliceSize
	// is zero. It keeps a text frame comfortably inside one QR code.
	DefaultSliceSize = 500 * memory.B

	// DefaultRecoveryFactor is how many blocks per slice a sender should
	// display to make decoding likely despite loss.
	DefaultRecoveryFactor = 1.3

	// minimumExtraBlocks is added to small transfers where the recovery
	// factor alone gives too little slack.
	minimumExtraBlocks = 5
)

// EncoderConfig defines how a payload is prepared for transfer.
type EncoderConfig struct {
	// SliceSize is the payload size of every block in bytes. Zero means
	// DefaultSliceSize.
	SliceSize int

	// Compress runs the payload through Compression before slicing. When
	// compression fails or does not make the payload smaller, the original
	// bytes are sent; Encoder.Compressed reports which form was sliced.
	Compress bool

	// Compression is the codec used when Compress is set. Nil means zlib.
	Compression compression.Codec

	// Rand drives degree and index sampling. Nil means degree.Default.
	Rand degree.Rand
}

func (config EncoderConfig) sliceSize() (int, error) {
	switch {
	case config.SliceSize == 0:
		return DefaultSliceSize.Int(), nil
	case config.SliceSize < 0:
		return 0, Error.New("invalid slice size %d", config.SliceSize)
	default:
		return config.SliceSize, nil
	}
}

func (config EncoderConfig) codec() compression.Codec {
	if config.Compression == nil {
		return compression.Zlib
	}
	return config.Compression
}

func (config EncoderConfig) rand() degree.Rand {
	if config.Rand == nil {
		return degree.Default
	}
	return config.Rand
}

// DecoderConfig defines how reassembled data is verified.
type DecoderConfig struct {
	// Compression is tried on the reassembled bytes before falling back to
	// the raw bytes. It must match the sender's codec. Nil means zlib.
	Compression compression.Codec
}

func (config DecoderConfig) codec() compression.Codec {
	if config.Compression == nil {
		return compression.Zlib
	}
	return config.Compression
}

// RequiredBlocks returns how many blocks a sender should emit for k slices
// so that a receiver missing some of them can still decode. A factor below
// 1 is treated as DefaultRecoveryFactor.
func RequiredBlocks(k int, factor float64) int {
	if k <= 0 {
		return 1
	}
	if factor < 1 {
		factor = DefaultRecoveryFactor
	}
	return max(int(float64(k)*factor), k+minimumExtraBlocks)
}
