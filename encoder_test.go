// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

package fountain_test

import (
	"bytes"
	"errors"
	"math/rand"
	"slices"
	"testing"

	"github.com/stretchr/testify/require"

	"storj.io/common/memory"
	"storj.io/common/testrand"
	"storj.io/fountain"
	"storj.io/fountain/private/checksum"
	"storj.io/fountain/private/compression"
	"storj.io/fountain/private/slicing"
)

type failingCodec struct{}

func (failingCodec) Name() string { return "failing" }

func (failingCodec) Compress([]byte) ([]byte, error) { return nil, errors.New("compress failed") }

func (failingCodec) Decompress([]byte) ([]byte, error) { return nil, errors.New("decompress failed") }

func TestNewEncoder(t *testing.T) {
	data := testrand.BytesInt(1234)

	enc, err := fountain.NewEncoder(data, fountain.EncoderConfig{SliceSize: 100})
	require.NoError(t, err)
	require.Equal(t, 13, enc.K())
	require.Equal(t, 100, enc.SliceSize())
	require.Equal(t, 1234, enc.ByteLength())
	require.Equal(t, checksum.Sum(data, 13), enc.Checksum())
	require.False(t, enc.Compressed())
	require.Equal(t, 18, enc.RequiredBlocks(fountain.DefaultRecoveryFactor))
}

func TestNewEncoderDefaults(t *testing.T) {
	enc, err := fountain.NewEncoder(nil, fountain.EncoderConfig{})
	require.NoError(t, err)
	require.Equal(t, 1, enc.K())
	require.Equal(t, fountain.DefaultSliceSize.Int(), enc.SliceSize())
	require.Equal(t, 0, enc.ByteLength())
	require.Equal(t, uint32(1), enc.Checksum())

	_, err = fountain.NewEncoder([]byte{1}, fountain.EncoderConfig{SliceSize: -1})
	require.Error(t, err)
	require.True(t, fountain.Error.Has(err))
}

func TestEncoderCompression(t *testing.T) {
	repetitive := bytes.Repeat([]byte("fountain "), memory.KiB.Int())

	enc, err := fountain.NewEncoder(repetitive, fountain.EncoderConfig{Compress: true})
	require.NoError(t, err)
	require.True(t, enc.Compressed())
	require.Less(t, enc.ByteLength(), len(repetitive))
	// the checksum covers the original bytes, not the compressed ones.
	require.Equal(t, checksum.Sum(repetitive, enc.K()), enc.Checksum())

	for _, codec := range []compression.Codec{compression.Zstd, compression.LZ4, compression.Brotli, compression.XZ} {
		enc, err := fountain.NewEncoder(repetitive, fountain.EncoderConfig{Compress: true, Compression: codec})
		require.NoError(t, err)
		require.True(t, enc.Compressed(), codec.Name())
	}

	{ // incompressible data is sent as is
		random := testrand.BytesInt(4 * memory.KiB.Int())
		enc, err := fountain.NewEncoder(random, fountain.EncoderConfig{Compress: true})
		require.NoError(t, err)
		require.False(t, enc.Compressed())
		require.Equal(t, len(random), enc.ByteLength())
	}

	{ // output that is not smaller is discarded
		enc, err := fountain.NewEncoder([]byte("q"), fountain.EncoderConfig{Compress: true})
		require.NoError(t, err)
		require.False(t, enc.Compressed())
		require.Equal(t, 1, enc.ByteLength())
	}

	{ // a failing codec is not fatal
		enc, err := fountain.NewEncoder(repetitive, fountain.EncoderConfig{Compress: true, Compression: failingCodec{}})
		require.NoError(t, err)
		require.False(t, enc.Compressed())
		require.Equal(t, len(repetitive), enc.ByteLength())
	}
}

func TestCreateBlock(t *testing.T) {
	data := testrand.BytesInt(95)
	parts, err := slicing.Split(data, 10)
	require.NoError(t, err)

	enc, err := fountain.NewEncoder(data, fountain.EncoderConfig{SliceSize: 10})
	require.NoError(t, err)
	require.Equal(t, 10, enc.K())

	block, err := enc.CreateBlock([]int{9, 2, 9})
	require.NoError(t, err)
	require.Equal(t, []int{2, 9}, block.Indices)
	require.Equal(t, 10, block.K)
	require.Equal(t, 95, block.ByteLength)
	require.Equal(t, enc.Checksum(), block.Checksum)

	expected := bytes.Clone(parts[2])
	slicing.XOR(expected, parts[9])
	require.Equal(t, expected, block.Payload)

	single, err := enc.CreateBlock([]int{4})
	require.NoError(t, err)
	require.Equal(t, parts[4], single.Payload)

	// blocks never alias the encoder's slices.
	single.Payload[0] ^= 0xFF
	again, err := enc.CreateBlock([]int{4})
	require.NoError(t, err)
	require.Equal(t, parts[4], again.Payload)

	for _, indices := range [][]int{nil, {-1}, {10}, {0, 10}} {
		_, err := enc.CreateBlock(indices)
		require.Error(t, err, "%v", indices)
		require.True(t, fountain.Error.Has(err))
	}
}

func TestEncoderNext(t *testing.T) {
	data := testrand.BytesInt(2000)
	enc, err := fountain.NewEncoder(data, fountain.EncoderConfig{
		SliceSize: 64,
		Rand:      rand.New(rand.NewSource(1)),
	})
	require.NoError(t, err)

	degrees := map[int]int{}
	for range 500 {
		block := enc.Next()
		require.GreaterOrEqual(t, block.Degree(), 1)
		require.LessOrEqual(t, block.Degree(), enc.K())
		require.True(t, slices.IsSorted(block.Indices))
		require.Len(t, slices.Compact(slices.Clone(block.Indices)), block.Degree())
		require.Len(t, block.Payload, 64)
		require.Equal(t, enc.Checksum(), block.Checksum)

		_, err := block.MarshalBinary()
		require.NoError(t, err)

		degrees[block.Degree()]++
	}

	// degree two dominates the ideal soliton distribution.
	for d, count := range degrees {
		if d != 2 {
			require.Less(t, count, degrees[2], "degree %d", d)
		}
	}
}

func TestEncoderFountain(t *testing.T) {
	enc, err := fountain.NewEncoder(testrand.BytesInt(300), fountain.EncoderConfig{SliceSize: 30})
	require.NoError(t, err)

	count := 0
	for block := range enc.Fountain() {
		require.Equal(t, enc.Checksum(), block.Checksum)
		count++
		if count == 25 {
			break
		}
	}
	require.Equal(t, 25, count)
}

func TestRequiredBlocks(t *testing.T) {
	for _, tc := range []struct {
		k        int
		factor   float64
		expected int
	}{
		{0, 1.3, 1},
		{1, 1.3, 6},
		{10, 1.3, 15},
		{100, 1.3, 130},
		{100, 2, 200},
		{100, 0, 130},
		{100, 1, 105},
	} {
		require.Equal(t, tc.expected, fountain.RequiredBlocks(tc.k, tc.factor), "%+v", tc)
	}
}
