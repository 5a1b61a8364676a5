// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

package fountain_test

import (
	"encoding/base64"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"

	"storj.io/fountain"
)

const referenceText = "qrs://AQAAAAAAAAABAAAABQAAALt8DL6rze8SNAAAAAAA"

func referenceBlock() *fountain.Block {
	return &fountain.Block{
		Indices:    []int{0},
		Payload:    []byte{0xAB, 0xCD, 0xEF, 0x12, 0x34, 0, 0, 0, 0, 0},
		K:          1,
		ByteLength: 5,
		Checksum:   0xBE0C7CBB,
	}
}

func frame(indices []uint32, k, byteLength, checksum uint32, payload []byte) []byte {
	var buf []byte
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(indices)))
	for _, index := range indices {
		buf = binary.LittleEndian.AppendUint32(buf, index)
	}
	buf = binary.LittleEndian.AppendUint32(buf, k)
	buf = binary.LittleEndian.AppendUint32(buf, byteLength)
	buf = binary.LittleEndian.AppendUint32(buf, checksum)
	return append(buf, payload...)
}

func TestBlockReferenceFrame(t *testing.T) {
	block, err := fountain.ParseText(referenceText)
	require.NoError(t, err)
	require.Equal(t, referenceBlock(), block)

	text, err := referenceBlock().MarshalText()
	require.NoError(t, err)
	require.Equal(t, referenceText, string(text))
	require.Equal(t, referenceText, referenceBlock().String())
}

func TestBlockBinaryRoundTrip(t *testing.T) {
	block := &fountain.Block{
		Indices:    []int{1, 4, 7},
		Payload:    []byte("0123456789abcdef"),
		K:          8,
		ByteLength: 120,
		Checksum:   0xDEADBEEF,
	}

	data, err := block.MarshalBinary()
	require.NoError(t, err)
	require.Len(t, data, 4+3*4+12+16)

	parsed, err := fountain.ParseBlock(data)
	require.NoError(t, err)
	require.Equal(t, block, parsed)

	// the parsed payload must not alias the frame.
	data[len(data)-1] ^= 0xFF
	require.Equal(t, byte('f'), parsed.Payload[len(parsed.Payload)-1])

	prefixed, err := block.AppendBinary([]byte("xyz"))
	require.NoError(t, err)
	require.Equal(t, "xyz", string(prefixed[:3]))
}

func TestParseBlockSortsIndices(t *testing.T) {
	block, err := fountain.ParseBlock(frame([]uint32{5, 2, 3}, 6, 10, 1, []byte{1, 2}))
	require.NoError(t, err)
	require.Equal(t, []int{2, 3, 5}, block.Indices)
	require.Equal(t, 3, block.Degree())
}

func TestParseBlockMalformed(t *testing.T) {
	payload := []byte{1, 2, 3, 4}
	hugeDegree := binary.LittleEndian.AppendUint32(nil, 0xFFFFFFFF)

	for _, tc := range []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"short degree", []byte{1, 0}},
		{"zero degree", frame(nil, 1, 1, 0, payload)},
		{"huge degree", append(hugeDegree, make([]byte, 64)...)},
		{"truncated indices", frame([]uint32{0, 1, 2}, 3, 4, 0, payload)[:12]},
		{"truncated trailer", frame([]uint32{0}, 1, 4, 0, nil)[:16]},
		{"no payload", frame([]uint32{0}, 1, 0, 0, nil)},
		{"zero k", frame([]uint32{0}, 0, 4, 0, payload)},
		{"index out of range", frame([]uint32{1}, 1, 4, 0, payload)},
		{"duplicate index", frame([]uint32{1, 1}, 3, 4, 0, payload)},
		{"degree above k", frame([]uint32{0, 1}, 1, 4, 0, payload)},
		{"byte length too large", frame([]uint32{0}, 2, 9, 0, payload)},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := fountain.ParseBlock(tc.data)
			require.Error(t, err)
			require.True(t, fountain.ErrMalformedFrame.Has(err), "%+v", err)
		})
	}
}

func TestMarshalInvalidBlock(t *testing.T) {
	for _, block := range []*fountain.Block{
		{Payload: []byte{1}, K: 1},
		{Indices: []int{0}, K: 1},
		{Indices: []int{2}, Payload: []byte{1}, K: 2},
		{Indices: []int{0}, Payload: []byte{1}, K: 0},
	} {
		_, err := block.MarshalBinary()
		require.True(t, fountain.ErrMalformedFrame.Has(err))
		require.Contains(t, block.String(), "invalid block")
	}
}

func TestParseText(t *testing.T) {
	frameBytes, err := referenceBlock().MarshalBinary()
	require.NoError(t, err)

	for _, text := range []string{
		referenceText,
		"  " + referenceText + "\n",
		referenceText[len(fountain.TextPrefix):],
		fountain.TextPrefix + base64.RawURLEncoding.EncodeToString(frameBytes),
	} {
		block, err := fountain.ParseText(text)
		require.NoError(t, err, text)
		require.Equal(t, referenceBlock(), block)
	}

	_, err = fountain.ParseText("qrs://not base64!")
	require.True(t, fountain.ErrMalformedFrame.Has(err))

	_, err = fountain.ParseText("qrs://")
	require.True(t, fountain.ErrMalformedFrame.Has(err))
}

func TestIsText(t *testing.T) {
	require.True(t, fountain.IsText(referenceText))
	require.True(t, fountain.IsText(" "+referenceText))
	require.False(t, fountain.IsText("https://storj.io"))
	require.False(t, fountain.IsText(""))
}

func TestBlockID(t *testing.T) {
	block := &fountain.Block{Indices: []int{2, 0, 11}, Checksum: 7}
	require.Equal(t, "7:0,2,11", block.ID())
	require.Equal(t, []int{2, 0, 11}, block.Indices)

	clone := block.Clone()
	clone.Indices[0] = 5
	require.Equal(t, 2, block.Indices[0])
}

func FuzzParseBlock(f *testing.F) {
	reference, err := referenceBlock().MarshalBinary()
	require.NoError(f, err)

	f.Add(reference)
	f.Add(frame([]uint32{3, 1}, 4, 7, 9, []byte{1, 2}))
	f.Add([]byte{})
	f.Add([]byte{0xFF, 0xFF, 0xFF, 0xFF})

	f.Fuzz(func(t *testing.T, data []byte) {
		block, err := fountain.ParseBlock(data)
		if err != nil {
			require.True(t, fountain.ErrMalformedFrame.Has(err))
			return
		}

		again, err := block.MarshalBinary()
		require.NoError(t, err)

		reparsed, err := fountain.ParseBlock(again)
		require.NoError(t, err)
		require.Equal(t, block, reparsed)
	})
}
