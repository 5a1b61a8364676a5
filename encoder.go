// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

package fountain

import (
	"bytes"
	"iter"
	"slices"

	"storj.io/fountain/private/checksum"
	"storj.io/fountain/private/degree"
	"storj.io/fountain/private/slicing"
)

// Encoder turns a payload into an unbounded stream of encoded blocks. The
// slices it holds are never modified after NewEncoder returns.
type Encoder struct {
	slices     [][]byte
	sliceSize  int
	byteLength int
	checksum   uint32
	compressed bool

	dist *degree.Distribution
	rand degree.Rand
}

// NewEncoder prepares data for transfer.
//
// The checksum is always computed over data itself, not over its compressed
// form, so the decoder can verify the result whichever path the encoder took.
func NewEncoder(data []byte, config EncoderConfig) (*Encoder, error) {
	sliceSize, err := config.sliceSize()
	if err != nil {
		return nil, err
	}

	payload, compressed := data, false
	if config.Compress {
		payload, compressed = compress(data, config)
	}

	parts, err := slicing.Split(payload, sliceSize)
	if err != nil {
		return nil, Error.Wrap(err)
	}
	k := len(parts)

	mon.IntVal("encoder_slices").Observe(int64(k))

	return &Encoder{
		slices:     parts,
		sliceSize:  sliceSize,
		byteLength: len(payload),
		checksum:   checksum.Sum(data, k),
		compressed: compressed,
		dist:       degree.Soliton(k),
		rand:       config.rand(),
	}, nil
}

// compress returns the compressed payload, or data itself when compression
// fails or does not make it smaller.
func compress(data []byte, config EncoderConfig) ([]byte, bool) {
	compressed, err := config.codec().Compress(data)
	if err != nil {
		mon.Meter("encoder_compression_failed").Mark(1)
		return data, false
	}
	if len(compressed) >= len(data) {
		mon.Meter("encoder_compression_skipped").Mark(1)
		return data, false
	}
	return compressed, true
}

// K returns the number of slices.
func (enc *Encoder) K() int { return len(enc.slices) }

// SliceSize returns the payload size of every block.
func (enc *Encoder) SliceSize() int { return enc.sliceSize }

// ByteLength returns the length of the sliced payload before padding.
func (enc *Encoder) ByteLength() int { return enc.byteLength }

// Checksum returns the session checksum carried by every block.
func (enc *Encoder) Checksum() uint32 { return enc.checksum }

// Compressed reports whether the sliced payload is the compressed form.
func (enc *Encoder) Compressed() bool { return enc.compressed }

// RequiredBlocks returns how many blocks to emit for this payload with the
// given recovery factor.
func (enc *Encoder) RequiredBlocks(factor float64) int {
	return RequiredBlocks(enc.K(), factor)
}

// CreateBlock builds the block combining the given slices. Indices are
// deduplicated and sorted.
func (enc *Encoder) CreateBlock(indices []int) (*Block, error) {
	canonical := slices.Compact(sortedCopy(indices))
	if len(canonical) == 0 {
		return nil, Error.New("no indices")
	}
	if canonical[0] < 0 || canonical[len(canonical)-1] >= enc.K() {
		return nil, Error.New("indices %v outside [0, %d)", canonical, enc.K())
	}
	return enc.combine(canonical), nil
}

// combine XORs the slices named by sorted, in-range indices into a block.
func (enc *Encoder) combine(indices []int) *Block {
	payload := bytes.Clone(enc.slices[indices[0]])
	for _, index := range indices[1:] {
		slicing.XOR(payload, enc.slices[index])
	}

	return &Block{
		Indices:    indices,
		Payload:    payload,
		K:          enc.K(),
		ByteLength: enc.byteLength,
		Checksum:   enc.checksum,
	}
}

// Next samples a degree and a set of slices and returns the combined block.
// Each call is independent of the previous ones. Next is safe for concurrent
// use when the configured Rand is.
func (enc *Encoder) Next() *Block {
	d := enc.dist.Sample(enc.rand)
	block := enc.combine(degree.Indices(enc.rand, enc.K(), d))
	mon.Meter("encoder_blocks").Mark(1)
	return block
}

// Fountain returns an endless sequence of blocks. The caller decides when to
// stop ranging over it.
func (enc *Encoder) Fountain() iter.Seq[*Block] {
	return func(yield func(*Block) bool) {
		for {
			if !yield(enc.Next()) {
				return
			}
		}
	}
}
