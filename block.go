// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

package fountain

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"slices"
	"strconv"
	"strings"
)

// TextPrefix marks a scanned string as a fountain frame.
const TextPrefix = "qrs://"

const (
	u32Size = 4
	// trailerSize covers k, byteLength and checksum.
	trailerSize = 3 * u32Size
)

// Block is one encoded block: the XOR of the slices named by Indices,
// together with the session constants needed to decode it.
//
// The binary frame is, in little-endian:
//
//	degree:u32 | indices:u32*degree | k:u32 | byteLength:u32 | checksum:u32 | payload
type Block struct {
	// Indices are the slices combined into Payload, ascending.
	Indices []int
	// Payload is the XOR of the slices named by Indices.
	Payload []byte
	// K is the number of slices in the session.
	K int
	// ByteLength is the length of the sliced payload before padding.
	ByteLength int
	// Checksum identifies the session and verifies the reassembled data.
	Checksum uint32
}

// Degree returns the number of slices combined into the block.
func (block *Block) Degree() int { return len(block.Indices) }

// ID identifies the block within its session for replay detection.
func (block *Block) ID() string {
	var b strings.Builder
	b.WriteString(strconv.FormatUint(uint64(block.Checksum), 10))
	b.WriteByte(':')
	writeKey(&b, sortedCopy(block.Indices))
	return b.String()
}

// Clone returns a deep copy of the block.
func (block *Block) Clone() *Block {
	clone := *block
	clone.Indices = slices.Clone(block.Indices)
	clone.Payload = bytes.Clone(block.Payload)
	return &clone
}

func (block *Block) validate() error {
	if block.K < 1 || uint64(block.K) > uint64(^uint32(0)) {
		return ErrMalformedFrame.New("invalid slice count %d", block.K)
	}
	if len(block.Indices) == 0 {
		return ErrMalformedFrame.New("block has no indices")
	}
	if len(block.Indices) > block.K {
		return ErrMalformedFrame.New("degree %d exceeds slice count %d", len(block.Indices), block.K)
	}
	if len(block.Payload) == 0 {
		return ErrMalformedFrame.New("block has no payload")
	}
	if block.ByteLength < 0 || uint64(block.ByteLength) > uint64(block.K)*uint64(len(block.Payload)) {
		return ErrMalformedFrame.New("byte length %d does not fit %d slices of %d bytes",
			block.ByteLength, block.K, len(block.Payload))
	}

	sorted := sortedCopy(block.Indices)
	for i, index := range sorted {
		if index < 0 || index >= block.K {
			return ErrMalformedFrame.New("index %d outside [0, %d)", index, block.K)
		}
		if i > 0 && sorted[i-1] == index {
			return ErrMalformedFrame.New("duplicate index %d", index)
		}
	}
	return nil
}

// AppendBinary appends the binary frame of the block to dst.
func (block *Block) AppendBinary(dst []byte) ([]byte, error) {
	if err := block.validate(); err != nil {
		return dst, err
	}

	dst = slices.Grow(dst, u32Size*(1+len(block.Indices))+trailerSize+len(block.Payload))
	dst = binary.LittleEndian.AppendUint32(dst, uint32(len(block.Indices)))
	for _, index := range block.Indices {
		dst = binary.LittleEndian.AppendUint32(dst, uint32(index))
	}
	dst = binary.LittleEndian.AppendUint32(dst, uint32(block.K))
	dst = binary.LittleEndian.AppendUint32(dst, uint32(block.ByteLength))
	dst = binary.LittleEndian.AppendUint32(dst, block.Checksum)
	return append(dst, block.Payload...), nil
}

// MarshalBinary implements encoding.BinaryMarshaler.
func (block *Block) MarshalBinary() ([]byte, error) {
	return block.AppendBinary(nil)
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler. Indices are sorted
// and the payload is copied out of data.
func (block *Block) UnmarshalBinary(data []byte) error {
	if len(data) < u32Size {
		return ErrMalformedFrame.New("frame of %d bytes has no degree", len(data))
	}
	degree := uint64(binary.LittleEndian.Uint32(data))
	if degree == 0 {
		return ErrMalformedFrame.New("zero degree")
	}

	// computed in 64 bits so a hostile degree cannot wrap around.
	header := u32Size + degree*u32Size + trailerSize
	if uint64(len(data)) < header {
		return ErrMalformedFrame.New("frame of %d bytes is shorter than %d byte header for degree %d",
			len(data), header, degree)
	}

	rest := data[u32Size:]
	indices := make([]int, degree)
	for i := range indices {
		indices[i] = int(binary.LittleEndian.Uint32(rest))
		rest = rest[u32Size:]
	}

	parsed := Block{
		Indices:    indices,
		K:          int(binary.LittleEndian.Uint32(rest[0:])),
		ByteLength: int(binary.LittleEndian.Uint32(rest[4:])),
		Checksum:   binary.LittleEndian.Uint32(rest[8:]),
		Payload:    bytes.Clone(rest[trailerSize:]),
	}
	if err := parsed.validate(); err != nil {
		return err
	}

	slices.Sort(parsed.Indices)
	*block = parsed
	return nil
}

// ParseBlock parses a binary frame.
func ParseBlock(data []byte) (*Block, error) {
	block := new(Block)
	if err := block.UnmarshalBinary(data); err != nil {
		return nil, err
	}
	return block, nil
}

// MarshalText implements encoding.TextMarshaler: TextPrefix followed by the
// base64 encoded frame.
func (block *Block) MarshalText() ([]byte, error) {
	frame, err := block.MarshalBinary()
	if err != nil {
		return nil, err
	}
	text := make([]byte, len(TextPrefix), len(TextPrefix)+base64.StdEncoding.EncodedLen(len(frame)))
	copy(text, TextPrefix)
	return base64.StdEncoding.AppendEncode(text, frame), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. The prefix is optional.
func (block *Block) UnmarshalText(text []byte) error {
	s := strings.TrimSpace(string(text))
	s = strings.TrimPrefix(s, TextPrefix)

	frame, err := decodeBase64(s)
	if err != nil {
		return ErrMalformedFrame.Wrap(err)
	}
	return block.UnmarshalBinary(frame)
}

// String returns the text form of the block, or a description of why it
// cannot be encoded.
func (block *Block) String() string {
	text, err := block.MarshalText()
	if err != nil {
		return "<invalid block: " + err.Error() + ">"
	}
	return string(text)
}

// ParseText parses the text form of a block.
func ParseText(s string) (*Block, error) {
	block := new(Block)
	if err := block.UnmarshalText([]byte(s)); err != nil {
		return nil, err
	}
	return block, nil
}

// IsText reports whether s carries the fountain frame prefix.
func IsText(s string) bool {
	return strings.HasPrefix(strings.TrimSpace(s), TextPrefix)
}

// decodeBase64 accepts the padded and unpadded, standard and URL-safe
// alphabets, since scanners and web senders disagree on them.
func decodeBase64(s string) (frame []byte, err error) {
	for _, encoding := range []*base64.Encoding{
		base64.StdEncoding, base64.RawStdEncoding,
		base64.URLEncoding, base64.RawURLEncoding,
	} {
		frame, err = encoding.DecodeString(s)
		if err == nil {
			return frame, nil
		}
	}
	return nil, err
}

func sortedCopy(indices []int) []int {
	sorted := slices.Clone(indices)
	slices.Sort(sorted)
	return sorted
}

// writeKey writes the canonical comma separated form of sorted indices.
func writeKey(b *strings.Builder, indices []int) {
	for i, index := range indices {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.Itoa(index))
	}
}
