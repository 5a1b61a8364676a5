// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

package fountain

import (
	"bytes"
	"slices"

	"storj.io/fountain/private/checksum"
	"storj.io/fountain/private/slicing"
)

// pending is a block that still combines more than one unknown slice.
//
// Records live in Decoder.arena and are referenced by their position in it,
// so the lookup tables below never hold pointers into each other.
type pending struct {
	indices []int
	payload []byte

	// key is computed from indices by process and is what the record is
	// registered under. Registered records keep indices unchanged.
	key        setKey
	registered bool
}

// setKey identifies a set of slice indices by its size and the XOR of the
// mixed indices. Removing an index from a set is one XOR, so every "all but
// one" key of a record costs O(1). Distinct sets may collide; a key hit is
// always confirmed against the indices.
type setKey struct {
	hash   uint64
	degree int
}

func keyOf(indices []int) setKey {
	key := setKey{degree: len(indices)}
	for _, index := range indices {
		key.hash ^= mix(index)
	}
	return key
}

// without returns the key of the set with index removed.
func (key setKey) without(index int) setKey {
	return setKey{hash: key.hash ^ mix(index), degree: key.degree - 1}
}

// mix is the splitmix64 finalizer.
func mix(index int) uint64 {
	z := uint64(index) + 0x9E3779B97F4A7C15
	z = (z ^ (z >> 30)) * 0xBF58476D1CE4E5B9
	z = (z ^ (z >> 27)) * 0x94D049BB133111EB
	return z ^ (z >> 31)
}

// Decoder reassembles a payload from blocks of one session, received in any
// order, with duplicates and gaps.
//
// It is a peeling decoder: blocks combining a single unknown slice resolve
// it, resolved slices are XORed out of the blocks that reference them, and
// pending blocks whose indices differ by exactly one are combined. Richer
// elimination is deliberately not attempted.
//
// A Decoder is not safe for concurrent use; see Receiver.
type Decoder struct {
	config DecoderConfig

	established bool
	k           int
	byteLength  int
	sliceSize   int
	checksum    uint32

	resolved      [][]byte
	resolvedCount int

	received  int
	redundant int

	arena        []pending
	free         []int
	pendingCount int

	// byKey maps the key of a registered record to its handle.
	byKey map[setKey]int
	// byIndex maps an unresolved slice to the records combining it.
	byIndex map[int]map[int]struct{}
	// bySubkey maps a key to the records of degree above two that would
	// collapse to a single slice if a block with exactly that key showed up.
	bySubkey map[setKey][]int

	queue []int
}

// NewDecoder returns a decoder waiting for the first block of a session.
func NewDecoder(config DecoderConfig) *Decoder {
	return &Decoder{config: config}
}

// AddBlock folds block into the decode graph and reports whether every
// slice is now resolved. The block is not modified or retained.
//
// A block from a different session is rejected with ErrChecksumMismatch and
// a block that cannot belong to the session's slicing with
// ErrMalformedFrame; neither changes the decoder's state.
func (dec *Decoder) AddBlock(block *Block) (complete bool, err error) {
	if block == nil {
		return false, Error.New("nil block")
	}
	if err := block.validate(); err != nil {
		mon.Meter("decoder_blocks_rejected").Mark(1)
		return false, err
	}

	if !dec.established {
		dec.establish(block)
	}
	if err := dec.admit(block); err != nil {
		mon.Meter("decoder_blocks_rejected").Mark(1)
		return false, err
	}

	dec.received++
	mon.Meter("decoder_blocks").Mark(1)

	if dec.Complete() {
		dec.redundant++
		return true, nil
	}

	h := dec.alloc(sortedCopy(block.Indices), bytes.Clone(block.Payload))
	dec.queue = append(dec.queue[:0], h)
	dec.drain()

	if dec.Complete() {
		dec.releaseGraph()
		return true, nil
	}

	mon.IntVal("decoder_pending_blocks").Observe(int64(dec.pendingCount))
	return false, nil
}

// establish captures the session constants from its first block.
func (dec *Decoder) establish(block *Block) {
	dec.established = true
	dec.k = block.K
	dec.byteLength = block.ByteLength
	dec.sliceSize = len(block.Payload)
	dec.checksum = block.Checksum

	dec.resolved = make([][]byte, dec.k)
	dec.byKey = make(map[setKey]int)
	dec.byIndex = make(map[int]map[int]struct{})
	dec.bySubkey = make(map[setKey][]int)
}

// admit checks that block belongs to the established session.
func (dec *Decoder) admit(block *Block) error {
	if block.Checksum != dec.checksum {
		return ErrChecksumMismatch.New("block checksum %08x does not match session checksum %08x",
			block.Checksum, dec.checksum)
	}
	if block.K != dec.k || block.ByteLength != dec.byteLength {
		return ErrChecksumMismatch.New("block parameters (k=%d, length=%d) disagree with session (k=%d, length=%d)",
			block.K, block.ByteLength, dec.k, dec.byteLength)
	}
	if len(block.Payload) != dec.sliceSize {
		return ErrMalformedFrame.New("payload of %d bytes, session slices are %d bytes",
			len(block.Payload), dec.sliceSize)
	}
	return nil
}

// drain processes queued records breadth first until nothing is left to
// propagate or the payload is complete.
func (dec *Decoder) drain() {
	for len(dec.queue) > 0 && !dec.Complete() {
		h := dec.queue[0]
		dec.queue = dec.queue[1:]
		dec.process(h)
	}
}

// process reduces an unregistered record as far as the current graph allows
// and then resolves, registers or discards it.
func (dec *Decoder) process(h int) {
	rec := &dec.arena[h]

	kept := rec.indices[:0]
	for _, index := range rec.indices {
		if slice := dec.resolved[index]; slice != nil {
			slicing.XOR(rec.payload, slice)
			continue
		}
		kept = append(kept, index)
	}
	rec.indices = kept
	rec.key = keyOf(rec.indices)

	if len(rec.indices) > 2 {
		for i, index := range rec.indices {
			other, ok := dec.byKey[rec.key.without(index)]
			if !ok || !equalWithout(dec.arena[other].indices, rec.indices, i) {
				continue
			}
			// the other record holds every index but this one.
			slicing.XOR(rec.payload, dec.arena[other].payload)
			rec.indices = append(rec.indices[:0], index)
			rec.key = keyOf(rec.indices)
			mon.Meter("decoder_subset_matches").Mark(1)
			break
		}
	}

	switch len(rec.indices) {
	case 0:
		dec.discard(h)
	case 1:
		dec.resolve(h)
	default:
		dec.register(h)
	}
}

// resolve stores the single remaining slice of record h and requeues every
// record that references it.
func (dec *Decoder) resolve(h int) {
	rec := &dec.arena[h]
	index := rec.indices[0]
	if dec.resolved[index] != nil {
		dec.discard(h)
		return
	}

	dec.resolved[index] = rec.payload
	dec.resolvedCount++
	dec.release(h)
	mon.Meter("decoder_slices_resolved").Mark(1)

	waiting, ok := dec.byIndex[index]
	if !ok {
		return
	}
	delete(dec.byIndex, index)
	for _, w := range sortedHandles(waiting) {
		dec.unregister(w)
		dec.queue = append(dec.queue, w)
	}
}

// register records h as pending under its key, its indices and, above
// degree two, every key one index smaller. It then reduces the pending
// records that were waiting for exactly this key.
func (dec *Decoder) register(h int) {
	rec := &dec.arena[h]
	if owner, ok := dec.byKey[rec.key]; ok && slices.Equal(dec.arena[owner].indices, rec.indices) {
		dec.discard(h)
		return
	}

	rec.registered = true
	dec.pendingCount++
	if _, ok := dec.byKey[rec.key]; !ok {
		dec.byKey[rec.key] = h
	}
	for _, index := range rec.indices {
		addHandle(dec.byIndex, index, h)
	}
	if len(rec.indices) > 2 {
		for _, index := range rec.indices {
			subkey := rec.key.without(index)
			dec.bySubkey[subkey] = append(dec.bySubkey[subkey], h)
		}
	}

	waiting := slices.Clone(dec.bySubkey[rec.key])
	slices.Sort(waiting)
	for _, w := range waiting {
		superset := &dec.arena[w]
		if !isSubset(rec.indices, superset.indices) {
			continue
		}
		dec.unregister(w)
		slicing.XOR(superset.payload, rec.payload)
		superset.indices = difference(superset.indices, rec.indices)
		dec.queue = append(dec.queue, w)
		mon.Meter("decoder_superset_matches").Mark(1)
	}
}

// unregister removes h from every lookup table so it can be mutated and
// queued again.
func (dec *Decoder) unregister(h int) {
	rec := &dec.arena[h]
	if !rec.registered {
		return
	}
	rec.registered = false
	dec.pendingCount--

	if owner, ok := dec.byKey[rec.key]; ok && owner == h {
		delete(dec.byKey, rec.key)
	}
	for _, index := range rec.indices {
		removeHandle(dec.byIndex, index, h)
	}
	if len(rec.indices) > 2 {
		for _, index := range rec.indices {
			dec.removeWaiting(rec.key.without(index), h)
		}
	}
}

func (dec *Decoder) removeWaiting(subkey setKey, h int) {
	waiting := dec.bySubkey[subkey]
	if i := slices.Index(waiting, h); i >= 0 {
		last := len(waiting) - 1
		waiting[i] = waiting[last]
		waiting = waiting[:last]
	}
	if len(waiting) == 0 {
		delete(dec.bySubkey, subkey)
		return
	}
	dec.bySubkey[subkey] = waiting
}

// discard drops a record that carries no new information.
func (dec *Decoder) discard(h int) {
	dec.redundant++
	mon.Meter("decoder_blocks_redundant").Mark(1)
	dec.release(h)
}

func (dec *Decoder) alloc(indices []int, payload []byte) int {
	rec := pending{indices: indices, payload: payload}
	if n := len(dec.free); n > 0 {
		h := dec.free[n-1]
		dec.free = dec.free[:n-1]
		dec.arena[h] = rec
		return h
	}
	dec.arena = append(dec.arena, rec)
	return len(dec.arena) - 1
}

func (dec *Decoder) release(h int) {
	dec.arena[h] = pending{}
	dec.free = append(dec.free, h)
}

// releaseGraph drops the pending bookkeeping once every slice is known.
func (dec *Decoder) releaseGraph() {
	dec.arena, dec.free, dec.queue = nil, nil, nil
	dec.pendingCount = 0
	clear(dec.byKey)
	clear(dec.byIndex)
	clear(dec.bySubkey)
}

// Complete reports whether every slice has been resolved.
func (dec *Decoder) Complete() bool {
	return dec.established && dec.resolvedCount == dec.k
}

// K returns the session's slice count, or zero before the first block.
func (dec *Decoder) K() int { return dec.k }

// Checksum returns the session checksum.
func (dec *Decoder) Checksum() (uint32, error) {
	if !dec.established {
		return 0, ErrNoSession.New("")
	}
	return dec.checksum, nil
}

// Resolved returns how many slices are known.
func (dec *Decoder) Resolved() int { return dec.resolvedCount }

// Received returns how many blocks of the session were accepted.
func (dec *Decoder) Received() int { return dec.received }

// Redundant returns how many accepted blocks carried no new information.
func (dec *Decoder) Redundant() int { return dec.redundant }

// Pending returns how many blocks wait in the decode graph.
func (dec *Decoder) Pending() int { return dec.pendingCount }

// Progress returns the fraction of resolved slices.
func (dec *Decoder) Progress() float64 {
	if dec.k == 0 {
		return 0
	}
	return float64(dec.resolvedCount) / float64(dec.k)
}

// Decoded returns the reassembled payload.
//
// The joined slices are first decompressed and verified; if that fails they
// are verified as they are, since the sender may have skipped compression.
// If neither matches the session checksum, ErrChecksumMismatch is returned
// and no data.
func (dec *Decoder) Decoded() ([]byte, error) {
	if !dec.established {
		return nil, ErrNoSession.New("")
	}
	if !dec.Complete() {
		return nil, ErrIncomplete.New("%d of %d slices resolved", dec.resolvedCount, dec.k)
	}

	raw := slicing.Join(dec.resolved, dec.byteLength)

	if decompressed, err := dec.config.codec().Decompress(raw); err == nil &&
		checksum.Verify(decompressed, dec.k, dec.checksum) {
		return decompressed, nil
	}
	if checksum.Verify(raw, dec.k, dec.checksum) {
		return raw, nil
	}

	mon.Meter("decoder_verification_failed").Mark(1)
	return nil, ErrChecksumMismatch.New("reassembled data does not match session checksum %08x", dec.checksum)
}

// equalWithout reports whether sorted a equals sorted b with b[skip] left
// out.
func equalWithout(a, b []int, skip int) bool {
	if len(a) != len(b)-1 {
		return false
	}
	return slices.Equal(a[:skip], b[:skip]) && slices.Equal(a[skip:], b[skip+1:])
}

// isSubset reports whether every element of sorted a is in sorted b.
func isSubset(a, b []int) bool {
	j := 0
	for _, v := range a {
		for j < len(b) && b[j] < v {
			j++
		}
		if j == len(b) || b[j] != v {
			return false
		}
		j++
	}
	return true
}

// difference returns the elements of sorted a that are not in sorted b.
func difference(a, b []int) []int {
	out := a[:0]
	j := 0
	for _, v := range a {
		for j < len(b) && b[j] < v {
			j++
		}
		if j < len(b) && b[j] == v {
			continue
		}
		out = append(out, v)
	}
	return out
}

func addHandle[K comparable](table map[K]map[int]struct{}, key K, h int) {
	set, ok := table[key]
	if !ok {
		set = make(map[int]struct{})
		table[key] = set
	}
	set[h] = struct{}{}
}

func removeHandle[K comparable](table map[K]map[int]struct{}, key K, h int) {
	set, ok := table[key]
	if !ok {
		return
	}
	delete(set, h)
	if len(set) == 0 {
		delete(table, key)
	}
}

// sortedHandles keeps propagation order independent of map iteration.
func sortedHandles(set map[int]struct{}) []int {
	handles := make([]int, 0, len(set))
	for h := range set {
		handles = append(handles, h)
	}
	slices.Sort(handles)
	return handles
}
