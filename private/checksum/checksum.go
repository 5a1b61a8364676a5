// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

// Package checksum implements the session integrity hash shared by the
// fountain encoder and decoder.
package checksum

import "hash/crc32"

// Sum returns the CRC-32 (IEEE) of data mixed with the slice count k.
//
// Mixing in k makes two transfers of identical bytes with different slicing
// parameters distinguishable, so a decoder never accepts a block that was
// produced with a different slice size for the same content.
func Sum(data []byte, k int) uint32 {
	return crc32.ChecksumIEEE(data) ^ uint32(k)
}

// Verify reports whether data hashes to expected under slice count k.
func Verify(data []byte, k int, expected uint32) bool {
	return Sum(data, k) == expected
}
