// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

// Package slicing splits payloads into fixed-size slices and combines
// slices with XOR.
package slicing

import (
	"crypto/subtle"

	"github.com/zeebo/errs"
)

// Error is the default slicing errs class.
var Error = errs.Class("slicing")

// Count returns the number of slices of the given size needed to hold length
// bytes. An empty payload still needs one slice.
func Count(length, size int) int {
	if size < 1 {
		return 0
	}
	if length <= 0 {
		return 1
	}
	return (length + size - 1) / size
}

// Split cuts data into Count(len(data), size) slices of exactly size bytes.
// The last slice is zero padded. The returned slices never alias data.
func Split(data []byte, size int) ([][]byte, error) {
	if size < 1 {
		return nil, Error.New("invalid slice size %d", size)
	}

	k := Count(len(data), size)

	// one backing allocation for all slices; the three-index expressions keep
	// appends to one slice from running into the next.
	backing := make([]byte, k*size)
	copy(backing, data)

	slices := make([][]byte, k)
	for i := range slices {
		slices[i] = backing[i*size : (i+1)*size : (i+1)*size]
	}
	return slices, nil
}

// XOR sets dst[i] ^= src[i] for every byte both slices have.
func XOR(dst, src []byte) {
	n := min(len(dst), len(src))
	if n == 0 {
		return
	}
	subtle.XORBytes(dst[:n], dst[:n], src[:n])
}

// Join concatenates slices in order and truncates the result to length bytes.
func Join(slices [][]byte, length int) []byte {
	if length < 0 {
		length = 0
	}
	out := make([]byte, 0, length)
	for _, slice := range slices {
		remaining := length - len(out)
		if remaining <= 0 {
			break
		}
		out = append(out, slice[:min(len(slice), remaining)]...)
	}
	return out
}
