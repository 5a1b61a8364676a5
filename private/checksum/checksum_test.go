// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

package checksum_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"storj.io/fountain/private/checksum"
)

func TestSum(t *testing.T) {
	data := []byte{0xAB, 0xCD, 0xEF, 0x12, 0x34}

	require.Equal(t, uint32(0xBE0C7CBB), checksum.Sum(data, 1))
	require.True(t, checksum.Verify(data, 1, 0xBE0C7CBB))

	// the same bytes under a different slice count must not collide.
	require.NotEqual(t, checksum.Sum(data, 1), checksum.Sum(data, 2))
	require.Equal(t, checksum.Sum(data, 1)^1^2, checksum.Sum(data, 2))

	require.False(t, checksum.Verify(data[:4], 1, 0xBE0C7CBB))
}

func TestSumEmpty(t *testing.T) {
	// crc32 of nothing is zero, so only k remains.
	require.Equal(t, uint32(1), checksum.Sum(nil, 1))
	require.Equal(t, uint32(7), checksum.Sum([]byte{}, 7))
}
