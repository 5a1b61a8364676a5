// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

// Package fountain implements a Luby Transform fountain code for moving a
// payload over a one-way, lossy channel such as a cycling sequence of QR
// codes.
//
// An Encoder produces an unbounded stream of blocks, each the XOR of a
// random subset of fixed-size slices. A Decoder collects blocks in any order
// and reassembles the payload once slightly more than k of them arrived.
// Receiver wraps a Decoder for scanning loops.
package fountain

import (
	"github.com/spacemonkeygo/monkit/v3"
	"github.com/zeebo/errs"

	"storj.io/eventkit"
)

var (
	mon = monkit.Package()
	evs = eventkit.Package()
)

var (
	// Error is the default fountain errs class.
	Error = errs.Class("fountain")

	// ErrMalformedFrame is returned when a frame is too short, has
	// inconsistent lengths or cannot belong to the current session's
	// slicing. Callers scanning a live feed should drop the input and keep
	// listening.
	ErrMalformedFrame = errs.Class("malformed frame")

	// ErrChecksumMismatch is returned when a block belongs to a different
	// session, or when the reassembled data fails verification.
	ErrChecksumMismatch = errs.Class("checksum mismatch")

	// ErrIncomplete is returned when decoded data is requested before every
	// slice has been resolved.
	ErrIncomplete = errs.Class("incomplete")

	// ErrNoSession is returned by session queries made before any block has
	// been added.
	ErrNoSession = errs.Class("no session established")

	// ErrNotFountain is returned for scanned text that is not a fountain
	// frame at all.
	ErrNotFountain = errs.Class("not a fountain frame")
)
