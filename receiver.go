// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

package fountain

import (
	"context"
	"sync"
	"unicode/utf8"

	"go.uber.org/zap"

	"storj.io/common/sync2"
	"storj.io/eventkit"
)

// Progress is a snapshot of the current transfer.
type Progress struct {
	// K is the number of slices, zero before the first block.
	K int
	// Resolved is the number of known slices.
	Resolved int
	// Scanned is the number of distinct frames fed to the decoder.
	Scanned int
	// Checksum identifies the session.
	Checksum uint32
}

// Done reports whether every slice has been resolved.
func (progress Progress) Done() bool {
	return progress.K > 0 && progress.Resolved == progress.K
}

// Receiver drives a Decoder from a live scanning loop. It is safe for
// concurrent use.
//
// Frames of a different session start a new transfer, replayed frames are
// dropped before they reach the decoder and frames arriving after the
// transfer finished are ignored.
type Receiver struct {
	log    *zap.Logger
	config DecoderConfig

	mu      sync.Mutex
	session *session
}

type session struct {
	decoder *Decoder
	seen    map[string]struct{}
	scanned int

	done      sync2.Fence
	abandoned bool
	data      []byte
	err       error
}

func newSession(config DecoderConfig) *session {
	return &session{
		decoder: NewDecoder(config),
		seen:    make(map[string]struct{}),
	}
}

// NewReceiver returns a receiver waiting for the first frame.
func NewReceiver(log *zap.Logger, config DecoderConfig) *Receiver {
	if log == nil {
		log = zap.NewNop()
	}
	return &Receiver{
		log:     log,
		config:  config,
		session: newSession(config),
	}
}

// Receive handles one scanned string. Text without TextPrefix fails with
// ErrNotFountain so the caller can treat it as an ordinary code.
func (receiver *Receiver) Receive(ctx context.Context, text string) (complete bool, err error) {
	if !IsText(text) {
		return false, ErrNotFountain.New("%q", truncate(text, 32))
	}
	block, err := ParseText(text)
	if err != nil {
		mon.Meter("receiver_frames_malformed").Mark(1)
		return false, err
	}
	return receiver.ReceiveBlock(ctx, block)
}

// ReceiveBlock feeds one parsed block into the current session and reports
// whether the transfer is complete.
func (receiver *Receiver) ReceiveBlock(ctx context.Context, block *Block) (complete bool, err error) {
	defer mon.Task()(&ctx)(&err)

	if block == nil {
		return false, Error.New("nil block")
	}
	if err := block.validate(); err != nil {
		return false, err
	}

	receiver.mu.Lock()
	defer receiver.mu.Unlock()

	current := receiver.session
	if checksum, err := current.decoder.Checksum(); err == nil && checksum != block.Checksum {
		receiver.log.Info("new transfer detected, resetting",
			zap.Uint32("previous", checksum),
			zap.Uint32("checksum", block.Checksum))
		receiver.resetLocked()
		current = receiver.session
	}

	if current.decoder.Complete() {
		return true, nil
	}

	id := block.ID()
	if _, ok := current.seen[id]; ok {
		mon.Meter("receiver_frames_replayed").Mark(1)
		return false, nil
	}

	complete, err = current.decoder.AddBlock(block)
	if err != nil {
		receiver.log.Debug("block rejected", zap.String("id", id), zap.Error(err))
		return false, err
	}
	current.seen[id] = struct{}{}
	current.scanned++

	if complete {
		receiver.finishLocked(current)
	}
	return complete, nil
}

// finishLocked captures the decoded payload and releases waiters.
func (receiver *Receiver) finishLocked(current *session) {
	current.data, current.err = current.decoder.Decoded()
	current.seen = nil

	if current.err != nil {
		receiver.log.Warn("transfer failed verification",
			zap.Uint32("checksum", current.decoder.checksum),
			zap.Error(current.err))
	} else {
		receiver.log.Info("transfer complete",
			zap.Uint32("checksum", current.decoder.checksum),
			zap.Int("k", current.decoder.K()),
			zap.Int("scanned", current.scanned),
			zap.Int("bytes", len(current.data)))
	}

	evs.Event("transfer-complete",
		eventkit.Int64("k", int64(current.decoder.K())),
		eventkit.Int64("slice-size", int64(current.decoder.sliceSize)),
		eventkit.Int64("scanned", int64(current.scanned)),
		eventkit.Int64("redundant", int64(current.decoder.Redundant())),
		eventkit.Bool("verified", current.err == nil))

	current.done.Release()
}

// Progress returns a snapshot of the current transfer.
func (receiver *Receiver) Progress() Progress {
	receiver.mu.Lock()
	defer receiver.mu.Unlock()

	dec := receiver.session.decoder
	return Progress{
		K:        dec.K(),
		Resolved: dec.Resolved(),
		Scanned:  receiver.session.scanned,
		Checksum: dec.checksum,
	}
}

// Wait blocks until a transfer completes and returns its payload, or the
// verification error if the reassembled data did not match its checksum.
// Sessions abandoned while waiting are followed to the next one.
func (receiver *Receiver) Wait(ctx context.Context) (_ []byte, err error) {
	defer mon.Task()(&ctx)(&err)

	for {
		receiver.mu.Lock()
		current := receiver.session
		receiver.mu.Unlock()

		if !current.done.Wait(ctx) {
			return nil, Error.Wrap(ctx.Err())
		}

		receiver.mu.Lock()
		abandoned, data, err := current.abandoned, current.data, current.err
		receiver.mu.Unlock()

		if !abandoned {
			return data, err
		}
	}
}

// Reset abandons the current transfer.
func (receiver *Receiver) Reset() {
	receiver.mu.Lock()
	defer receiver.mu.Unlock()

	receiver.resetLocked()
}

func (receiver *Receiver) resetLocked() {
	previous := receiver.session
	if !previous.decoder.Complete() {
		previous.abandoned = true
		previous.done.Release()
	}
	receiver.session = newSession(receiver.config)
	mon.Meter("receiver_sessions_reset").Mark(1)
}

// truncate shortens s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
