// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

package main

import (
	"bufio"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"github.com/zeebo/errs"
	"go.uber.org/zap"

	"storj.io/common/memory"
	"storj.io/fountain"
	"storj.io/fountain/private/compression"
	"storj.io/fountain/private/meta"
)

// maxLineSize bounds a single frame line.
const maxLineSize = 16 * memory.MiB

type decodeOptions struct {
	compression string
	raw         bool
	output      string
	debug       bool
}

func runDecode(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) (err error) {
	var opts decodeOptions

	flags := pflag.NewFlagSet("decode", pflag.ContinueOnError)
	flags.StringVar(&opts.compression, "compression", compression.Zlib.Name(),
		"codec the sender used ("+strings.Join(compression.Names(), ", ")+")")
	flags.BoolVar(&opts.raw, "raw", false, "the frames carry the file contents without the filename header")
	flags.StringVarP(&opts.output, "output", "o", "", "write the file here (default: the name from the header, or stdout with --raw)")
	flags.BoolVar(&opts.debug, "debug", false, "enable debug logging")

	if ok, err := parseFlags(flags, args, stderr); !ok {
		return err
	}
	if flags.NArg() > 1 {
		return Error.New("decode expects at most one input file, got %d arguments", flags.NArg())
	}

	log := newLogger(opts.debug, stderr)
	defer func() { _ = log.Sync() }()

	codec, err := compression.ByName(opts.compression)
	if err != nil {
		return err
	}

	input := stdin
	if path := flags.Arg(0); path != "" && path != "-" {
		file, openErr := os.Open(path)
		if openErr != nil {
			return Error.Wrap(openErr)
		}
		defer func() { err = errs.Combine(err, Error.Wrap(file.Close())) }()
		input = file
	}

	receiver := fountain.NewReceiver(log.Named("receiver"), fountain.DecoderConfig{Compression: codec})
	if err := readFrames(ctx, log, input, receiver); err != nil {
		return err
	}

	data, err := receiver.Wait(ctx)
	if err != nil {
		return err
	}

	destination := opts.output
	if !opts.raw {
		var header meta.FileHeader
		data, header, err = meta.ReadFileHeader(data)
		if err != nil {
			return Error.Wrap(err)
		}
		if destination == "" {
			destination, err = headerDestination(header)
			if err != nil {
				return err
			}
		}
		log.Debug("file header", zap.String("filename", header.Filename), zap.String("content-type", header.ContentType))
	}

	if destination == "" || destination == "-" {
		_, err := stdout.Write(data)
		return Error.Wrap(err)
	}

	log.Info("writing file", zap.String("path", destination), zap.Int("bytes", len(data)))
	return Error.Wrap(os.WriteFile(destination, data, 0o644))
}

// readFrames feeds every frame line of input to receiver until the transfer
// completes. Blank lines, foreign text and damaged frames are skipped.
func readFrames(ctx context.Context, log *zap.Logger, input io.Reader, receiver *fountain.Receiver) error {
	scanner := bufio.NewScanner(input)
	scanner.Buffer(make([]byte, 0, 64*memory.KiB.Int()), maxLineSize.Int())

	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}

		complete, err := receiver.Receive(ctx, text)
		switch {
		case fountain.ErrNotFountain.Has(err):
			log.Debug("skipping line without frame prefix", zap.Int("line", line))
			continue
		case fountain.ErrMalformedFrame.Has(err), fountain.ErrChecksumMismatch.Has(err):
			log.Debug("skipping damaged frame", zap.Int("line", line), zap.Error(err))
			continue
		case err != nil:
			return err
		}

		if complete {
			return nil
		}
	}
	if err := scanner.Err(); err != nil {
		return Error.Wrap(err)
	}

	progress := receiver.Progress()
	return Error.New("input ended after %d frames with %d of %d slices resolved",
		progress.Scanned, progress.Resolved, progress.K)
}

// headerDestination derives an output path in the current directory from
// the sender's filename.
func headerDestination(header meta.FileHeader) (string, error) {
	name := filepath.Base(filepath.Clean("/" + header.Filename))
	if name == "/" || name == "." || name == "" {
		return "", Error.New("header carries no usable filename (%q), use --output", header.Filename)
	}
	return name, nil
}
