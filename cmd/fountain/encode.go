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

	"storj.io/fountain"
	"storj.io/fountain/private/compression"
	"storj.io/fountain/private/meta"
)

type encodeOptions struct {
	sliceSize   int
	compression string
	count       int
	recovery    float64
	raw         bool
	output      string
	debug       bool
}

func runEncode(ctx context.Context, args []string, stdout, stderr io.Writer) (err error) {
	var opts encodeOptions

	flags := pflag.NewFlagSet("encode", pflag.ContinueOnError)
	flags.IntVar(&opts.sliceSize, "slice-size", fountain.DefaultSliceSize.Int(), "payload bytes per frame")
	flags.StringVar(&opts.compression, "compression", compression.Zlib.Name(),
		"codec applied before slicing ("+strings.Join(compression.Names(), ", ")+")")
	flags.IntVar(&opts.count, "count", 0, "number of frames to write (0 derives it from --recovery)")
	flags.Float64Var(&opts.recovery, "recovery", fountain.DefaultRecoveryFactor, "frames written per slice when --count is 0")
	flags.BoolVar(&opts.raw, "raw", false, "send the file contents without the filename header")
	flags.StringVarP(&opts.output, "output", "o", "", "write frames to this file instead of stdout")
	flags.BoolVar(&opts.debug, "debug", false, "enable debug logging")

	if ok, err := parseFlags(flags, args, stderr); !ok {
		return err
	}
	if flags.NArg() != 1 {
		return Error.New("encode expects exactly one file, got %d arguments", flags.NArg())
	}
	if opts.count < 0 {
		return Error.New("invalid frame count %d", opts.count)
	}

	log := newLogger(opts.debug, stderr)
	defer func() { _ = log.Sync() }()

	codec, err := compression.ByName(opts.compression)
	if err != nil {
		return err
	}

	path := flags.Arg(0)
	data, err := os.ReadFile(path)
	if err != nil {
		return Error.Wrap(err)
	}

	payload := data
	if !opts.raw {
		payload = meta.AppendFileHeader(data, meta.FileHeader{
			Filename:    filepath.Base(path),
			ContentType: meta.DefaultContentType,
		})
	}

	enc, err := fountain.NewEncoder(payload, fountain.EncoderConfig{
		SliceSize:   opts.sliceSize,
		Compress:    codec != compression.None,
		Compression: codec,
	})
	if err != nil {
		return err
	}

	count := opts.count
	if count == 0 {
		count = enc.RequiredBlocks(opts.recovery)
	}

	log.Info("encoding",
		zap.String("file", path),
		zap.Int("bytes", len(data)),
		zap.Int("k", enc.K()),
		zap.Bool("compressed", enc.Compressed()),
		zap.String("codec", codec.Name()),
		zap.Int("frames", count))

	out := stdout
	if opts.output != "" && opts.output != "-" {
		file, createErr := os.Create(opts.output)
		if createErr != nil {
			return Error.Wrap(createErr)
		}
		defer func() { err = errs.Combine(err, Error.Wrap(file.Close())) }()
		out = file
	}

	return writeFrames(ctx, out, enc, count)
}

func writeFrames(ctx context.Context, out io.Writer, enc *fountain.Encoder, count int) error {
	w := bufio.NewWriter(out)
	for range count {
		if err := ctx.Err(); err != nil {
			return Error.Wrap(err)
		}

		text, err := enc.Next().MarshalText()
		if err != nil {
			return err
		}
		if _, err := w.Write(append(text, '\n')); err != nil {
			return Error.Wrap(err)
		}
	}
	return Error.Wrap(w.Flush())
}
