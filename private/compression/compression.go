// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

// Package compression provides the byte-stream compressors the fountain
// encoder may apply to a payload before slicing it.
package compression

import (
	"bytes"
	"io"
	"sort"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/ulikunitz/xz"
	"github.com/zeebo/errs"
)

// Error is the default compression errs class.
var Error = errs.Class("compression")

// MaxDecompressedSize bounds the output of Decompress so a corrupt or hostile
// payload cannot exhaust memory.
const MaxDecompressedSize = 64 << 20

// Codec compresses and decompresses whole in-memory buffers.
type Codec interface {
	// Name is the identifier used on the command line.
	Name() string
	// Compress returns the compressed form of data.
	Compress(data []byte) ([]byte, error)
	// Decompress reverses Compress. It fails on input Compress did not produce.
	Decompress(data []byte) ([]byte, error)
}

var (
	// Zlib is DEFLATE with the zlib header and trailer. It is the default
	// codec and what other QR stream implementations expect.
	Zlib Codec = zlibCodec{}
	// Zstd is Zstandard.
	Zstd Codec = zstdCodec{}
	// LZ4 is the LZ4 frame format.
	LZ4 Codec = lz4Codec{}
	// Brotli is Brotli at its default quality.
	Brotli Codec = brotliCodec{}
	// XZ is the xz container with LZMA2.
	XZ Codec = xzCodec{}
	// None passes data through unchanged.
	None Codec = noneCodec{}
)

var registry = map[string]Codec{}

func init() {
	for _, codec := range []Codec{Zlib, Zstd, LZ4, Brotli, XZ, None} {
		registry[codec.Name()] = codec
	}
}

// ByName returns the codec registered under name.
func ByName(name string) (Codec, error) {
	codec, ok := registry[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, Error.New("unknown codec %q (known: %s)", name, strings.Join(Names(), ", "))
	}
	return codec, nil
}

// Names returns the registered codec names in sorted order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// readAll drains r, failing once more than MaxDecompressedSize bytes come out.
func readAll(r io.Reader) ([]byte, error) {
	var buf bytes.Buffer
	n, err := buf.ReadFrom(io.LimitReader(r, MaxDecompressedSize+1))
	if err != nil {
		return nil, err
	}
	if n > MaxDecompressedSize {
		return nil, Error.New("decompressed size exceeds %d bytes", MaxDecompressedSize)
	}
	return buf.Bytes(), nil
}

type zlibCodec struct{}

func (zlibCodec) Name() string { return "zlib" }

func (zlibCodec) Compress(data []byte) (_ []byte, err error) {
	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		return nil, Error.Wrap(errs.Combine(err, w.Close()))
	}
	if err := w.Close(); err != nil {
		return nil, Error.Wrap(err)
	}
	return buf.Bytes(), nil
}

func (zlibCodec) Decompress(data []byte) (_ []byte, err error) {
	r, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, Error.Wrap(err)
	}
	defer func() { err = errs.Combine(err, Error.Wrap(r.Close())) }()

	out, err := readAll(r)
	return out, Error.Wrap(err)
}

var (
	zstdEncoder = func() *zstd.Encoder {
		encoder, err := zstd.NewWriter(nil,
			zstd.WithEncoderLevel(zstd.SpeedBetterCompression),
		)
		if err != nil {
			panic(err)
		}
		return encoder
	}()

	zstdDecoder = func() *zstd.Decoder {
		decoder, err := zstd.NewReader(nil,
			zstd.WithDecoderMaxMemory(MaxDecompressedSize),
		)
		if err != nil {
			panic(err)
		}
		return decoder
	}()
)

type zstdCodec struct{}

func (zstdCodec) Name() string { return "zstd" }

func (zstdCodec) Compress(data []byte) ([]byte, error) {
	return zstdEncoder.EncodeAll(data, nil), nil
}

func (zstdCodec) Decompress(data []byte) ([]byte, error) {
	out, err := zstdDecoder.DecodeAll(data, nil)
	return out, Error.Wrap(err)
}

type lz4Codec struct{}

func (lz4Codec) Name() string { return "lz4" }

func (lz4Codec) Compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := lz4.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		return nil, Error.Wrap(errs.Combine(err, w.Close()))
	}
	if err := w.Close(); err != nil {
		return nil, Error.Wrap(err)
	}
	return buf.Bytes(), nil
}

func (lz4Codec) Decompress(data []byte) ([]byte, error) {
	out, err := readAll(lz4.NewReader(bytes.NewReader(data)))
	return out, Error.Wrap(err)
}

type brotliCodec struct{}

func (brotliCodec) Name() string { return "brotli" }

func (brotliCodec) Compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := brotli.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		return nil, Error.Wrap(errs.Combine(err, w.Close()))
	}
	if err := w.Close(); err != nil {
		return nil, Error.Wrap(err)
	}
	return buf.Bytes(), nil
}

func (brotliCodec) Decompress(data []byte) ([]byte, error) {
	out, err := readAll(brotli.NewReader(bytes.NewReader(data)))
	return out, Error.Wrap(err)
}

type xzCodec struct{}

func (xzCodec) Name() string { return "xz" }

func (xzCodec) Compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := xz.NewWriter(&buf)
	if err != nil {
		return nil, Error.Wrap(err)
	}
	if _, err := w.Write(data); err != nil {
		return nil, Error.Wrap(errs.Combine(err, w.Close()))
	}
	if err := w.Close(); err != nil {
		return nil, Error.Wrap(err)
	}
	return buf.Bytes(), nil
}

func (xzCodec) Decompress(data []byte) ([]byte, error) {
	r, err := xz.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, Error.Wrap(err)
	}
	out, err := readAll(r)
	return out, Error.Wrap(err)
}

type noneCodec struct{}

func (noneCodec) Name() string { return "none" }

func (noneCodec) Compress(data []byte) ([]byte, error) {
	return bytes.Clone(data), nil
}

func (noneCodec) Decompress(data []byte) ([]byte, error) {
	return bytes.Clone(data), nil
}
