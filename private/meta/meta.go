// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

// Package meta implements the payload-level framing used to ship a small
// metadata record (filename, content type) together with the payload.
//
// The framing is a sequence of entries, each a 4 byte big-endian length
// followed by that many bytes. The fountain codec never looks inside it.
package meta

import (
	"encoding/binary"

	"github.com/zeebo/errs"

	"storj.io/picobuf"
)

// Error is the default meta errs class.
var Error = errs.Class("meta")

// DefaultContentType is used when a sender does not know better.
const DefaultContentType = "application/octet-stream"

const lengthSize = 4

// Append appends each entry to dst, prefixed with its length.
func Append(dst []byte, entries ...[]byte) []byte {
	for _, entry := range entries {
		dst = binary.BigEndian.AppendUint32(dst, uint32(len(entry)))
		dst = append(dst, entry...)
	}
	return dst
}

// Split parses buf into its entries. The entries alias buf.
func Split(buf []byte) ([][]byte, error) {
	var entries [][]byte
	for len(buf) > 0 {
		if len(buf) < lengthSize {
			return nil, Error.New("truncated entry length: %d bytes left", len(buf))
		}
		n := uint64(binary.BigEndian.Uint32(buf))
		buf = buf[lengthSize:]
		if n > uint64(len(buf)) {
			return nil, Error.New("entry of %d bytes exceeds remaining %d bytes", n, len(buf))
		}
		entries = append(entries, buf[:n:n])
		buf = buf[n:]
	}
	return entries, nil
}

// FileHeader describes the payload that follows it.
type FileHeader struct {
	Filename    string
	ContentType string
}

const (
	filenameField    = 1
	contentTypeField = 2
)

// Marshal encodes the header as a protobuf record.
func (header FileHeader) Marshal() []byte {
	enc := picobuf.NewEncoder()
	enc.String(filenameField, &header.Filename)
	enc.String(contentTypeField, &header.ContentType)
	return enc.Buffer()
}

// ParseFileHeader decodes a record produced by FileHeader.Marshal.
func ParseFileHeader(data []byte) (header FileHeader, err error) {
	decoder := picobuf.NewDecoder(data)
	decoder.Loop(func(d *picobuf.Decoder) {
		d.String(filenameField, &header.Filename)
		d.String(contentTypeField, &header.ContentType)
	})
	if err := decoder.Err(); err != nil {
		return FileHeader{}, Error.Wrap(err)
	}
	return header, nil
}

// AppendFileHeader frames data behind header. An empty content type is
// replaced by DefaultContentType.
func AppendFileHeader(data []byte, header FileHeader) []byte {
	if header.ContentType == "" {
		header.ContentType = DefaultContentType
	}
	record := header.Marshal()

	out := make([]byte, 0, 2*lengthSize+len(record)+len(data))
	return Append(out, record, data)
}

// ReadFileHeader splits a buffer produced by AppendFileHeader back into the
// payload and its header.
func ReadFileHeader(buf []byte) (data []byte, header FileHeader, err error) {
	entries, err := Split(buf)
	if err != nil {
		return nil, FileHeader{}, err
	}
	if len(entries) != 2 {
		return nil, FileHeader{}, Error.New("expected 2 entries, got %d", len(entries))
	}

	header, err = ParseFileHeader(entries[0])
	if err != nil {
		return nil, FileHeader{}, err
	}
	return entries[1], header, nil
}
