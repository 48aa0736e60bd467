// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package blockio implements the block writer/indexer (spec §4.6): it
// serializes records to a scratch buffer, compresses each chunk with a
// pluggable stream codec, and appends the compressed bytes to the archive
// body while the caller records chunk lengths or breakpoint offsets.
//
// The codec abstraction and per-block buffering discipline are grounded on
// github.com/grailbio/bio/encoding/bgzf.Writer, generalized from bgzf's
// fixed 64KB block framing to boiler's variable-size, externally-indexed
// chunks (junction chunks, unspliced breakpoint segments, exon-histogram
// chunks).
package blockio

import (
	"bytes"
	"compress/flate"
	"io"

	"github.com/boilerbio/boiler/boilerr"
	"github.com/golang/snappy"
	kflate "github.com/klauspost/compress/flate"
)

// Method selects the block compressor, spec §6 Configuration.
type Method string

const (
	// MethodDeflate is the default block codec.
	MethodDeflate Method = "deflate"
	// MethodLZMA selects an lzma block codec.
	MethodLZMA Method = "lzma"
	// MethodBzip2 selects a bzip2 block codec.
	MethodBzip2 Method = "bzip2"
	// MethodSnappy selects a snappy block codec, trading compression
	// ratio for decode speed on repeatedly-scanned archives.
	MethodSnappy Method = "snappy"
)

// Codec compresses and decompresses independently-framed blocks.
type Codec interface {
	Name() Method
	// Compress returns the compressed form of data.
	Compress(data []byte) ([]byte, error)
	// Decompress returns the decompressed form of a block produced by
	// Compress.
	Decompress(data []byte) ([]byte, error)
}

// NewCodec returns the Codec for the given configured method.
func NewCodec(m Method) (Codec, error) {
	switch m {
	case "", MethodDeflate:
		return deflateCodec{}, nil
	case MethodLZMA:
		return newLZMACodec(), nil
	case MethodBzip2:
		return newBzip2Codec(), nil
	case MethodSnappy:
		return snappyCodec{}, nil
	default:
		return nil, boilerr.New(boilerr.KindCodecError, "blockio: unknown compress method %q", m)
	}
}

// deflateCodec wraps github.com/klauspost/compress/flate, the drop-in
// accelerated replacement for the standard library's compress/flate that
// encoding/bgzf also builds on (via libdeflate for the cgo build; klauspost
// is its portable, pure-Go counterpart used here since boiler targets
// plain archive files rather than bgzf virtual offsets).
type deflateCodec struct{}

func (deflateCodec) Name() Method { return MethodDeflate }

func (deflateCodec) Compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := kflate.NewWriter(&buf, kflate.DefaultCompression)
	if err != nil {
		return nil, boilerr.E(boilerr.KindCodecError, err, "blockio: deflate writer")
	}
	if _, err := w.Write(data); err != nil {
		return nil, boilerr.E(boilerr.KindCodecError, err, "blockio: deflate write")
	}
	if err := w.Close(); err != nil {
		return nil, boilerr.E(boilerr.KindCodecError, err, "blockio: deflate close")
	}
	return buf.Bytes(), nil
}

func (deflateCodec) Decompress(data []byte) ([]byte, error) {
	r := flate.NewReader(bytes.NewReader(data))
	defer r.Close()
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, boilerr.E(boilerr.KindCodecError, err, "blockio: deflate read")
	}
	return out, nil
}

// snappyCodec wraps github.com/golang/snappy, the same block codec
// encoding/bampair's distant-mate shard files and bio-bam-sort's sort
// shards use for their own on-disk intermediate blocks.
type snappyCodec struct{}

func (snappyCodec) Name() Method { return MethodSnappy }

func (snappyCodec) Compress(data []byte) ([]byte, error) {
	return snappy.Encode(nil, data), nil
}

func (snappyCodec) Decompress(data []byte) ([]byte, error) {
	out, err := snappy.Decode(nil, data)
	if err != nil {
		return nil, boilerr.E(boilerr.KindCodecError, err, "blockio: snappy decode")
	}
	return out, nil
}
