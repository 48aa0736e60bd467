// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package blockio

import (
	"io"

	"v.io/x/lib/vlog"

	"github.com/boilerbio/boiler/boilerr"
	"github.com/boilerbio/boiler/rle"
)

// ChunkWriter compresses successive byte buffers with a single Codec and
// appends each compressed block to an underlying sink, recording the
// compressed length of every block it writes (spec §4.6, step 3: "records
// the compressed length").
type ChunkWriter struct {
	w      io.Writer
	codec  Codec
	Lens   []uint32
}

// NewChunkWriter creates a ChunkWriter that appends compressed blocks to w
// using codec.
func NewChunkWriter(w io.Writer, codec Codec) *ChunkWriter {
	return &ChunkWriter{w: w, codec: codec}
}

// Write compresses data and appends it to the sink, recording and returning
// the compressed length.
func (c *ChunkWriter) Write(data []byte) (uint32, error) {
	compressed, err := c.codec.Compress(data)
	if err != nil {
		return 0, err
	}
	if len(compressed) == 0 {
		return 0, boilerr.New(boilerr.KindCodecError, "blockio: codec %v produced an empty block for %d input bytes", c.codec.Name(), len(data))
	}
	n, err := c.w.Write(compressed)
	if err != nil {
		return 0, boilerr.E(boilerr.KindIOError, err, "blockio: write compressed block")
	}
	if n != len(compressed) {
		return 0, boilerr.New(boilerr.KindIOError, "blockio: short write: %d of %d bytes", n, len(compressed))
	}
	length := uint32(len(compressed))
	c.Lens = append(c.Lens, length)
	vlog.VI(2).Infof("blockio: wrote chunk of %d raw bytes as %d compressed bytes (%v)", len(data), length, c.codec.Name())
	return length, nil
}

// IsZeroSegment reports whether v's only run is (0, length) for some
// length, the breakpoint policy of spec §4.6 encodes such segments as the
// offset-zero sentinel instead of emitting a compressed block.
func IsZeroSegment(v rle.Vector) bool {
	if len(v) != 1 {
		return false
	}
	return v[0].Value == 0
}

// Breakpoints returns the fixed global breakpoint positions 0, sectionLen,
// 2*sectionLen, ... up to (but not including) a final boundary >= total,
// per spec §4.6. The number of segments returned is
// ceil(total / sectionLen), matching the Python reference's
// range(0, total, sectionLen).
func Breakpoints(total, sectionLen uint32) []uint32 {
	if sectionLen == 0 {
		sectionLen = 100000
	}
	var out []uint32
	for p := uint32(0); p < total; p += sectionLen {
		out = append(out, p)
	}
	if len(out) == 0 {
		out = append(out, 0)
	}
	return out
}
