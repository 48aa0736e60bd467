// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package archive

import (
	"io"

	"github.com/boilerbio/boiler/huffman"
	"github.com/boilerbio/boiler/junction"
)

// indexContents is everything the index block needs in order for a reader
// to locate every chunk in the body without re-scanning it (spec §4.6,
// §4.7): chunk sizes, the junction names list (identity, not data), per-chunk
// compressed lengths, per-NH-group breakpoint offsets, and the shared
// Huffman table if one was used.
type indexContents struct {
	exonChunkSize     uint32
	junctionChunkSize uint32
	exonBytes         uint8
	junctions         []*junction.Junction
	junctionChunkLens []uint32

	groups []nhGroupIndex

	huffTable *huffman.Table
}

func writeIndex(w io.Writer, c indexContents) error {
	if err := putUint32(w, c.exonChunkSize); err != nil {
		return err
	}
	if err := putUint32(w, c.junctionChunkSize); err != nil {
		return err
	}

	if err := putUint32(w, uint32(len(c.junctions))); err != nil {
		return err
	}
	for _, j := range c.junctions {
		if err := putUint16(w, uint16(len(j.ExonIDs))); err != nil {
			return err
		}
		for _, id := range j.ExonIDs {
			if err := putUintWidth(w, c.exonBytes, uint64(id)); err != nil {
				return err
			}
		}
		if err := putUint8(w, byte(j.Strand)); err != nil {
			return err
		}
		if err := putUint16(w, j.NH); err != nil {
			return err
		}
	}

	if err := putUint32(w, uint32(len(c.junctionChunkLens))); err != nil {
		return err
	}
	for _, l := range c.junctionChunkLens {
		if err := putUint32(w, l); err != nil {
			return err
		}
	}

	if err := putUint32(w, uint32(len(c.groups))); err != nil {
		return err
	}
	for _, g := range c.groups {
		if err := putUint32(w, g.nh); err != nil {
			return err
		}
		if err := putUint32(w, g.sectionLen); err != nil {
			return err
		}
		if err := putUint32(w, uint32(len(g.breakpointOffsets))); err != nil {
			return err
		}
		for _, off := range g.breakpointOffsets {
			if err := putUint32(w, off); err != nil {
				return err
			}
		}
		if err := putUint32(w, uint32(len(g.exonChunkLens))); err != nil {
			return err
		}
		for _, l := range g.exonChunkLens {
			if err := putUint32(w, l); err != nil {
				return err
			}
		}
	}

	if c.huffTable == nil {
		return putUint8(w, 0)
	}
	if err := putUint8(w, 1); err != nil {
		return err
	}
	return writeHuffmanTable(w, c.huffTable)
}

func writeHuffmanTable(w io.Writer, t *huffman.Table) error {
	symbols := t.Symbols()
	if err := putUint32(w, uint32(len(symbols))); err != nil {
		return err
	}
	for _, s := range symbols {
		code, ok := t.Code(s)
		if !ok {
			continue
		}
		if err := putInt32(w, s); err != nil {
			return err
		}
		if err := putUint8(w, code.Length); err != nil {
			return err
		}
		var bw huffman.BitWriter
		bw.WriteCode(code)
		if _, err := w.Write(bw.Bytes()); err != nil {
			return wrapIOErr(err, "write huffman code bits")
		}
	}
	return nil
}

func readHuffmanTable(r byteReader) (*huffman.Table, error) {
	n, err := getUint32(r)
	if err != nil {
		return nil, err
	}
	codes := make(map[int32]huffman.Code, n)
	symbols := make([]int32, 0, n)
	for i := 0; i < int(n); i++ {
		sym, err := getInt32(r)
		if err != nil {
			return nil, err
		}
		length, err := getUint8(r)
		if err != nil {
			return nil, err
		}
		packedLen := (int(length) + 7) / 8
		packed := make([]byte, packedLen)
		if _, err := io.ReadFull(r, packed); err != nil {
			return nil, wrapIOErr(err, "read huffman code bits")
		}
		bits := unpackMSBFirst(packed, length)
		codes[sym] = huffman.Code{Bits: bits, Length: length}
		symbols = append(symbols, sym)
	}
	return huffman.NewTable(codes, symbols), nil
}

// unpackMSBFirst reads back the length most-significant bits packed by
// huffman.BitWriter.WriteCode, reconstructing the same Code.Bits value
// WriteCode was given (the low length bits, zero-padded above).
func unpackMSBFirst(packed []byte, length uint8) uint32 {
	br := huffman.NewBitReader(packed)
	var bits uint32
	for i := uint8(0); i < length; i++ {
		b, ok := br.Bit()
		if !ok {
			break
		}
		bits = (bits << 1) | uint32(b)
	}
	return bits
}
