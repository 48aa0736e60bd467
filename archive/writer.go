// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package archive

import (
	"bytes"
	"io"
	"sort"

	"v.io/x/lib/vlog"

	"github.com/boilerbio/boiler/blockio"
	"github.com/boilerbio/boiler/boilerr"
	"github.com/boilerbio/boiler/genome"
	"github.com/boilerbio/boiler/huffman"
	"github.com/boilerbio/boiler/junction"
	"github.com/boilerbio/boiler/rle"
	"github.com/boilerbio/boiler/unspliced"
)

// magic identifies a boiler binary archive.
var magic = [4]byte{'B', 'O', 'I', 'L'}

const formatVersion uint8 = 1

const flagHuffman = 1 << 0

// Input bundles the fully built, finalized state the archive writer needs.
// Junctions must already be produced by (*junction.Builder).Sorted, and
// Groups by (*unspliced.Builder).Finalize: Write does no further sorting or
// aggregation of its own.
type Input struct {
	Chromosomes *genome.Chromosomes
	Exons       genome.Exons
	Junctions   []*junction.Junction
	Groups      []*unspliced.Group
}

// Write serializes in as a binary archive to w, per spec §4.7's two-pass
// discipline: the compressed body is assembled first into an in-memory
// scratch buffer (so every chunk length and breakpoint offset is known), and
// only then is the plaintext header and compressed index block written,
// followed by the already-assembled body. Either an in-memory buffer or a
// temporary file satisfies this contract (spec §9); an in-memory buffer is
// used here since archives are bounded by available junction/exon data, not
// by raw read volume.
func Write(w io.Writer, in Input, opts Options) error {
	opts = opts.withDefaults()
	codec, err := blockio.NewCodec(opts.CompressMethod)
	if err != nil {
		return err
	}

	var huffTable *huffman.Table
	if opts.Huffman {
		var err error
		huffTable, err = buildHuffmanTable(in, opts)
		if err != nil {
			return err
		}
	}

	var body bytes.Buffer
	bodyWriter := blockio.NewChunkWriter(&body, codec)

	junctionChunks := junction.Chunk(in.Junctions, int(opts.JunctionChunkSize))
	junctionChunkLens := make([]uint32, 0, len(junctionChunks))
	for _, chunk := range junctionChunks {
		var raw bytes.Buffer
		for _, j := range chunk {
			if err := writeJunctionRecord(&raw, j, huffTable); err != nil {
				return err
			}
		}
		n, err := bodyWriter.Write(raw.Bytes())
		if err != nil {
			return err
		}
		junctionChunkLens = append(junctionChunkLens, n)
	}

	groupIndexes := make([]nhGroupIndex, 0, len(in.Groups))
	for _, g := range in.Groups {
		gi, err := writeUnsplicedGroup(bodyWriter, g, in.Exons, opts, huffTable)
		if err != nil {
			return err
		}
		groupIndexes = append(groupIndexes, gi)
	}

	exonBytes := findNumBytes(uint64(in.Exons.NumExons()))
	var indexRaw bytes.Buffer
	if err := writeIndex(&indexRaw, indexContents{
		exonChunkSize:     opts.ExonChunkSize,
		junctionChunkSize: opts.JunctionChunkSize,
		exonBytes:         exonBytes,
		junctions:         in.Junctions,
		junctionChunkLens: junctionChunkLens,
		groups:            groupIndexes,
		huffTable:         huffTable,
	}); err != nil {
		return err
	}
	compressedIndex, err := codec.Compress(indexRaw.Bytes())
	if err != nil {
		return err
	}

	if err := writeHeader(w, in.Chromosomes, in.Exons, opts); err != nil {
		return err
	}
	if err := putUint32(w, uint32(len(compressedIndex))); err != nil {
		return err
	}
	if _, err := w.Write(compressedIndex); err != nil {
		return wrapIOErr(err, "write index block")
	}
	if _, err := w.Write(body.Bytes()); err != nil {
		return wrapIOErr(err, "write body")
	}
	vlog.VI(1).Infof("archive: wrote %d junctions, %d NH groups, index %d bytes, body %d bytes",
		len(in.Junctions), len(in.Groups), len(compressedIndex), body.Len())
	return nil
}

func writeHeader(w io.Writer, chroms *genome.Chromosomes, exons genome.Exons, opts Options) error {
	if _, err := w.Write(magic[:]); err != nil {
		return wrapIOErr(err, "write magic")
	}
	if err := putUint8(w, formatVersion); err != nil {
		return err
	}
	var flags uint8
	if opts.Huffman {
		flags |= flagHuffman
	}
	if err := putUint8(w, flags); err != nil {
		return err
	}
	if err := putUint8(w, uint8(len(opts.CompressMethod))); err != nil {
		return err
	}
	if _, err := io.WriteString(w, string(opts.CompressMethod)); err != nil {
		return wrapIOErr(err, "write compress method")
	}

	names := chroms.Names()
	if err := putUint32(w, uint32(len(names))); err != nil {
		return err
	}
	for _, name := range names {
		if err := putUint8(w, uint8(len(name))); err != nil {
			return err
		}
		if _, err := io.WriteString(w, name); err != nil {
			return wrapIOErr(err, "write chromosome name")
		}
		length, _ := chroms.Length(name)
		if err := putUint32(w, length); err != nil {
			return err
		}
	}

	// exonBytes sizes the exon ids in the index block's junction names list;
	// the boundaries themselves are genome positions and are written as u32.
	exonBytes := findNumBytes(uint64(exons.NumExons()))
	if err := putUint8(w, exonBytes); err != nil {
		return err
	}
	if err := putUint32(w, uint32(len(exons))); err != nil {
		return err
	}
	for _, e := range exons {
		if err := putUint32(w, e); err != nil {
			return err
		}
	}
	return nil
}

// nhGroupIndex records everything the index block needs to know about one
// unspliced NH group's placement in the body.
type nhGroupIndex struct {
	nh                uint32
	sectionLen        uint32
	breakpointOffsets []uint32 // 0 means "all-zero segment, no block written" (spec §4.6)
	exonChunkLens     []uint32
}

// writeUnsplicedGroup writes g's coverage breakpoint segments and per-exon
// histogram chunks to bodyWriter, returning the offsets and lengths the
// index block records (spec §4.6).
func writeUnsplicedGroup(bodyWriter *blockio.ChunkWriter, g *unspliced.Group, exons genome.Exons, opts Options, huffTable *huffman.Table) (nhGroupIndex, error) {
	total := exons.Total()
	breakpoints := blockio.Breakpoints(total, opts.SectionLen)

	gi := nhGroupIndex{nh: uint32(g.NH), sectionLen: opts.SectionLen}
	for i, start := range breakpoints {
		segLen := opts.SectionLen
		if i == len(breakpoints)-1 {
			segLen = total - start
		}
		seg, err := rle.Slice(g.Coverage, start, segLen)
		if err != nil {
			return nhGroupIndex{}, err
		}
		if blockio.IsZeroSegment(seg) {
			gi.breakpointOffsets = append(gi.breakpointOffsets, 0)
			continue
		}
		var raw bytes.Buffer
		if err := writeCoverageRuns(&raw, seg, huffTable); err != nil {
			return nhGroupIndex{}, err
		}
		n, err := bodyWriter.Write(raw.Bytes())
		if err != nil {
			return nhGroupIndex{}, err
		}
		// The entry recorded for a non-zero segment is this block's
		// compressed length; the reader consumes the blocks in order and
		// reads exactly that many bytes for each (spec §9: no absolute file
		// offsets are embedded in the index, only lengths, so that the index
		// block can be built independently of the final header size).
		gi.breakpointOffsets = append(gi.breakpointOffsets, n)
	}

	for start := 0; start < exons.NumExons(); start += int(opts.ExonChunkSize) {
		end := start + int(opts.ExonChunkSize)
		if end > exons.NumExons() {
			end = exons.NumExons()
		}
		var raw bytes.Buffer
		for i := start; i < end; i++ {
			writeLenHist(&raw, g.UnpairedLens[i])
			writeLenHist(&raw, g.PairedLens[i])
			writeLenHist(&raw, g.LensLeft[i])
			writeLenHist(&raw, g.LensRight[i])
		}
		n, err := bodyWriter.Write(raw.Bytes())
		if err != nil {
			return nhGroupIndex{}, err
		}
		gi.exonChunkLens = append(gi.exonChunkLens, n)
	}
	return gi, nil
}

// writeJunctionRecord writes one junction's body record: the four length
// histograms, then its RLE coverage. The junction's identity (exon ids,
// strand, NH) is not repeated here; it lives once in the index block's
// junction names list (spec §6 index item 2), keyed by the junction's
// position in chunk order.
func writeJunctionRecord(buf *bytes.Buffer, j *junction.Junction, huffTable *huffman.Table) error {
	writeLenHist(buf, j.UnpairedLens)
	writeLenHist(buf, j.PairedLens)
	writeLenHist(buf, j.LensLeft)
	writeLenHist(buf, j.LensRight)
	return writeCoverageRuns(buf, j.Coverage, huffTable)
}

// writeCoverageRuns serializes an RLE coverage vector as spec §4.6/§6
// describe: run lengths are always written raw (they are never
// difference-encoded or Huffman-coded), and run values are written raw
// unless huffTable is non-nil, in which case values are difference-encoded
// and packed as a canonical Huffman bitstream (spec §4.5).
func writeCoverageRuns(buf *bytes.Buffer, v rle.Vector, huffTable *huffman.Table) error {
	if err := putUint32(buf, uint32(len(v))); err != nil {
		return err
	}
	if huffTable == nil {
		for _, r := range v {
			if err := putInt32(buf, r.Value); err != nil {
				return err
			}
			if err := putUint32(buf, r.Length); err != nil {
				return err
			}
		}
		return nil
	}

	diffs := huffman.DiffEncodeVector(v)
	var bw huffman.BitWriter
	for _, d := range diffs {
		code, ok := huffTable.Code(d)
		if !ok {
			return boilerr.New(boilerr.KindCodecError, "archive: huffman table missing code for symbol %d", d)
		}
		bw.WriteCode(code)
	}
	packed := bw.Bytes()
	if err := putUint32(buf, uint32(len(packed))); err != nil {
		return err
	}
	if _, err := buf.Write(packed); err != nil {
		return wrapIOErr(err, "write huffman payload")
	}
	for _, r := range v {
		if err := putUint32(buf, r.Length); err != nil {
			return err
		}
	}
	return nil
}

func writeLenHist(buf *bytes.Buffer, h map[uint32]uint32) {
	keys := make([]uint32, 0, len(h))
	for k := range h {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	putUint32(buf, uint32(len(keys)))
	for _, k := range keys {
		putUint32(buf, k)
		putUint32(buf, h[k])
	}
}

// buildHuffmanTable runs the first pass of spec §4.5's two-phase pipeline:
// collect difference-encoded run values across every coverage vector that
// will actually be written (junctions, plus the exact non-zero breakpoint
// segments writeUnsplicedGroup will later slice, an all-zero segment
// contributes no bytes, so it must not contribute symbols either), then
// build one canonical code shared by the whole archive.
func buildHuffmanTable(in Input, opts Options) (*huffman.Table, error) {
	freq := huffman.FreqTable{}
	for _, j := range in.Junctions {
		freq.Add(huffman.DiffEncodeVector(j.Coverage))
	}
	total := in.Exons.Total()
	breakpoints := blockio.Breakpoints(total, opts.SectionLen)
	for _, g := range in.Groups {
		for i, start := range breakpoints {
			segLen := opts.SectionLen
			if i == len(breakpoints)-1 {
				segLen = total - start
			}
			seg, err := rle.Slice(g.Coverage, start, segLen)
			if err != nil {
				return nil, err
			}
			if blockio.IsZeroSegment(seg) {
				continue
			}
			freq.Add(huffman.DiffEncodeVector(seg))
		}
	}
	return huffman.Build(freq), nil
}
