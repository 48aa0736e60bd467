// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package archive

import (
	"bytes"
	"io"

	"github.com/boilerbio/boiler/blockio"
	"github.com/boilerbio/boiler/boilerr"
	"github.com/boilerbio/boiler/genome"
	"github.com/boilerbio/boiler/huffman"
	"github.com/boilerbio/boiler/rle"
)

// DecodedJunction is one junction record as read back from a binary
// archive: the same shape as junction.Junction minus the builder's private
// insertion-order bookkeeping, which is not serialized (spec §6: junctions
// are already stored in their final sorted order).
type DecodedJunction struct {
	ExonIDs      []int32
	Strand       genome.Strand
	NH           uint16
	Coverage     rle.Vector
	UnpairedLens map[uint32]uint32
	PairedLens   map[uint32]uint32
	LensLeft     map[uint32]uint32
	LensRight    map[uint32]uint32
}

// ExonHistograms is the four length histograms recorded for one exon within
// one unspliced NH group (spec §4.4/§4.6).
type ExonHistograms struct {
	Unpaired map[uint32]uint32
	Paired   map[uint32]uint32
	Left     map[uint32]uint32
	Right    map[uint32]uint32
}

// DecodedGroup is one unspliced NH group as read back from a binary
// archive: the genome-wide coverage vector reassembled from its breakpoint
// segments, plus one ExonHistograms per exon.
type DecodedGroup struct {
	NH             uint16
	Coverage       rle.Vector
	ExonHistograms []ExonHistograms
}

// Archive is the fully decoded contents of a binary archive, sufficient to
// verify round-trip fidelity against the builders that produced an Input.
type Archive struct {
	Chromosomes *genome.Chromosomes
	Exons       genome.Exons
	Junctions   []DecodedJunction
	Groups      []DecodedGroup
}

// Read parses a binary archive produced by Write. It is a full decoder in
// the sense of being able to reconstruct every value Write serialized, but
// it is not the query/dump tool a consumer-facing CLI would offer (spec
// Non-goals: a query interface is out of scope for this module).
func Read(r io.Reader) (*Archive, error) {
	br, ok := r.(byteReader)
	if !ok {
		br = &byteReaderAdapter{r: r}
	}

	chroms, exons, exonBytes, compressMethod, err := readHeader(br)
	if err != nil {
		return nil, err
	}
	codec, err := blockio.NewCodec(compressMethod)
	if err != nil {
		return nil, err
	}

	indexLen, err := getUint32(br)
	if err != nil {
		return nil, err
	}
	compressedIndex := make([]byte, indexLen)
	if _, err := io.ReadFull(br, compressedIndex); err != nil {
		return nil, wrapIOErr(err, "read index block")
	}
	rawIndex, err := codec.Decompress(compressedIndex)
	if err != nil {
		return nil, err
	}
	idx, err := readIndex(bytes.NewReader(rawIndex), exonBytes)
	if err != nil {
		return nil, err
	}

	junctions, err := readJunctions(br, codec, idx)
	if err != nil {
		return nil, err
	}
	groups, err := readGroups(br, codec, idx, exons)
	if err != nil {
		return nil, err
	}

	return &Archive{
		Chromosomes: chroms,
		Exons:       exons,
		Junctions:   junctions,
		Groups:      groups,
	}, nil
}

func readHeader(br byteReader) (*genome.Chromosomes, genome.Exons, uint8, blockio.Method, error) {
	var gotMagic [4]byte
	if _, err := io.ReadFull(br, gotMagic[:]); err != nil {
		return nil, nil, 0, "", wrapIOErr(err, "read magic")
	}
	if gotMagic != magic {
		return nil, nil, 0, "", boilerr.New(boilerr.KindMalformedInput, "archive: bad magic %q", gotMagic[:])
	}
	if _, err := getUint8(br); err != nil { // version, unchecked: only one version exists
		return nil, nil, 0, "", err
	}
	if _, err := getUint8(br); err != nil { // flags, redundant with the index block's own huffman flag
		return nil, nil, 0, "", err
	}
	methodLen, err := getUint8(br)
	if err != nil {
		return nil, nil, 0, "", err
	}
	methodBytes := make([]byte, methodLen)
	if _, err := io.ReadFull(br, methodBytes); err != nil {
		return nil, nil, 0, "", wrapIOErr(err, "read compress method")
	}

	numChroms, err := getUint32(br)
	if err != nil {
		return nil, nil, 0, "", err
	}
	names := make([]string, 0, numChroms)
	lengths := make(map[string]uint32, numChroms)
	for i := 0; i < int(numChroms); i++ {
		nameLen, err := getUint8(br)
		if err != nil {
			return nil, nil, 0, "", err
		}
		nameBytes := make([]byte, nameLen)
		if _, err := io.ReadFull(br, nameBytes); err != nil {
			return nil, nil, 0, "", wrapIOErr(err, "read chromosome name")
		}
		length, err := getUint32(br)
		if err != nil {
			return nil, nil, 0, "", err
		}
		name := string(nameBytes)
		names = append(names, name)
		lengths[name] = length
	}
	chroms, err := genome.NewChromosomes(names, lengths)
	if err != nil {
		return nil, nil, 0, "", boilerr.E(boilerr.KindMalformedInput, err, "archive: chromosome table")
	}

	exonBytes, err := getUint8(br)
	if err != nil {
		return nil, nil, 0, "", err
	}
	numBoundaries, err := getUint32(br)
	if err != nil {
		return nil, nil, 0, "", err
	}
	exons := make(genome.Exons, numBoundaries)
	for i := range exons {
		v, err := getUint32(br)
		if err != nil {
			return nil, nil, 0, "", err
		}
		exons[i] = genome.Pos(v)
	}
	if err := exons.Validate(); err != nil {
		return nil, nil, 0, "", boilerr.E(boilerr.KindMalformedInput, err, "archive: exon table")
	}

	return chroms, exons, exonBytes, blockio.Method(methodBytes), nil
}

// junctionIdentity is one junction's identity as stored in the index
// block's junction names list (spec §6 index item 2): exon ids, strand, and
// NH, kept separate from the body record's histograms and coverage.
type junctionIdentity struct {
	ExonIDs []int32
	Strand  genome.Strand
	NH      uint16
}

// decodedIndex is the in-memory parse of the index block.
type decodedIndex struct {
	exonChunkSize     uint32
	junctionChunkSize uint32
	junctionNames     []junctionIdentity
	junctionChunkLens []uint32
	groups            []nhGroupIndex
	huffTable         *huffman.Table
}

func readIndex(r byteReader, exonBytes uint8) (*decodedIndex, error) {
	idx := &decodedIndex{}
	var err error
	if idx.exonChunkSize, err = getUint32(r); err != nil {
		return nil, err
	}
	if idx.junctionChunkSize, err = getUint32(r); err != nil {
		return nil, err
	}

	numJunctions, err := getUint32(r)
	if err != nil {
		return nil, err
	}
	idx.junctionNames = make([]junctionIdentity, numJunctions)
	for i := range idx.junctionNames {
		numExonIDs, err := getUint16(r)
		if err != nil {
			return nil, err
		}
		exonIDs := make([]int32, numExonIDs)
		for j := range exonIDs {
			v, err := getUintWidth(r, exonBytes)
			if err != nil {
				return nil, err
			}
			exonIDs[j] = int32(v)
		}
		strandByte, err := getUint8(r)
		if err != nil {
			return nil, err
		}
		nh, err := getUint16(r)
		if err != nil {
			return nil, err
		}
		idx.junctionNames[i] = junctionIdentity{ExonIDs: exonIDs, Strand: genome.Strand(strandByte), NH: nh}
	}

	numJunctionChunks, err := getUint32(r)
	if err != nil {
		return nil, err
	}
	idx.junctionChunkLens = make([]uint32, numJunctionChunks)
	for i := range idx.junctionChunkLens {
		if idx.junctionChunkLens[i], err = getUint32(r); err != nil {
			return nil, err
		}
	}

	numGroups, err := getUint32(r)
	if err != nil {
		return nil, err
	}
	idx.groups = make([]nhGroupIndex, numGroups)
	for i := range idx.groups {
		g := &idx.groups[i]
		if g.nh, err = getUint32(r); err != nil {
			return nil, err
		}
		if g.sectionLen, err = getUint32(r); err != nil {
			return nil, err
		}
		numBreakpoints, err := getUint32(r)
		if err != nil {
			return nil, err
		}
		g.breakpointOffsets = make([]uint32, numBreakpoints)
		for j := range g.breakpointOffsets {
			if g.breakpointOffsets[j], err = getUint32(r); err != nil {
				return nil, err
			}
		}
		numExonChunks, err := getUint32(r)
		if err != nil {
			return nil, err
		}
		g.exonChunkLens = make([]uint32, numExonChunks)
		for j := range g.exonChunkLens {
			if g.exonChunkLens[j], err = getUint32(r); err != nil {
				return nil, err
			}
		}
	}

	hasHuff, err := getUint8(r)
	if err != nil {
		return nil, err
	}
	if hasHuff != 0 {
		idx.huffTable, err = readHuffmanTable(r)
		if err != nil {
			return nil, err
		}
	}
	return idx, nil
}

func readJunctions(br byteReader, codec blockio.Codec, idx *decodedIndex) ([]DecodedJunction, error) {
	numJunctions := len(idx.junctionNames)
	out := make([]DecodedJunction, 0, numJunctions)
	remaining := numJunctions
	pos := 0
	for _, chunkLen := range idx.junctionChunkLens {
		compressed := make([]byte, chunkLen)
		if _, err := io.ReadFull(br, compressed); err != nil {
			return nil, wrapIOErr(err, "read junction chunk")
		}
		raw, err := codec.Decompress(compressed)
		if err != nil {
			return nil, err
		}
		rr := bytes.NewReader(raw)
		count := int(idx.junctionChunkSize)
		if remaining < count {
			count = remaining
		}
		for i := 0; i < count; i++ {
			j, err := readJunctionRecord(rr, idx.huffTable, idx.junctionNames[pos])
			if err != nil {
				return nil, err
			}
			out = append(out, *j)
			pos++
		}
		remaining -= count
	}
	return out, nil
}

// readJunctionRecord reads one junction's body record (length histograms
// plus RLE coverage) and combines it with name, the junction's identity
// already parsed from the index block's junction names list, to produce the
// full decoded view.
func readJunctionRecord(r byteReader, huffTable *huffman.Table, name junctionIdentity) (*DecodedJunction, error) {
	unpaired, err := readLenHist(r)
	if err != nil {
		return nil, err
	}
	paired, err := readLenHist(r)
	if err != nil {
		return nil, err
	}
	left, err := readLenHist(r)
	if err != nil {
		return nil, err
	}
	right, err := readLenHist(r)
	if err != nil {
		return nil, err
	}
	coverage, err := readCoverageRuns(r, huffTable)
	if err != nil {
		return nil, err
	}
	return &DecodedJunction{
		ExonIDs:      name.ExonIDs,
		Strand:       name.Strand,
		NH:           name.NH,
		Coverage:     coverage,
		UnpairedLens: unpaired,
		PairedLens:   paired,
		LensLeft:     left,
		LensRight:    right,
	}, nil
}

func readGroups(br byteReader, codec blockio.Codec, idx *decodedIndex, exons genome.Exons) ([]DecodedGroup, error) {
	total := exons.Total()
	out := make([]DecodedGroup, 0, len(idx.groups))
	for _, gi := range idx.groups {
		breakpoints := blockio.Breakpoints(total, gi.sectionLen)
		var coverage rle.Vector
		for i, start := range breakpoints {
			segLen := gi.sectionLen
			if i == len(breakpoints)-1 {
				segLen = total - start
			}
			off := gi.breakpointOffsets[i]
			if off == 0 {
				coverage = append(coverage, rle.Run{Value: 0, Length: segLen})
				continue
			}
			compressed := make([]byte, off)
			if _, err := io.ReadFull(br, compressed); err != nil {
				return nil, wrapIOErr(err, "read breakpoint segment")
			}
			raw, err := codec.Decompress(compressed)
			if err != nil {
				return nil, err
			}
			seg, err := readCoverageRuns(bytes.NewReader(raw), idx.huffTable)
			if err != nil {
				return nil, err
			}
			coverage = append(coverage, seg...)
		}

		hists := make([]ExonHistograms, 0, exons.NumExons())
		exonIdx := 0
		for _, chunkLen := range gi.exonChunkLens {
			compressed := make([]byte, chunkLen)
			if _, err := io.ReadFull(br, compressed); err != nil {
				return nil, wrapIOErr(err, "read exon histogram chunk")
			}
			raw, err := codec.Decompress(compressed)
			if err != nil {
				return nil, err
			}
			rr := bytes.NewReader(raw)
			count := int(idx.exonChunkSize)
			if exons.NumExons()-exonIdx < count {
				count = exons.NumExons() - exonIdx
			}
			for i := 0; i < count; i++ {
				var h ExonHistograms
				var err error
				if h.Unpaired, err = readLenHist(rr); err != nil {
					return nil, err
				}
				if h.Paired, err = readLenHist(rr); err != nil {
					return nil, err
				}
				if h.Left, err = readLenHist(rr); err != nil {
					return nil, err
				}
				if h.Right, err = readLenHist(rr); err != nil {
					return nil, err
				}
				hists = append(hists, h)
				exonIdx++
			}
		}

		out = append(out, DecodedGroup{NH: uint16(gi.nh), Coverage: coverage, ExonHistograms: hists})
	}
	return out, nil
}

func readCoverageRuns(r byteReader, huffTable *huffman.Table) (rle.Vector, error) {
	numRuns, err := getUint32(r)
	if err != nil {
		return nil, err
	}
	if huffTable == nil {
		out := make(rle.Vector, numRuns)
		for i := range out {
			v, err := getInt32(r)
			if err != nil {
				return nil, err
			}
			l, err := getUint32(r)
			if err != nil {
				return nil, err
			}
			out[i] = rle.Run{Value: v, Length: l}
		}
		return out, nil
	}

	packedLen, err := getUint32(r)
	if err != nil {
		return nil, err
	}
	packed := make([]byte, packedLen)
	if _, err := io.ReadFull(r, packed); err != nil {
		return nil, wrapIOErr(err, "read huffman payload")
	}
	bitReader := huffman.NewBitReader(packed)
	diffs := make([]int32, numRuns)
	for i := range diffs {
		sym, ok := bitReader.ReadSymbol(huffTable)
		if !ok {
			return nil, boilerr.New(boilerr.KindMalformedInput, "archive: truncated huffman stream")
		}
		diffs[i] = sym
	}
	values := undiffEncode(diffs)

	out := make(rle.Vector, numRuns)
	for i := range out {
		l, err := getUint32(r)
		if err != nil {
			return nil, err
		}
		out[i] = rle.Run{Value: values[i], Length: l}
	}
	return out, nil
}

// undiffEncode inverts huffman.DiffEncode: values[0] = diffs[0], then
// values[i] = values[i-1] + diffs[i].
func undiffEncode(diffs []int32) []int32 {
	out := make([]int32, len(diffs))
	if len(diffs) == 0 {
		return out
	}
	out[0] = diffs[0]
	for i := 1; i < len(diffs); i++ {
		out[i] = out[i-1] + diffs[i]
	}
	return out
}

func readLenHist(r byteReader) (map[uint32]uint32, error) {
	n, err := getUint32(r)
	if err != nil {
		return nil, err
	}
	out := make(map[uint32]uint32, n)
	for i := uint32(0); i < n; i++ {
		k, err := getUint32(r)
		if err != nil {
			return nil, err
		}
		v, err := getUint32(r)
		if err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, nil
}

// byteReaderAdapter upgrades a plain io.Reader to byteReader for the rare
// case Read is called with something other than *bytes.Reader/*bufio.Reader.
type byteReaderAdapter struct {
	r   io.Reader
	buf [1]byte
}

func (a *byteReaderAdapter) Read(p []byte) (int, error) { return a.r.Read(p) }

func (a *byteReaderAdapter) ReadByte() (byte, error) {
	if _, err := io.ReadFull(a.r, a.buf[:]); err != nil {
		return 0, err
	}
	return a.buf[0], nil
}
