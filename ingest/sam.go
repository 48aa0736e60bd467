// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package ingest turns a SAM stream into a genome.Aggregator: it builds the
// chromosome table from the SAM header and an exon boundary vector whose
// boundaries are every chromosome start, the genome end, and the start and
// end of every aligned block, then resolves every primary alignment against
// that exon axis. Exons are not merged across overlapping blocks: two
// blocks that overlap but start or end at different positions split their
// covered interval into several exons.
//
// This is the "external collaborator" spec §1 names and explicitly scopes
// out of the core's correctness requirements: the CIGAR walk and
// mate-pairing logic here are a reasonable, workable rendition, not a
// byte-exact port of any reference aligner. It exists only so the core
// packages (rle/junction/unspliced/huffman/blockio/archive) have a real
// producer to exercise against, without ever importing SAM details
// themselves, they only see genome.Aggregator.
package ingest

import (
	"io"
	"sort"

	"github.com/grailbio/hts/sam"
	"v.io/x/lib/vlog"

	"github.com/boilerbio/boiler/boilerr"
	"github.com/boilerbio/boiler/genome"
)

var (
	xsTag = sam.Tag{'X', 'S'}
	nhTag = sam.Tag{'N', 'H'}
)

// block is one contiguous reference span an alignment covers between splice
// junctions (CIGAR N operators); D operators extend a block without
// splitting it, matching how RNA-seq aligners represent small indels versus
// introns.
type block struct {
	start, end genome.Pos // global, concatenated-genome coordinates
}

type alignedRecord struct {
	name      string
	blocks    []block
	xs        genome.Strand
	nh        uint16
	read1     bool
	paired    bool
	mateOK    bool // mate is mapped and on the same chromosome
}

// aggregator is the genome.Aggregator this package produces.
type aggregator struct {
	chroms    *genome.Chromosomes
	exons     genome.Exons
	spliced   []genome.Read
	unspliced []genome.Read
}

func (a *aggregator) Chromosomes() *genome.Chromosomes { return a.chroms }
func (a *aggregator) Exons() genome.Exons              { return a.exons }
func (a *aggregator) Spliced() []genome.Read           { return a.spliced }
func (a *aggregator) Unspliced() []genome.Read         { return a.unspliced }

// Parse reads a SAM stream and returns a genome.Aggregator built from its
// primary, mapped alignments. Secondary and supplementary alignments, and
// unmapped reads, are skipped (they carry no exonic span to aggregate).
func Parse(r io.Reader) (genome.Aggregator, error) {
	sr, err := sam.NewReader(r)
	if err != nil {
		return nil, boilerr.E(boilerr.KindMalformedInput, err, "ingest: open SAM stream")
	}

	chroms, offsets, err := buildChromosomeTable(sr.Header())
	if err != nil {
		return nil, err
	}

	var records []alignedRecord
	boundarySet := map[genome.Pos]bool{0: true, chroms.TotalLength(): true}
	for _, name := range chroms.Names() {
		boundarySet[offsets[name]] = true
	}

	skipped := 0
	for {
		rec, err := sr.Read()
		if rec == nil {
			if err == io.EOF {
				break
			}
			return nil, boilerr.E(boilerr.KindMalformedInput, err, "ingest: read SAM record")
		}
		if rec.Flags&sam.Unmapped != 0 || rec.Flags&sam.Secondary != 0 || rec.Flags&sam.Supplementary != 0 {
			skipped++
			continue
		}
		if rec.Ref == nil {
			skipped++
			continue
		}
		off, ok := offsets[rec.Ref.Name()]
		if !ok {
			vlog.Errorf("ingest: skipping record %q: unknown chromosome %q", rec.Name, rec.Ref.Name())
			skipped++
			continue
		}

		blocks := cigarBlocks(off, genome.Pos(rec.Pos), rec.Cigar)
		if len(blocks) == 0 {
			skipped++
			continue
		}
		for _, b := range blocks {
			boundarySet[b.start] = true
			boundarySet[b.end] = true
		}

		mateOK := rec.Flags&sam.Paired != 0 && rec.Flags&sam.MateUnmapped == 0 && rec.MateRef != nil && rec.MateRef.Name() == rec.Ref.Name()
		records = append(records, alignedRecord{
			name:   rec.Name,
			blocks: blocks,
			xs:     parseStrand(rec),
			nh:     parseNH(rec),
			read1:  rec.Flags&sam.Read1 != 0,
			paired: rec.Flags&sam.Paired != 0,
			mateOK: mateOK,
		})
	}
	vlog.VI(1).Infof("ingest: kept %d alignments, skipped %d (unmapped/secondary/supplementary/unknown chromosome)", len(records), skipped)

	exons := buildExonAxis(boundarySet)

	spliced, unspliced := resolveReads(records, exons)
	return &aggregator{chroms: chroms, exons: exons, spliced: spliced, unspliced: unspliced}, nil
}

func buildChromosomeTable(h *sam.Header) (*genome.Chromosomes, map[string]genome.Pos, error) {
	refs := h.Refs()
	names := make([]string, len(refs))
	lengths := make(map[string]uint32, len(refs))
	for i, ref := range refs {
		names[i] = ref.Name()
		lengths[ref.Name()] = uint32(ref.Len())
	}
	chroms, err := genome.NewChromosomes(names, lengths)
	if err != nil {
		return nil, nil, boilerr.E(boilerr.KindMalformedInput, err, "ingest: chromosome table")
	}
	offsets := make(map[string]genome.Pos, len(names))
	for _, name := range names {
		off, _ := chroms.Offset(name)
		offsets[name] = off
	}
	return chroms, offsets, nil
}

// cigarBlocks walks co and returns the read's contiguous M/D-spans in
// global coordinates, split at every N (skipped/intron) operator.
func cigarBlocks(chromOffset, pos genome.Pos, co sam.Cigar) []block {
	var blocks []block
	ref := pos
	blockStart := pos
	open := false
	for _, op := range co {
		n := genome.Pos(op.Len())
		switch op.Type() {
		case sam.CigarMatch, sam.CigarEqual, sam.CigarMismatch:
			if !open {
				blockStart = ref
				open = true
			}
			ref += n
		case sam.CigarDeletion:
			if open {
				ref += n
			}
		case sam.CigarSkipped:
			if open {
				blocks = append(blocks, block{chromOffset + blockStart, chromOffset + ref})
				open = false
			}
			ref += n
		case sam.CigarInsertion, sam.CigarSoftClipped, sam.CigarHardClipped, sam.CigarPadded:
			// Consume no reference bases.
		}
	}
	if open {
		blocks = append(blocks, block{chromOffset + blockStart, chromOffset + ref})
	}
	return blocks
}

func parseStrand(rec *sam.Record) genome.Strand {
	aux := rec.AuxFields.Get(xsTag)
	if aux == nil {
		return genome.StrandNone
	}
	switch v := aux.Value().(type) {
	case string:
		if len(v) == 1 {
			return genome.Strand(v[0])
		}
	case []byte:
		if len(v) == 1 {
			return genome.Strand(v[0])
		}
	}
	return genome.StrandNone
}

func parseNH(rec *sam.Record) uint16 {
	aux := rec.AuxFields.Get(nhTag)
	if aux == nil {
		return 1
	}
	switch v := aux.Value().(type) {
	case int:
		return uint16(v)
	case int8:
		return uint16(v)
	case int16:
		return uint16(v)
	case int32:
		return uint16(v)
	case int64:
		return uint16(v)
	case uint8:
		return uint16(v)
	case uint16:
		return v
	case uint32:
		return uint16(v)
	default:
		return 1
	}
}

// buildExonAxis returns the sorted, deduplicated boundary set as an exon
// boundary vector.
func buildExonAxis(boundarySet map[genome.Pos]bool) genome.Exons {
	exons := make(genome.Exons, 0, len(boundarySet))
	for b := range boundarySet {
		exons = append(exons, b)
	}
	sort.Slice(exons, func(i, j int) bool { return exons[i] < exons[j] })
	return exons
}

// resolveReads converts every aligned record into a genome.Read against the
// finalized exon axis, pairing mates whose blocks form a single exonic span
// (the common case) and otherwise treating each mate independently. It
// returns reads partitioned into spliced (exon_ids length > 1) and
// unspliced.
func resolveReads(records []alignedRecord, exons genome.Exons) (spliced, unspliced []genome.Read) {
	byName := make(map[string][2]*alignedRecord)
	var order []string
	for i := range records {
		r := &records[i]
		if !r.paired || !r.mateOK {
			appendResolved(&spliced, &unspliced, resolveSingle(r, exons))
			continue
		}
		slot := 1
		if r.read1 {
			slot = 0
		}
		pair, ok := byName[r.name]
		if !ok {
			order = append(order, r.name)
		}
		pair[slot] = r
		byName[r.name] = pair
	}

	for _, name := range order {
		pair := byName[name]
		a, b := pair[0], pair[1]
		switch {
		case a != nil && b != nil:
			if read, ok := resolvePair(a, b, exons); ok {
				appendResolved(&spliced, &unspliced, read)
			} else {
				appendResolved(&spliced, &unspliced, resolveSingle(a, exons))
				appendResolved(&spliced, &unspliced, resolveSingle(b, exons))
			}
		case a != nil:
			appendResolved(&spliced, &unspliced, resolveSingle(a, exons))
		case b != nil:
			appendResolved(&spliced, &unspliced, resolveSingle(b, exons))
		}
	}
	return spliced, unspliced
}

func appendResolved(spliced, unspliced *[]genome.Read, r genome.Read) {
	if r.Spliced() {
		*spliced = append(*spliced, r)
	} else {
		*unspliced = append(*unspliced, r)
	}
}

func resolveSingle(r *alignedRecord, exons genome.Exons) genome.Read {
	exonIDs, startOffset, endOffset, span := resolveBlocks(r.blocks, exons)
	return genome.Read{
		ExonIDs:     exonIDs,
		XS:          r.xs,
		NH:          r.nh,
		ReadLen:     span,
		StartOffset: startOffset,
		EndOffset:   endOffset,
	}
}

// resolvePair merges two mates into one genome.Read when they share exactly
// the same exon span (spec's S2 shape: a single exonic interval split by a
// fragment gap); mates whose blocks land in different exon tuples are
// reported back to the caller as unmergeable.
func resolvePair(a, b *alignedRecord, exons genome.Exons) (genome.Read, bool) {
	aIDs, aStart, aEnd, aSpan := resolveBlocks(a.blocks, exons)
	bIDs, bStart, bEnd, bSpan := resolveBlocks(b.blocks, exons)
	if !equalInt32s(aIDs, bIDs) {
		return genome.Read{}, false
	}
	left, right := a, b
	leftStart, leftSpan := aStart, aSpan
	rightEnd, rightSpan := bEnd, bSpan
	if a.blocks[0].start > b.blocks[0].start {
		left, right = b, a
		leftStart, leftSpan = bStart, bSpan
		rightEnd, rightSpan = aEnd, aSpan
	}
	xs := left.xs
	if xs == genome.StrandNone {
		xs = right.xs
	}
	return genome.Read{
		ExonIDs:     aIDs,
		XS:          xs,
		NH:          left.nh,
		ReadLen:     leftSpan + rightSpan,
		StartOffset: leftStart,
		EndOffset:   rightEnd,
		LenLeft:     leftSpan,
		LenRight:    rightSpan,
	}, true
}

// resolveBlocks bisects every block boundary into the exon axis, returning
// the ordered exon ids the record spans, the offsets trimmed from the first
// and last exon's span, and the record's total aligned length.
func resolveBlocks(blocks []block, exons genome.Exons) (exonIDs []int32, startOffset, endOffset, span genome.Pos) {
	for _, b := range blocks {
		first := exons.IndexContaining(b.start)
		last := exons.IndexContaining(b.end - 1)
		for i := first; i <= last; i++ {
			exonIDs = append(exonIDs, int32(i))
		}
		span += b.end - b.start
	}
	firstStart, _ := exons.Span(int(exonIDs[0]))
	_, lastEnd := exons.Span(int(exonIDs[len(exonIDs)-1]))
	startOffset = blocks[0].start - firstStart
	endOffset = lastEnd - blocks[len(blocks)-1].end
	return exonIDs, startOffset, endOffset, span
}

func equalInt32s(a, b []int32) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
