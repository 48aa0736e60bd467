// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package unspliced implements the unspliced builder (spec §4.4): it bins
// unspliced reads by NH and by containing exon, and maintains a
// genome-wide coverage vector per NH (dense for NH==1, RLE otherwise).
package unspliced

import (
	"sort"

	"github.com/boilerbio/boiler/genome"
	"github.com/boilerbio/boiler/rle"
)

// LenHist is a length-value histogram, identical in shape to junction.LenHist
// (kept as its own type to avoid a needless cross-package dependency).
type LenHist map[uint32]uint32

func (h LenHist) bump(k uint32) { h[k]++ }

// Group is the per-NH accumulator: a genome-wide coverage vector plus, for
// every exon, the list of contributing read indices (in the reversed order
// spec §4.4 requires).
type Group struct {
	NH uint16

	// dense holds genome-wide per-base coverage while NH == 1; it is
	// collapsed into Coverage by Builder.Finalize. For NH != 1 dense is
	// nil and Coverage is maintained directly via rle.Update.
	dense []int32
	// Coverage is the RLE coverage vector, valid only after Finalize for
	// NH==1 groups (populated incrementally for NH!=1 groups).
	Coverage rle.Vector

	// ExonReads[i] lists the original read indices assigned to exon i, in
	// decreasing order (spec §4.4 / §9: the source enumerates unspliced
	// reads in reverse insertion order, so the per-exon lists end up
	// descending, preserved here as a testable property).
	ExonReads [][]int32

	UnpairedLens []LenHist
	PairedLens   []LenHist
	LensLeft     []LenHist
	LensRight    []LenHist
}

// Builder accumulates unspliced groups across a stream of unspliced reads.
type Builder struct {
	exons genome.Exons
	total uint32

	groups   map[uint16]*Group
	nhOrder  []uint16
	allReads []genome.Read
}

// NewBuilder creates an unspliced Builder against the given finalized exon
// table.
func NewBuilder(exons genome.Exons) *Builder {
	return &Builder{
		exons:  exons,
		total:  exons.Total(),
		groups: make(map[uint16]*Group),
	}
}

func (b *Builder) groupFor(nh uint16) *Group {
	g, ok := b.groups[nh]
	if ok {
		return g
	}
	g = &Group{NH: nh, ExonReads: make([][]int32, b.exons.NumExons())}
	if nh == 1 {
		g.dense = make([]int32, b.total)
	} else {
		g.Coverage = rle.Vector{{Value: 0, Length: b.total}}
	}
	b.groups[nh] = g
	b.nhOrder = append(b.nhOrder, nh)
	return g
}

// absoluteSpan returns the read's genome-wide [start, end) interval, derived
// from its containing exon id and the trim offsets relative to that exon's
// span.
func (b *Builder) absoluteSpan(r *genome.Read) (start, end genome.Pos) {
	exonStart, exonEnd := b.exons.Span(int(r.ExonIDs[0]))
	return exonStart + r.StartOffset, exonEnd - r.EndOffset
}

// Add folds one unspliced read into its NH group. Per spec §4.4, callers
// must present reads in reverse input order: Add records readIndex (the
// read's ORIGINAL, forward-order index) into the per-exon list, so the
// resulting ExonReads[j] end up in decreasing original-index order.
func (b *Builder) Add(readIndex int32, r genome.Read) error {
	g := b.groupFor(r.NH)

	start, end := b.absoluteSpan(&r)
	j := b.exons.IndexContaining(start)
	g.ExonReads[j] = append(g.ExonReads[j], readIndex)

	var err error
	if r.NH == 1 {
		if !r.Paired() {
			for i := start; i < end; i++ {
				g.dense[i]++
			}
		} else {
			for i := start; i < start+r.LenLeft; i++ {
				g.dense[i]++
			}
			for i := end - r.LenRight; i < end; i++ {
				g.dense[i]++
			}
		}
	} else {
		if !r.Paired() {
			g.Coverage, err = rle.Update(g.Coverage, start, end-start, 1)
		} else {
			g.Coverage, err = rle.Update(g.Coverage, start, r.LenLeft, 1)
			if err == nil {
				g.Coverage, err = rle.Update(g.Coverage, end-r.LenRight, r.LenRight, 1)
			}
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// Finalize collapses every NH==1 group's dense vector into an RLE Coverage
// (via rle.BuildFromDense) and computes per-exon length histograms in a
// second pass over ExonReads, per spec §4.4. It must be called exactly once
// after all reads have been added, and returns the groups sorted by NH.
func (b *Builder) Finalize(reads []genome.Read) []*Group {
	b.allReads = reads
	sort.Slice(b.nhOrder, func(i, j int) bool { return b.nhOrder[i] < b.nhOrder[j] })

	out := make([]*Group, 0, len(b.nhOrder))
	for _, nh := range b.nhOrder {
		g := b.groups[nh]
		if g.dense != nil {
			g.Coverage = rle.BuildFromDense(g.dense)
			g.dense = nil
		}
		b.computeHistograms(g)
		out = append(out, g)
	}
	return out
}

func (b *Builder) computeHistograms(g *Group) {
	n := len(g.ExonReads)
	g.UnpairedLens = make([]LenHist, n)
	g.PairedLens = make([]LenHist, n)
	g.LensLeft = make([]LenHist, n)
	g.LensRight = make([]LenHist, n)

	for i, ids := range g.ExonReads {
		if len(ids) == 0 {
			continue
		}
		unpaired := LenHist{}
		paired := LenHist{}
		left := LenHist{}
		right := LenHist{}
		for _, readIdx := range ids {
			r := b.allReads[readIdx]
			start, end := b.absoluteSpan(&r)
			length := end - start
			if r.Paired() {
				paired.bump(length)
				left.bump(r.LenLeft)
				right.bump(r.LenRight)
			} else {
				unpaired.bump(length)
			}
		}
		g.UnpairedLens[i] = unpaired
		g.PairedLens[i] = paired
		g.LensLeft[i] = left
		g.LensRight[i] = right
	}
}
