// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package genome defines the data model shared by every stage of the
// compressor: the chromosome table, the exon boundary vector, the Read
// type, and the read-only Aggregator view the junction and unspliced
// builders consume.
//
// Exon lookup follows the bisection idiom used by
// github.com/grailbio/bio/interval for BAM coordinate search: exons are
// addressed by a sorted []Pos boundary vector and EndpointIndex-style
// binary search rather than an interval tree, since the exon axis is
// static once finalized.
package genome

import (
	"fmt"
	"sort"
)

// Pos is a 0-based offset into the concatenated genome (the axis formed by
// laying chromosomes end to end in chromosome-table order).
type Pos = uint32

// Chromosomes maps chromosome name to genome length. Iteration order over
// the names given to NewChromosomes is significant: it defines the global
// concatenation order for the exon axis.
type Chromosomes struct {
	names   []string
	lengths map[string]uint32
}

// NewChromosomes builds a chromosome table from names in iteration order
// and their lengths. names must not contain duplicates.
func NewChromosomes(names []string, lengths map[string]uint32) (*Chromosomes, error) {
	seen := make(map[string]bool, len(names))
	for _, n := range names {
		if seen[n] {
			return nil, fmt.Errorf("genome: duplicate chromosome %q", n)
		}
		seen[n] = true
		if _, ok := lengths[n]; !ok {
			return nil, fmt.Errorf("genome: missing length for chromosome %q", n)
		}
	}
	return &Chromosomes{names: names, lengths: lengths}, nil
}

// Names returns the chromosome names in table order.
func (c *Chromosomes) Names() []string { return c.names }

// Len returns the number of chromosomes.
func (c *Chromosomes) Len() int { return len(c.names) }

// Length returns the length of chromosome name, or (0, false) if unknown.
func (c *Chromosomes) Length(name string) (uint32, bool) {
	l, ok := c.lengths[name]
	return l, ok
}

// Offset returns the global concatenation offset of chromosome name, i.e.
// the sum of lengths of all chromosomes preceding it in table order.
func (c *Chromosomes) Offset(name string) (uint32, bool) {
	var off uint32
	for _, n := range c.names {
		if n == name {
			return off, true
		}
		off += c.lengths[n]
	}
	return 0, false
}

// TotalLength returns the sum of all chromosome lengths, i.e. the length of
// the concatenated genome axis.
func (c *Chromosomes) TotalLength() uint32 {
	var total uint32
	for _, n := range c.names {
		total += c.lengths[n]
	}
	return total
}

// Exons is the strictly increasing boundary vector over the concatenated
// genome axis: exon i occupies [Exons[i], Exons[i+1]). Exons[0] == 0 and
// Exons[len(Exons)-1] == total concatenated genome length.
type Exons []Pos

// NumExons returns the number of exons described by the boundary vector.
func (e Exons) NumExons() int {
	if len(e) == 0 {
		return 0
	}
	return len(e) - 1
}

// Span returns the [start, end) interval of exon i.
func (e Exons) Span(i int) (start, end Pos) { return e[i], e[i+1] }

// Length returns the length of exon i.
func (e Exons) Length(i int) uint32 { return e[i+1] - e[i] }

// Total returns the length of the concatenated genome axis, i.e. the last
// boundary value.
func (e Exons) Total() Pos {
	if len(e) == 0 {
		return 0
	}
	return e[len(e)-1]
}

// IndexContaining returns the index of the exon containing position pos,
// i.e. bisect_right(e, pos) - 1 in the spec's terms. It does not check pos:
// for pos >= e[len(e)-1] it returns len(e)-1, which is not a valid exon
// index, so callers must validate pos against the genome length first.
func (e Exons) IndexContaining(pos Pos) int {
	// sort.Search finds the first index i such that e[i] > pos; the exon
	// containing pos is the one just before that.
	i := sort.Search(len(e), func(i int) bool { return e[i] > pos })
	return i - 1
}

// Validate checks the invariants from spec §3: Exons[0] == 0, length >= 2,
// strictly increasing.
func (e Exons) Validate() error {
	if len(e) < 2 {
		return fmt.Errorf("genome: exon vector must have at least 2 boundaries, got %d", len(e))
	}
	if e[0] != 0 {
		return fmt.Errorf("genome: exon vector must start at 0, got %d", e[0])
	}
	for i := 1; i < len(e); i++ {
		if e[i] <= e[i-1] {
			return fmt.Errorf("genome: exon boundaries must be strictly increasing at index %d: %d <= %d", i, e[i], e[i-1])
		}
	}
	return nil
}

// Strand is the XS tag hint: '+', '-', or StrandNone when absent.
type Strand byte

const (
	// StrandNone means the read carried no XS tag.
	StrandNone Strand = 0
	// StrandPlus is XS:A:+.
	StrandPlus Strand = '+'
	// StrandMinus is XS:A:-.
	StrandMinus Strand = '-'
)

func (s Strand) String() string {
	switch s {
	case StrandPlus:
		return "+"
	case StrandMinus:
		return "-"
	default:
		return "."
	}
}

// Read is one aligned read (or read pair) resolved against the exon
// boundary vector, as produced by an Aggregator.
type Read struct {
	// ExonIDs is the ordered sequence of exon indices this read spans.
	// Length 1 means unspliced; length > 1 means spliced.
	ExonIDs []int32
	// XS is the strand hint, or StrandNone if absent.
	XS Strand
	// NH is the reported-alignment multiplicity; always >= 1.
	NH uint16
	// ReadLen is the total template length.
	ReadLen uint32
	// StartOffset/EndOffset are bases trimmed from the first/last exon
	// span this read covers, relative to that span.
	StartOffset, EndOffset uint32
	// LenLeft/LenRight are the left-mate/right-mate sub-alignment
	// lengths. Both zero means the read is unpaired.
	LenLeft, LenRight uint32
}

// Spliced reports whether r spans more than one exon.
func (r *Read) Spliced() bool { return len(r.ExonIDs) > 1 }

// Paired reports whether r is a resolved mate pair.
func (r *Read) Paired() bool { return r.LenLeft != 0 || r.LenRight != 0 }

// Aggregator is the read-only view the junction and unspliced builders
// consume. It is produced by an upstream alignment aggregation pass
// (outside the scope of this package, see the ingest package for one
// implementation) and is immutable from this point on.
type Aggregator interface {
	// Chromosomes returns the finalized chromosome table.
	Chromosomes() *Chromosomes
	// Exons returns the finalized exon boundary vector.
	Exons() Exons
	// Spliced returns every spliced read, in the deterministic order
	// strand-resolution and reverse-indexing depend on.
	Spliced() []Read
	// Unspliced returns every unspliced read, in the same input order
	// (the unspliced builder is responsible for iterating it in reverse).
	Unspliced() []Read
}
