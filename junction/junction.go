// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package junction implements the junction builder (spec §4.3): it groups
// spliced reads by (exon-id tuple, strand, NH), accumulates an RLE coverage
// vector over the concatenated exon spans, and keeps per-junction length
// histograms.
package junction

import (
	"sort"
	"strings"

	"github.com/boilerbio/boiler/genome"
	"github.com/boilerbio/boiler/rle"
)

// Key identifies a junction: the ordered exon-id tuple it spans, the
// resolved strand, and the read multiplicity. It is a plain comparable
// struct: the exon-id tuple as a comma-joined string, plus the strand and
// NH as separate fields.
type Key struct {
	// ExonIDs is the tuple of exon indices, joined into a string only for
	// use as a Go map key (Go does not allow []int32 as a map key, and
	// junction tuples are typically short, 2 or 3 exons, so the join
	// cost is negligible next to the RLE update work it gates).
	exonIDs string
	Strand  genome.Strand
	NH      uint16
}

func keyExonIDs(ids []int32) string {
	var sb strings.Builder
	for i, id := range ids {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(itoa(id))
	}
	return sb.String()
}

func itoa(v int32) string {
	// Small, allocation-light int32 formatter; exon ids are non-negative
	// in practice but tolerate -1 defensively.
	if v == 0 {
		return "0"
	}
	neg := v < 0
	if neg {
		v = -v
	}
	var buf [12]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// LenHist is a length-value histogram: readLen/fragment-length -> count.
type LenHist map[uint32]uint32

// Junction is one (exon-id tuple, strand, NH) group, per spec §3.
type Junction struct {
	ExonIDs []int32
	Strand  genome.Strand
	NH      uint16

	// Length is the sum of spans of the listed exons.
	Length uint32
	// Coverage is the RLE over [0, Length). Initialized to a single run
	// (0, Length) and mutated in place by rle.Update as reads are folded
	// in.
	Coverage rle.Vector

	UnpairedLens LenHist
	PairedLens   LenHist
	LensLeft     LenHist
	LensRight    LenHist

	// insertOrder records the order in which this junction was first
	// created, used as the final tiebreaker for the exon-tuple sort so
	// that output order is deterministic given a deterministic input
	// order (spec §4.3).
	insertOrder int
}

func newJunction(exonIDs []int32, strand genome.Strand, nh uint16, length uint32, order int) *Junction {
	return &Junction{
		ExonIDs:      append([]int32(nil), exonIDs...),
		Strand:       strand,
		NH:           nh,
		Length:       length,
		Coverage:     rle.Vector{{Value: 0, Length: length}},
		UnpairedLens: LenHist{},
		PairedLens:   LenHist{},
		LensLeft:     LenHist{},
		LensRight:    LenHist{},
		insertOrder:  order,
	}
}

func (j *LenHist) bump(k uint32) { (*j)[k]++ }

// Builder accumulates junctions across a stream of spliced reads.
type Builder struct {
	exons genome.Exons

	byKey map[Key]*Junction

	order int

	// MaxReadLen tracks the widest read/fragment length seen. The archive
	// writer does not read it: length-histogram keys are always written as
	// u32.
	MaxReadLen uint32
}

// NewBuilder creates a junction Builder against the given finalized exon
// table.
func NewBuilder(exons genome.Exons) *Builder {
	return &Builder{
		exons: exons,
		byKey: make(map[Key]*Junction),
	}
}

// resolveStrand implements the "first-come wins" rule of spec §4.3: if xs is
// present, use it; otherwise use '+' if a junction keyed (tuple, '+', nh)
// already exists, else '-' if (tuple, '-', nh) exists, else default to '+'.
// The probe order ('+' before '-') is hard-coded per spec §9 and must not be
// reordered.
func (b *Builder) resolveStrand(tupleKey string, xs genome.Strand, nh uint16) genome.Strand {
	if xs != genome.StrandNone {
		return xs
	}
	if _, ok := b.byKey[Key{exonIDs: tupleKey, Strand: genome.StrandPlus, NH: nh}]; ok {
		return genome.StrandPlus
	}
	if _, ok := b.byKey[Key{exonIDs: tupleKey, Strand: genome.StrandMinus, NH: nh}]; ok {
		return genome.StrandMinus
	}
	return genome.StrandPlus
}

func (b *Builder) spanLength(exonIDs []int32) uint32 {
	var total uint32
	for _, e := range exonIDs {
		total += b.exons.Length(int(e))
	}
	return total
}

// Add folds one spliced read into the junction it belongs to, creating the
// junction on first sight. It returns an error only if the read's coverage
// update would be out-of-bounds (spec §7 RangeOutOfBounds), which indicates
// a corrupt exon table or read.
func (b *Builder) Add(r genome.Read) error {
	tupleKey := keyExonIDs(r.ExonIDs)
	strand := b.resolveStrand(tupleKey, r.XS, r.NH)
	key := Key{exonIDs: tupleKey, Strand: strand, NH: r.NH}

	j, ok := b.byKey[key]
	if !ok {
		length := b.spanLength(r.ExonIDs)
		j = newJunction(r.ExonIDs, strand, r.NH, length, b.order)
		b.order++
		b.byKey[key] = j
	}

	var err error
	if !r.Paired() {
		j.Coverage, err = rle.Update(j.Coverage, r.StartOffset, j.Length-r.EndOffset-r.StartOffset, 1)
		if err != nil {
			return err
		}
		j.UnpairedLens.bump(r.ReadLen)
	} else {
		j.Coverage, err = rle.Update(j.Coverage, r.StartOffset, r.LenLeft, 1)
		if err != nil {
			return err
		}
		j.Coverage, err = rle.Update(j.Coverage, j.Length-r.EndOffset-r.LenRight, r.LenRight, 1)
		if err != nil {
			return err
		}
		j.PairedLens.bump(r.ReadLen)
		j.LensLeft.bump(r.LenLeft)
		j.LensRight.bump(r.LenRight)
	}
	if r.ReadLen > b.MaxReadLen {
		b.MaxReadLen = r.ReadLen
	}
	if r.LenLeft > b.MaxReadLen {
		b.MaxReadLen = r.LenLeft
	}
	if r.LenRight > b.MaxReadLen {
		b.MaxReadLen = r.LenRight
	}
	return nil
}

// Sorted returns every junction built so far, ordered by exon-id tuple
// (lexicographic integer comparison; strand and NH are ignored for
// ordering), ties broken by insertion order, per spec §4.3.
func (b *Builder) Sorted() []*Junction {
	out := make([]*Junction, 0, len(b.byKey))
	for _, j := range b.byKey {
		out = append(out, j)
	}
	sort.SliceStable(out, func(i, k int) bool {
		a, c := out[i], out[k]
		cmp := compareExonIDs(a.ExonIDs, c.ExonIDs)
		if cmp != 0 {
			return cmp < 0
		}
		return a.insertOrder < c.insertOrder
	})
	return out
}

func compareExonIDs(a, b []int32) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	default:
		return 0
	}
}

// Chunk splits junctions (already Sorted) into fixed-size chunks of
// chunkSize junctions each, per spec §4.3/§4.6.
func Chunk(sorted []*Junction, chunkSize int) [][]*Junction {
	if chunkSize <= 0 {
		chunkSize = 50
	}
	var chunks [][]*Junction
	for i := 0; i < len(sorted); i += chunkSize {
		end := i + chunkSize
		if end > len(sorted) {
			end = len(sorted)
		}
		chunks = append(chunks, sorted[i:end])
	}
	return chunks
}
