// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package archive_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/boilerbio/boiler/archive"
	"github.com/boilerbio/boiler/blockio"
	"github.com/boilerbio/boiler/genome"
	"github.com/boilerbio/boiler/junction"
	"github.com/boilerbio/boiler/rle"
	"github.com/boilerbio/boiler/unspliced"
)

// buildFixture constructs a small two-chromosome, four-exon genome with one
// spliced junction and two NH groups of unspliced reads. Every read in it is
// unpaired.
func buildFixture(t *testing.T) archive.Input {
	t.Helper()
	chroms, err := genome.NewChromosomes(
		[]string{"chr1", "chr2"},
		map[string]uint32{"chr1": 500000, "chr2": 300000},
	)
	require.NoError(t, err)

	// Exon 0: [0,1000) on chr1. Exon 1: [1000,1200). Exon 2: [1200,500300),
	// crossing into chr2 (which starts at chr1's length, 500000). Exon 3:
	// [500300,500800).
	exons := genome.Exons{0, 1000, 1200, 500300, 500800}

	jb := junction.NewBuilder(exons)
	require.NoError(t, jb.Add(genome.Read{
		ExonIDs: []int32{0, 1}, XS: genome.StrandPlus, NH: 1, ReadLen: 50,
		StartOffset: 950, EndOffset: 150,
	}))
	require.NoError(t, jb.Add(genome.Read{
		ExonIDs: []int32{0, 1}, XS: genome.StrandPlus, NH: 1, ReadLen: 60,
		StartOffset: 940, EndOffset: 140,
	}))

	ub := unspliced.NewBuilder(exons)
	unsplicedReads := []genome.Read{
		{ExonIDs: []int32{2}, NH: 1, ReadLen: 40, StartOffset: 500000 - 500000, EndOffset: 500300 - 500040},
		{ExonIDs: []int32{3}, NH: 2, ReadLen: 30, StartOffset: 500300 - 500300, EndOffset: 500800 - 500330},
	}
	for i := len(unsplicedReads) - 1; i >= 0; i-- {
		require.NoError(t, ub.Add(int32(i), unsplicedReads[i]))
	}
	groups := ub.Finalize(unsplicedReads)

	return archive.Input{
		Chromosomes: chroms,
		Exons:       exons,
		Junctions:   jb.Sorted(),
		Groups:      groups,
	}
}

func roundTrip(t *testing.T, in archive.Input, opts archive.Options) *archive.Archive {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, archive.Write(&buf, in, opts))
	got, err := archive.Read(&buf)
	require.NoError(t, err)
	return got
}

func TestRoundTripDeflateNoHuffman(t *testing.T) {
	in := buildFixture(t)
	got := roundTrip(t, in, archive.Options{Binary: true, CompressMethod: blockio.MethodDeflate})

	assert.Equal(t, in.Chromosomes.Names(), got.Chromosomes.Names())
	assert.Equal(t, []genome.Pos(in.Exons), []genome.Pos(got.Exons))
	require.Len(t, got.Junctions, len(in.Junctions))
	for i, j := range in.Junctions {
		assert.Equal(t, j.ExonIDs, got.Junctions[i].ExonIDs)
		assert.Equal(t, j.Strand, got.Junctions[i].Strand)
		assert.Equal(t, j.NH, got.Junctions[i].NH)
		assert.Equal(t, j.Coverage, got.Junctions[i].Coverage)
		assert.Equal(t, map[uint32]uint32(j.UnpairedLens), got.Junctions[i].UnpairedLens)
	}
	require.Len(t, got.Groups, len(in.Groups))
	for i, g := range in.Groups {
		assert.Equal(t, g.NH, got.Groups[i].NH)
		assert.EqualValues(t, rle.Expand(g.Coverage), rle.Expand(got.Groups[i].Coverage))
	}
}

func TestRoundTripWithHuffman(t *testing.T) {
	in := buildFixture(t)
	got := roundTrip(t, in, archive.Options{Binary: true, Huffman: true, CompressMethod: blockio.MethodDeflate})

	for i, j := range in.Junctions {
		assert.EqualValues(t, rle.Expand(j.Coverage), rle.Expand(got.Junctions[i].Coverage))
	}
	for i, g := range in.Groups {
		assert.EqualValues(t, rle.Expand(g.Coverage), rle.Expand(got.Groups[i].Coverage))
	}
}

func TestRoundTripLZMAAndBzip2(t *testing.T) {
	in := buildFixture(t)
	for _, m := range []blockio.Method{blockio.MethodLZMA, blockio.MethodBzip2} {
		t.Run(string(m), func(t *testing.T) {
			got := roundTrip(t, in, archive.Options{Binary: true, CompressMethod: m})
			require.Len(t, got.Junctions, len(in.Junctions))
			assert.Equal(t, in.Junctions[0].ExonIDs, got.Junctions[0].ExonIDs)
		})
	}
}

// TestS5SparseCoverageOverLargeGenome exercises a sparsely covered genome
// spanning multiple section breakpoints, verifying the all-zero segments
// round-trip via the offset-zero sentinel rather than an emitted block.
func TestS5SparseCoverageOverLargeGenome(t *testing.T) {
	chroms, err := genome.NewChromosomes([]string{"chrBig"}, map[string]uint32{"chrBig": 250000})
	require.NoError(t, err)
	exons := genome.Exons{0, 250000}

	ub := unspliced.NewBuilder(exons)
	reads := []genome.Read{
		{ExonIDs: []int32{0}, NH: 3, ReadLen: 20, StartOffset: 10, EndOffset: 250000 - 30},
	}
	require.NoError(t, ub.Add(0, reads[0]))
	groups := ub.Finalize(reads)

	in := archive.Input{Chromosomes: chroms, Exons: exons, Groups: groups}
	opts := archive.Options{Binary: true, CompressMethod: blockio.MethodDeflate, SectionLen: 100000}

	var buf bytes.Buffer
	require.NoError(t, archive.Write(&buf, in, opts))
	got, err := archive.Read(&buf)
	require.NoError(t, err)

	require.Len(t, got.Groups, 1)
	assert.EqualValues(t, rle.Expand(groups[0].Coverage), rle.Expand(got.Groups[0].Coverage))
}

func TestWriteTextProducesTabDelimitedOutput(t *testing.T) {
	in := buildFixture(t)
	var buf bytes.Buffer
	require.NoError(t, archive.WriteText(&buf, in))
	out := buf.String()
	assert.Contains(t, out, "chr1\tchr2")
	assert.Contains(t, out, "0\t1000\t1200\t500300\t500800")
	assert.Contains(t, out, ">0\t1\t+\t1")
	assert.Contains(t, out, "#1")
	assert.Contains(t, out, "#2")
}

func TestEmptyArchiveRoundTrips(t *testing.T) {
	chroms, err := genome.NewChromosomes([]string{"chr1"}, map[string]uint32{"chr1": 10})
	require.NoError(t, err)
	in := archive.Input{Chromosomes: chroms, Exons: genome.Exons{0, 10}}

	got := roundTrip(t, in, archive.Options{Binary: true})
	assert.Empty(t, got.Junctions)
	assert.Empty(t, got.Groups)
}
