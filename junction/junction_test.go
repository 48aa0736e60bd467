// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package junction_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/boilerbio/boiler/genome"
	"github.com/boilerbio/boiler/junction"
	"github.com/boilerbio/boiler/rle"
)

func exons(bounds ...genome.Pos) genome.Exons { return genome.Exons(bounds) }

// S3: two junction-sharing reads with opposite XS produce two distinct
// junctions.
func TestOppositeXSProducesTwoJunctions(t *testing.T) {
	b := junction.NewBuilder(exons(0, 100, 200, 300))
	require.NoError(t, b.Add(genome.Read{ExonIDs: []int32{0, 2}, XS: genome.StrandPlus, NH: 2, ReadLen: 50}))
	require.NoError(t, b.Add(genome.Read{ExonIDs: []int32{0, 2}, XS: genome.StrandMinus, NH: 2, ReadLen: 50}))

	sorted := b.Sorted()
	require.Len(t, sorted, 2)
	assert.Equal(t, genome.StrandPlus, sorted[0].Strand)
	assert.Equal(t, genome.StrandMinus, sorted[1].Strand)
}

// S4: XS absent after XS-present collapses into a single junction with the
// first-seen strand and three contributors.
func TestFirstComeStrandWins(t *testing.T) {
	b := junction.NewBuilder(exons(0, 100, 200, 300))
	require.NoError(t, b.Add(genome.Read{ExonIDs: []int32{0, 2}, XS: genome.StrandMinus, NH: 1, ReadLen: 50}))
	require.NoError(t, b.Add(genome.Read{ExonIDs: []int32{0, 2}, XS: genome.StrandNone, NH: 1, ReadLen: 50}))
	require.NoError(t, b.Add(genome.Read{ExonIDs: []int32{0, 2}, XS: genome.StrandNone, NH: 1, ReadLen: 50}))

	sorted := b.Sorted()
	require.Len(t, sorted, 1)
	assert.Equal(t, genome.StrandMinus, sorted[0].Strand)
	var total uint32
	for _, n := range sorted[0].UnpairedLens {
		total += n
	}
	assert.EqualValues(t, 3, total)
}

func TestSortOrderByExonTupleThenInsertion(t *testing.T) {
	b := junction.NewBuilder(exons(0, 100, 200, 300, 400))
	require.NoError(t, b.Add(genome.Read{ExonIDs: []int32{1, 3}, XS: genome.StrandPlus, NH: 1, ReadLen: 10}))
	require.NoError(t, b.Add(genome.Read{ExonIDs: []int32{0, 2}, XS: genome.StrandPlus, NH: 1, ReadLen: 10}))
	require.NoError(t, b.Add(genome.Read{ExonIDs: []int32{0, 1}, XS: genome.StrandPlus, NH: 1, ReadLen: 10}))

	sorted := b.Sorted()
	require.Len(t, sorted, 3)
	assert.Equal(t, []int32{0, 1}, sorted[0].ExonIDs)
	assert.Equal(t, []int32{0, 2}, sorted[1].ExonIDs)
	assert.Equal(t, []int32{1, 3}, sorted[2].ExonIDs)
}

func TestCoverageSumConservation(t *testing.T) {
	b := junction.NewBuilder(exons(0, 100, 200)) // junction length 200
	require.NoError(t, b.Add(genome.Read{ExonIDs: []int32{0, 1}, XS: genome.StrandPlus, NH: 1,
		ReadLen: 60, StartOffset: 10, EndOffset: 5}))
	sorted := b.Sorted()
	require.Len(t, sorted, 1)

	var sum uint32
	for _, r := range sorted[0].Coverage {
		sum += uint32(r.Value) * r.Length
	}
	// Unpaired: covers [10, 200-5) = [10,195), i.e. 185 bases at +1.
	assert.EqualValues(t, 185, sum)
}

func TestPairedCoverageTwoDisjointUpdates(t *testing.T) {
	b := junction.NewBuilder(exons(0, 100, 200))
	require.NoError(t, b.Add(genome.Read{
		ExonIDs: []int32{0, 1}, XS: genome.StrandPlus, NH: 1,
		ReadLen: 60, StartOffset: 10, EndOffset: 5, LenLeft: 20, LenRight: 25,
	}))
	sorted := b.Sorted()
	cov := rle.Expand(sorted[0].Coverage)
	// left: [10,30) = 1, right: [200-5-25, 200-5) = [170,195) = 1, else 0.
	for i, v := range cov {
		want := int32(0)
		if i >= 10 && i < 30 {
			want = 1
		}
		if i >= 170 && i < 195 {
			want = 1
		}
		require.Equalf(t, want, v, "position %d", i)
	}
}

func TestChunking(t *testing.T) {
	b := junction.NewBuilder(exons(0, 10, 20, 30, 40, 50, 60))
	for i := 0; i < 5; i++ {
		require.NoError(t, b.Add(genome.Read{ExonIDs: []int32{int32(i), int32(i + 1)}, XS: genome.StrandPlus, NH: 1, ReadLen: 5}))
	}
	chunks := junction.Chunk(b.Sorted(), 2)
	require.Len(t, chunks, 3)
	assert.Len(t, chunks[0], 2)
	assert.Len(t, chunks[1], 2)
	assert.Len(t, chunks[2], 1)
}
