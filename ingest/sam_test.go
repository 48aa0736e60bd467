// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package ingest_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/boilerbio/boiler/genome"
	"github.com/boilerbio/boiler/ingest"
)

func TestUnsplicedSingleChromosome(t *testing.T) {
	sam := `@HD	VN:1.3	SO:coordinate
@SQ	SN:chr1	LN:1000
read1	0	chr1	101	60	50M	*	0	0	*	*	NH:i:1
`
	agg, err := ingest.Parse(strings.NewReader(sam))
	require.NoError(t, err)

	assert.Equal(t, []string{"chr1"}, agg.Chromosomes().Names())
	require.Len(t, agg.Unspliced(), 1)
	r := agg.Unspliced()[0]
	assert.False(t, r.Spliced())
	assert.EqualValues(t, 1, r.NH)
	assert.EqualValues(t, 50, r.ReadLen)
}

func TestSplicedReadProducesJunctionSpanningExons(t *testing.T) {
	sam := `@HD	VN:1.3	SO:coordinate
@SQ	SN:chr1	LN:1000
read1	0	chr1	101	60	20M100N30M	*	0	0	*	*	NH:i:1	XS:A:+
`
	agg, err := ingest.Parse(strings.NewReader(sam))
	require.NoError(t, err)

	require.Len(t, agg.Spliced(), 1)
	r := agg.Spliced()[0]
	assert.True(t, r.Spliced())
	assert.Len(t, r.ExonIDs, 2)
	assert.Equal(t, genome.StrandPlus, r.XS)
	assert.EqualValues(t, 50, r.ReadLen)
}

func TestPairedMatesOnSameExonAreMerged(t *testing.T) {
	sam := `@HD	VN:1.3	SO:coordinate
@SQ	SN:chr1	LN:1000
read1	99	chr1	101	60	20M	=	101	20	*	*	NH:i:1
read1	147	chr1	101	60	20M	=	101	-20	*	*	NH:i:1
`
	agg, err := ingest.Parse(strings.NewReader(sam))
	require.NoError(t, err)

	require.Len(t, agg.Unspliced(), 1)
	r := agg.Unspliced()[0]
	assert.True(t, r.Paired())
	assert.EqualValues(t, 20, r.LenLeft)
	assert.EqualValues(t, 20, r.LenRight)
}

func TestSecondaryAndUnmappedRecordsAreSkipped(t *testing.T) {
	sam := `@HD	VN:1.3	SO:coordinate
@SQ	SN:chr1	LN:1000
read1	0	chr1	101	60	50M	*	0	0	*	*	NH:i:1
read2	256	chr1	101	60	50M	*	0	0	*	*	NH:i:1
read3	4	*	0	0	*	*	0	0	*	*
`
	agg, err := ingest.Parse(strings.NewReader(sam))
	require.NoError(t, err)
	assert.Len(t, agg.Unspliced(), 1)
}

func TestMultipleChromosomesBuildGlobalOffsets(t *testing.T) {
	sam := `@HD	VN:1.3	SO:coordinate
@SQ	SN:chr1	LN:1000
@SQ	SN:chr2	LN:2000
read1	0	chr1	1	60	100M	*	0	0	*	*	NH:i:1
read2	0	chr2	1	60	100M	*	0	0	*	*	NH:i:1
`
	agg, err := ingest.Parse(strings.NewReader(sam))
	require.NoError(t, err)
	assert.Equal(t, []string{"chr1", "chr2"}, agg.Chromosomes().Names())
	// chr2 starts at global offset 1000, so its read covers [1000,1100).
	assert.Equal(t, genome.Exons{0, 100, 1000, 1100, 3000}, agg.Exons())
	require.Len(t, agg.Unspliced(), 2)
}
