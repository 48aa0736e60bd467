// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package rle_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/boilerbio/boiler/rle"
)

func TestBuildFromDenseReconstructs(t *testing.T) {
	for _, d := range [][]int32{
		{},
		{0},
		{0, 0, 0},
		{0, 1, 1, 0, 2, 2, 2},
		{5, 4, 3, 2, 1},
	} {
		v := rle.BuildFromDense(d)
		if len(d) == 0 {
			assert.Nil(t, v)
			continue
		}
		assert.Equal(t, d, rle.Expand(v))
	}
}

func TestUpdateMatchesDenseReference(t *testing.T) {
	dense := make([]int32, 1000)
	v := rle.BuildFromDense(dense)

	apply := func(start, length uint32, delta int32) {
		var err error
		v, err = rle.Update(v, start, length, delta)
		require.NoError(t, err)
		for i := start; i < start+length; i++ {
			if int32(dense[i])+delta < 0 {
				dense[i] = 0
			} else {
				dense[i] += delta
			}
		}
		assert.Equal(t, dense, toInt32Dense(rle.Expand(v)))
	}

	apply(100, 50, 1)
	apply(120, 10, 1)
	apply(0, 1000, -1) // exercise the 0-clamp
	apply(500, 500, 3)
	apply(0, 1, 5)
	apply(999, 1, 5)
}

func toInt32Dense(v []int32) []int32 { return v }

func TestUpdateOutOfBounds(t *testing.T) {
	v := rle.BuildFromDense([]int32{0, 0, 0, 0})
	_, err := rle.Update(v, 2, 10, 1)
	require.Error(t, err)
}

func TestUpdateDoesNotCoalesce(t *testing.T) {
	v := rle.Vector{{Value: 0, Length: 10}}
	v, err := rle.Update(v, 2, 3, 1)
	require.NoError(t, err)
	v, err = rle.Update(v, 2, 3, -1)
	require.NoError(t, err)
	// After the round trip all three runs have value 0 again but are not
	// merged back into a single run.
	assert.Equal(t, rle.Vector{
		{Value: 0, Length: 2},
		{Value: 0, Length: 3},
		{Value: 0, Length: 5},
	}, v)
}

func TestRunLengthSumConserved(t *testing.T) {
	v := rle.BuildFromDense(make([]int32, 257))
	v, err := rle.Update(v, 17, 240, 2)
	require.NoError(t, err)
	var sum uint32
	for _, r := range v {
		sum += r.Length
	}
	assert.EqualValues(t, 257, sum)
}
