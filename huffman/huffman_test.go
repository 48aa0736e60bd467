// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package huffman_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/boilerbio/boiler/huffman"
)

func TestDiffEncode(t *testing.T) {
	assert.Equal(t, []int32{5, -2, 3, 0}, huffman.DiffEncode([]int32{5, 3, 6, 6}))
	assert.Equal(t, []int32{}, huffman.DiffEncode(nil))
}

func TestCompletenessAndPrefixProperty(t *testing.T) {
	freq := huffman.FreqTable{0: 100, 1: 50, -1: 49, 5: 1, -5: 1}
	table := huffman.Build(freq)

	for s := range freq {
		_, ok := table.Code(s)
		require.Truef(t, ok, "symbol %d missing from table", s)
	}

	// Prefix-code property: no code is a prefix of another.
	type cb struct {
		bits   uint32
		length uint8
	}
	var all []cb
	for s := range freq {
		c, _ := table.Code(s)
		all = append(all, cb{c.Bits, c.Length})
	}
	for i := range all {
		for j := range all {
			if i == j {
				continue
			}
			if all[i].length >= all[j].length {
				continue
			}
			prefix := all[j].bits >> (all[j].length - all[i].length)
			assert.NotEqual(t, all[i].bits, prefix, "code %d is a prefix of code %d", i, j)
		}
	}
}

func TestDeterministicAcrossEquivalentFrequencyMultisets(t *testing.T) {
	f1 := huffman.FreqTable{0: 10, 1: 10, 2: 5, 3: 1}
	f2 := huffman.FreqTable{0: 10, 1: 10, 2: 5, 3: 1}
	t1 := huffman.Build(f1)
	t2 := huffman.Build(f2)
	assert.Equal(t, t1.Symbols(), t2.Symbols())
	for _, s := range t1.Symbols() {
		c1, _ := t1.Code(s)
		c2, _ := t2.Code(s)
		assert.Equal(t, c1, c2)
	}
}

func TestBitWriterReaderRoundTrip(t *testing.T) {
	freq := huffman.FreqTable{0: 100, 1: 50, -1: 49, 5: 1, -5: 1}
	table := huffman.Build(freq)

	symbols := []int32{0, 0, 1, -1, 5, -5, 0, 1, -1, 0}
	var w huffman.BitWriter
	for _, s := range symbols {
		c, ok := table.Code(s)
		require.True(t, ok)
		w.WriteCode(c)
	}
	packed := w.Bytes()

	r := huffman.NewBitReader(packed)
	for _, want := range symbols {
		got, ok := r.ReadSymbol(table)
		require.True(t, ok)
		assert.Equal(t, want, got)
	}
}

func TestSingleSymbolAlphabet(t *testing.T) {
	table := huffman.Build(huffman.FreqTable{7: 42})
	c, ok := table.Code(7)
	require.True(t, ok)
	assert.EqualValues(t, 1, c.Length)
}
