// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package huffman implements the optional entropy-coding stage (spec §4.5):
// difference-encoding of RLE value streams, frequency collection, and a
// canonical Huffman code with deterministic tie-breaking.
package huffman

import (
	"sort"

	"github.com/boilerbio/boiler/rle"
)

// DiffEncode replaces a run-value stream by its first-difference stream:
// v[0], then v[i]-v[i-1] for i >= 1. Run lengths are not differenced (the
// caller keeps run lengths as-is and only feeds values through the huffman
// code).
func DiffEncode(values []int32) []int32 {
	out := make([]int32, len(values))
	if len(values) == 0 {
		return out
	}
	out[0] = values[0]
	for i := 1; i < len(values); i++ {
		out[i] = values[i] - values[i-1]
	}
	return out
}

// DiffEncodeVector returns the first-difference stream of the run values in
// v (run lengths are carried separately by callers and are never
// differenced).
func DiffEncodeVector(v rle.Vector) []int32 {
	values := make([]int32, len(v))
	for i, r := range v {
		values[i] = r.Value
	}
	return DiffEncode(values)
}

// FreqTable accumulates symbol frequencies across many difference streams.
type FreqTable map[int32]uint64

// Add increments the frequency of every symbol in values.
func (f FreqTable) Add(values []int32) {
	for _, v := range values {
		f[v]++
	}
}

// Code is one symbol's canonical Huffman code: the low Length bits of Bits,
// packed MSB-first when serialized (spec §6).
type Code struct {
	Bits   uint32
	Length uint8
}

// Table is a canonical Huffman code: a bijection between symbols and
// variable-length bit codes.
type Table struct {
	codes map[int32]Code
	// symbols is the canonical symbol order (by code length, then symbol
	// value ascending), kept for deterministic serialization.
	symbols []int32
	// byCode is a lazily-built decode index; see BitReader.ReadSymbol.
	byCode map[codeKey]int32
}

// NewTable builds a Table directly from a decoded symbol-to-code map, for
// use by readers that deserialize a canonical code from an archive's index
// block instead of rebuilding it from frequencies.
func NewTable(codes map[int32]Code, symbols []int32) *Table {
	return &Table{codes: codes, symbols: symbols}
}

// Symbols returns the table's symbols in canonical serialization order.
func (t *Table) Symbols() []int32 { return t.symbols }

// Code returns the code for symbol, and whether it was found.
func (t *Table) Code(symbol int32) (Code, bool) {
	c, ok := t.codes[symbol]
	return c, ok
}

type heapNode struct {
	freq     uint64
	symbol   int32 // valid only for leaves; used as the tiebreak key
	isLeaf   bool
	left     *heapNode
	right    *heapNode
	minLeaf  int32 // smallest symbol value in this node's subtree, for deterministic merge order
}

// Build constructs a canonical Huffman code from the frequency table freq,
// using the standard weight-merge algorithm. Ties (equal weight during the
// merge, or equal code length when assigning canonical codes) are broken by
// symbol value ascending, so the result is fully deterministic given the
// same frequency multiset (spec §4.5, testable property #6).
func Build(freq FreqTable) *Table {
	if len(freq) == 0 {
		return &Table{codes: map[int32]Code{}}
	}
	symbols := make([]int32, 0, len(freq))
	for s := range freq {
		symbols = append(symbols, s)
	}
	sort.Slice(symbols, func(i, j int) bool { return symbols[i] < symbols[j] })

	nodes := make([]*heapNode, len(symbols))
	for i, s := range symbols {
		nodes[i] = &heapNode{freq: freq[s], symbol: s, isLeaf: true, minLeaf: s}
	}
	if len(nodes) == 1 {
		// A single-symbol alphabet still needs a (trivial) 1-bit code.
		only := nodes[0]
		return &Table{
			codes:   map[int32]Code{only.symbol: {Bits: 0, Length: 1}},
			symbols: []int32{only.symbol},
		}
	}

	for len(nodes) > 1 {
		sort.SliceStable(nodes, func(i, j int) bool {
			if nodes[i].freq != nodes[j].freq {
				return nodes[i].freq < nodes[j].freq
			}
			return nodes[i].minLeaf < nodes[j].minLeaf
		})
		a, b := nodes[0], nodes[1]
		merged := &heapNode{freq: a.freq + b.freq, left: a, right: b, minLeaf: minInt32(a.minLeaf, b.minLeaf)}
		nodes = append(nodes[2:], merged)
	}

	lengths := make(map[int32]uint8, len(symbols))
	var walk func(n *heapNode, depth uint8)
	walk = func(n *heapNode, depth uint8) {
		if n.isLeaf {
			if depth == 0 {
				depth = 1
			}
			lengths[n.symbol] = depth
			return
		}
		walk(n.left, depth+1)
		walk(n.right, depth+1)
	}
	walk(nodes[0], 0)

	return canonicalize(symbols, lengths)
}

// canonicalize assigns canonical codes given per-symbol code lengths:
// symbols are ordered by (length, symbol value ascending), and codes are
// assigned consecutively starting at 0, left-shifted whenever length
// increases. This is the standard canonical-Huffman construction and is
// what makes Table serialization deterministic and order-independent of
// the merge tree shape.
func canonicalize(symbols []int32, lengths map[int32]uint8) *Table {
	ordered := append([]int32(nil), symbols...)
	sort.Slice(ordered, func(i, j int) bool {
		li, lj := lengths[ordered[i]], lengths[ordered[j]]
		if li != lj {
			return li < lj
		}
		return ordered[i] < ordered[j]
	})

	codes := make(map[int32]Code, len(ordered))
	var code uint32
	prevLen := uint8(0)
	for _, s := range ordered {
		l := lengths[s]
		code <<= (l - prevLen)
		codes[s] = Code{Bits: code, Length: l}
		code++
		prevLen = l
	}
	return &Table{codes: codes, symbols: ordered}
}

func minInt32(a, b int32) int32 {
	if a < b {
		return a
	}
	return b
}
