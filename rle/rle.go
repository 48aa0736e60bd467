// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package rle implements the run-length-encoded coverage vector used
// throughout boiler: an ordered sequence of (value, run length) cells
// supporting a dense-vector builder and an in-place range-update operator.
//
// The update operator is the hot path of the compressor (it runs once per
// covered base range, per read) so it is written as in-place slice splicing
// rather than a persistent or recursive structure: see Update.
package rle

import (
	"fmt"

	"github.com/boilerbio/boiler/boilerr"
)

// Run is one run-length cell: Value repeated Length times.
type Run struct {
	Value  int32
	Length uint32
}

// Vector is an ordered sequence of runs representing a dense integer vector.
// Adjacent runs are not required to have distinct values: Update does not
// coalesce, so a Vector may contain e.g. [(0,10),(0,5)]. Callers must expand
// rather than assume coalescing.
type Vector []Run

// Len returns the length of the logical dense vector represented by v.
func (v Vector) Len() uint32 {
	var n uint32
	for _, r := range v {
		n += r.Length
	}
	return n
}

// BuildFromDense returns the run-length encoding of the dense vector d,
// coalescing equal adjacent values. sum(run.Length) == len(d) always holds.
func BuildFromDense(d []int32) Vector {
	if len(d) == 0 {
		return nil
	}
	out := make(Vector, 0, len(d)/4+1)
	val := d[0]
	length := uint32(0)
	for _, v := range d {
		if v == val {
			length++
			continue
		}
		out = append(out, Run{Value: val, Length: length})
		val = v
		length = 1
	}
	out = append(out, Run{Value: val, Length: length})
	return out
}

// Expand returns the dense vector represented by v. Intended for tests and
// small vectors only; production code should avoid densifying whole
// chromosomes.
func Expand(v Vector) []int32 {
	out := make([]int32, 0, v.Len())
	for _, r := range v {
		for i := uint32(0); i < r.Length; i++ {
			out = append(out, r.Value)
		}
	}
	return out
}

// Update adds delta to positions [start, start+length) of the logical
// vector that v represents, clamping every updated value at 0 from below.
// It returns the updated Vector (the backing array may be reallocated, so
// callers must use the return value).
//
// The implementation walks v in two passes:
//  1. Advance past whole runs until the run containing "start" is found;
//     if start falls strictly inside that run, split it so that the
//     remaining length begins exactly at start.
//  2. Consume whole runs covered by the remaining length, adding delta
//     (clamped at 0) to each; if the requested range ends strictly inside a
//     run, split that run so only the covered prefix is touched.
//
// Runs are never coalesced after a split or an update: a run may end up
// adjacent to another run with an equal value. Callers that need a minimal
// representation must coalesce separately (see BuildFromDense for that, or
// write a dedicated Coalesce pass, none is needed by boiler today since
// the on-disk RLE format tolerates non-coalesced runs, per spec).
func Update(v Vector, start, length uint32, delta int32) (Vector, error) {
	total := v.Len()
	if length == 0 {
		return v, nil
	}
	end, overflow := addOverflows(start, length)
	if overflow || end > total {
		return nil, boilerr.New(boilerr.KindRangeOutOfBounds,
			"rle: update [%d, %d) out of bounds for vector of length %d", start, start+length, total)
	}

	i := 0
	pos := start
	for pos > 0 {
		if i >= len(v) {
			return nil, boilerr.New(boilerr.KindRangeOutOfBounds, "rle: start %d beyond vector", start)
		}
		if pos < v[i].Length {
			break
		}
		pos -= v[i].Length
		i++
	}
	if pos > 0 {
		// Split run i into [0,pos) and [pos,rest).
		r := v[i]
		head := Run{Value: r.Value, Length: pos}
		tail := Run{Value: r.Value, Length: r.Length - pos}
		v = spliceOne(v, i, head, tail)
		i++
	}

	remaining := length
	for remaining > 0 && remaining >= v[i].Length {
		v[i].Value = clampNonNegative(v[i].Value + delta)
		remaining -= v[i].Length
		i++
	}
	if remaining > 0 {
		r := v[i]
		head := Run{Value: clampNonNegative(r.Value + delta), Length: remaining}
		tail := Run{Value: r.Value, Length: r.Length - remaining}
		v = spliceOne(v, i, head, tail)
	}
	return v, nil
}

// spliceOne replaces v[i] with the two runs head, tail, shifting the tail of
// the slice over by one element.
func spliceOne(v Vector, i int, head, tail Run) Vector {
	v = append(v, Run{})
	copy(v[i+2:], v[i+1:])
	v[i] = head
	v[i+1] = tail
	return v
}

func clampNonNegative(v int32) int32 {
	if v < 0 {
		return 0
	}
	return v
}

func addOverflows(a, b uint32) (uint32, bool) {
	sum := a + b
	return sum, sum < a
}

func (r Run) String() string {
	return fmt.Sprintf("(%d,%d)", r.Value, r.Length)
}

// Slice returns the logical sub-vector covering [start, start+length) of
// v's dense representation, re-based to start at position 0. It is used to
// carve a genome-wide coverage Vector into the fixed breakpoint segments of
// spec §4.6 without densifying.
func Slice(v Vector, start, length uint32) (Vector, error) {
	total := v.Len()
	end, overflow := addOverflows(start, length)
	if overflow || end > total {
		return nil, boilerr.New(boilerr.KindRangeOutOfBounds,
			"rle: slice [%d, %d) out of bounds for vector of length %d", start, start+length, total)
	}
	if length == 0 {
		return nil, nil
	}

	var out Vector
	pos := uint32(0)
	remaining := length
	for _, r := range v {
		runStart := pos
		runEnd := pos + r.Length
		pos = runEnd
		if runEnd <= start {
			continue
		}
		if runStart >= start+length {
			break
		}
		// Overlap of [runStart, runEnd) with [start, start+length).
		lo := runStart
		if lo < start {
			lo = start
		}
		hi := runEnd
		if hi > start+length {
			hi = start + length
		}
		out = append(out, Run{Value: r.Value, Length: hi - lo})
		remaining -= hi - lo
		if remaining == 0 {
			break
		}
	}
	return out, nil
}
