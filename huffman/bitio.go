// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package huffman

// BitWriter packs Code values MSB-first into a byte slice, per spec §6
// ("code_bits_packed_msb_first").
type BitWriter struct {
	buf  []byte
	cur  byte
	nbit uint8
}

// WriteCode appends c's Length bits (MSB-first) to the stream.
func (w *BitWriter) WriteCode(c Code) {
	for i := int8(c.Length) - 1; i >= 0; i-- {
		bit := byte((c.Bits >> uint(i)) & 1)
		w.cur = (w.cur << 1) | bit
		w.nbit++
		if w.nbit == 8 {
			w.buf = append(w.buf, w.cur)
			w.cur = 0
			w.nbit = 0
		}
	}
}

// Bytes flushes any partial trailing byte (zero-padded in the low bits) and
// returns the packed stream.
func (w *BitWriter) Bytes() []byte {
	if w.nbit > 0 {
		w.cur <<= (8 - w.nbit)
		w.buf = append(w.buf, w.cur)
		w.cur = 0
		w.nbit = 0
	}
	return w.buf
}

// BitReader unpacks a BitWriter-produced MSB-first bit stream one code at a
// time, walking the canonical Table.
type BitReader struct {
	buf  []byte
	pos  int // bit position from the start of buf
}

// NewBitReader wraps buf for bit-at-a-time reading.
func NewBitReader(buf []byte) *BitReader { return &BitReader{buf: buf} }

func (r *BitReader) bit() (byte, bool) {
	byteIdx := r.pos / 8
	if byteIdx >= len(r.buf) {
		return 0, false
	}
	shift := 7 - uint(r.pos%8)
	b := (r.buf[byteIdx] >> shift) & 1
	r.pos++
	return b, true
}

// Bit reads a single bit from the stream, MSB-first within each byte. It is
// the building block ReadSymbol uses internally, exposed for callers (such
// as a fixed-length Huffman code read) that know the bit count up front
// instead of walking a Table.
func (r *BitReader) Bit() (byte, bool) { return r.bit() }

// ReadSymbol reads bits one at a time until they form a complete code in t,
// returning the decoded symbol. It returns false if the stream is exhausted
// mid-code (a malformed or truncated stream).
func (r *BitReader) ReadSymbol(t *Table) (int32, bool) {
	// Table does not retain the merge tree, only per-symbol canonical
	// codes, so decoding walks bit-by-bit building up a candidate code
	// and checks it against a length-indexed lookup built lazily here.
	// This is O(code length) per symbol, which is fine: coverage
	// difference streams are short-tailed (mostly 0/+-1) so codes stay
	// short under a canonical Huffman assignment.
	var bits uint32
	var length uint8
	for length < 32 {
		b, ok := r.bit()
		if !ok {
			return 0, false
		}
		bits = (bits << 1) | uint32(b)
		length++
		if sym, ok := t.lookup(bits, length); ok {
			return sym, true
		}
	}
	return 0, false
}

func (t *Table) lookup(bits uint32, length uint8) (int32, bool) {
	if t.byCode == nil {
		t.byCode = make(map[codeKey]int32, len(t.codes))
		for sym, c := range t.codes {
			t.byCode[codeKey{c.Bits, c.Length}] = sym
		}
	}
	sym, ok := t.byCode[codeKey{bits, length}]
	return sym, ok
}

type codeKey struct {
	bits   uint32
	length uint8
}
