// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package archive implements the on-disk binary layout (spec §3, §6) and
// the two-pass assembler (spec §4.7): a fixed plaintext header (chromosome
// table + exon vector), a compressed index block, and a compressed body of
// junction chunks followed by unspliced NH groups.
//
// The split between an index region and a data region, and the discipline
// of writing the data first and the index second once lengths are known,
// is grounded on github.com/grailbio/bio/encoding/pam (its *.index files
// vs *.<field> data files) and on the original compress.py, which opens
// the output file twice: once to stream the body, once more to prepend the
// header and index bytes (spec §9, "Two-pass output file").
package archive

import "github.com/boilerbio/boiler/blockio"

// Default chunking and section parameters, spec §6 Configuration.
const (
	DefaultSectionLen       = 100000
	DefaultExonChunkSize    = 100
	DefaultJunctionChunkSize = 50
)

// Options configures one compress call, spec §6 Configuration.
type Options struct {
	// Binary selects the binary archive format (true) or the legacy text
	// format (false).
	Binary bool
	// Huffman enables Huffman encoding of coverage difference streams.
	// Only meaningful when Binary is true.
	Huffman bool
	// CompressMethod selects the block codec for the binary format.
	CompressMethod blockio.Method
	// SectionLen, ExonChunkSize, JunctionChunkSize override the defaults
	// above when nonzero.
	SectionLen       uint32
	ExonChunkSize    uint32
	JunctionChunkSize uint32
}

// withDefaults returns a copy of o with zero fields replaced by their
// documented defaults.
func (o Options) withDefaults() Options {
	if o.CompressMethod == "" {
		o.CompressMethod = blockio.MethodDeflate
	}
	if o.SectionLen == 0 {
		o.SectionLen = DefaultSectionLen
	}
	if o.ExonChunkSize == 0 {
		o.ExonChunkSize = DefaultExonChunkSize
	}
	if o.JunctionChunkSize == 0 {
		o.JunctionChunkSize = DefaultJunctionChunkSize
	}
	return o
}
