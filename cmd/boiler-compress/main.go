// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

/*
boiler-compress reads a SAM alignment stream and writes a boiler archive:
either the compact binary format (spec §3-§4.7) or the legacy tab-delimited
text format.
*/
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/grailbio/base/grail"
	"v.io/x/lib/vlog"

	"github.com/boilerbio/boiler/archive"
	"github.com/boilerbio/boiler/blockio"
	"github.com/boilerbio/boiler/compressor"
)

var (
	textFormat        = flag.Bool("text", false, "Write the legacy tab-delimited text format instead of the binary archive")
	huffman           = flag.Bool("huffman", false, "Huffman-code coverage difference streams (binary format only)")
	compressMethod    = flag.String("compress", string(blockio.MethodDeflate), "Block compressor for the binary format: deflate, lzma, or bzip2")
	sectionLen        = flag.Uint("section-len", archive.DefaultSectionLen, "Genome positions per unspliced coverage breakpoint section")
	exonChunkSize     = flag.Uint("exon-chunk-size", archive.DefaultExonChunkSize, "Exons per histogram chunk")
	junctionChunkSize = flag.Uint("junction-chunk-size", archive.DefaultJunctionChunkSize, "Junctions per chunk")
)

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: %s [OPTIONS] input.sam output.boil\n", os.Args[0])
	flag.PrintDefaults()
}

func main() {
	flag.Usage = usage
	shutdown := grail.Init()
	defer shutdown()

	if flag.NArg() != 2 {
		vlog.Fatalf("boiler-compress: expected input.sam and output.boil, got %d positional args", flag.NArg())
	}
	samPath, outPath := flag.Arg(0), flag.Arg(1)

	opts := compressor.Options{
		ArchiveOptions: archive.Options{
			Binary:            !*textFormat,
			Huffman:           *huffman,
			CompressMethod:    blockio.Method(*compressMethod),
			SectionLen:        uint32(*sectionLen),
			ExonChunkSize:     uint32(*exonChunkSize),
			JunctionChunkSize: uint32(*junctionChunkSize),
		},
	}

	if err := compressor.Compress(samPath, outPath, opts); err != nil {
		vlog.Fatalf("boiler-compress: %v", err)
	}
}
