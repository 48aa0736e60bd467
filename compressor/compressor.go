// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package compressor wires the ingest, junction, unspliced and archive
// packages together into the single-threaded, blocking top-level call spec
// §5 describes: read one SAM stream, aggregate reads against the derived
// exon axis, and write one archive.
package compressor

import (
	"io"
	"os"

	"v.io/x/lib/vlog"

	"github.com/boilerbio/boiler/archive"
	"github.com/boilerbio/boiler/boilerr"
	"github.com/boilerbio/boiler/genome"
	"github.com/boilerbio/boiler/ingest"
	"github.com/boilerbio/boiler/junction"
	"github.com/boilerbio/boiler/unspliced"
)

// Options configures one Compress call. ArchiveOptions controls the output
// archive's format; everything else controls how the input is read.
type Options struct {
	ArchiveOptions archive.Options
}

// Compress reads the SAM file at samPath, aggregates it into junctions and
// unspliced NH groups, and writes the resulting archive to outPath. It runs
// single-threaded and blocking: spec §5 scopes out any sharding or
// parallel-worker pipeline, since the original operates one chromosome
// region at a time by construction.
func Compress(samPath, outPath string, opts Options) (err error) {
	in, err := os.Open(samPath)
	if err != nil {
		return boilerr.E(boilerr.KindIOError, err, "compressor: open %s", samPath)
	}
	defer in.Close()

	agg, err := ingest.Parse(in)
	if err != nil {
		return err
	}

	out, err := os.Create(outPath)
	if err != nil {
		return boilerr.E(boilerr.KindIOError, err, "compressor: create %s", outPath)
	}
	defer func() {
		if cerr := out.Close(); err == nil {
			err = boilerr.E(boilerr.KindIOError, cerr, "compressor: close %s", outPath)
		}
	}()

	archiveIn, err := aggregate(agg)
	if err != nil {
		return err
	}

	if opts.ArchiveOptions.Binary {
		if err := archive.Write(out, archiveIn, opts.ArchiveOptions); err != nil {
			return err
		}
	} else {
		if err := archive.WriteText(out, archiveIn); err != nil {
			return err
		}
	}
	vlog.VI(1).Infof("compressor: wrote %s from %s", outPath, samPath)
	return nil
}

// aggregate runs the junction and unspliced builders over agg's reads, spec
// §4.2-§4.4: splice junctions are keyed by exon-id tuple, strand, and NH;
// unspliced reads are grouped by NH and folded into one RLE coverage vector
// per group, fed in reverse input order (spec §4.4's documented quirk of
// the original implementation, preserved here so that each group's
// ExonReads lists come out in decreasing read-index order; the archive
// stores neither those lists nor anything that depends on their order).
func aggregate(agg genome.Aggregator) (archive.Input, error) {
	exons := agg.Exons()
	if err := exons.Validate(); err != nil {
		return archive.Input{}, boilerr.E(boilerr.KindMalformedInput, err, "compressor: exon axis")
	}

	jb := junction.NewBuilder(exons)
	for _, r := range agg.Spliced() {
		if err := jb.Add(r); err != nil {
			return archive.Input{}, err
		}
	}

	unsplicedReads := agg.Unspliced()
	ub := unspliced.NewBuilder(exons)
	for i := len(unsplicedReads) - 1; i >= 0; i-- {
		if err := ub.Add(int32(i), unsplicedReads[i]); err != nil {
			return archive.Input{}, err
		}
	}

	return archive.Input{
		Chromosomes: agg.Chromosomes(),
		Exons:       exons,
		Junctions:   jb.Sorted(),
		Groups:      ub.Finalize(unsplicedReads),
	}, nil
}

// CompressReader is Compress's stream-oriented counterpart, for callers
// that already hold an open SAM reader and an output sink (e.g. tests, or a
// caller piping stdin to stdout).
func CompressReader(r io.Reader, w io.Writer, opts Options) error {
	agg, err := ingest.Parse(r)
	if err != nil {
		return err
	}
	archiveIn, err := aggregate(agg)
	if err != nil {
		return err
	}
	if opts.ArchiveOptions.Binary {
		return archive.Write(w, archiveIn, opts.ArchiveOptions)
	}
	return archive.WriteText(w, archiveIn)
}
