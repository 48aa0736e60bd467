// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package blockio

import (
	"bytes"
	"io"

	"github.com/dsnet/compress/bzip2"

	"github.com/boilerbio/boiler/boilerr"
)

// bzip2Codec wraps github.com/dsnet/compress/bzip2. The standard library's
// compress/bzip2 (used read-only elsewhere in the example pack, e.g.
// elliotnunn-BeHierarchic/probe.go) has no writer; dsnet/compress is the
// standard ecosystem choice with a working bzip2.Writer, named per the
// spec's "bzip2" compressMethod option.
type bzip2Codec struct{}

func newBzip2Codec() Codec { return bzip2Codec{} }

func (bzip2Codec) Name() Method { return MethodBzip2 }

func (bzip2Codec) Compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := bzip2.NewWriter(&buf, &bzip2.WriterConfig{Level: bzip2.DefaultCompression})
	if err != nil {
		return nil, boilerr.E(boilerr.KindCodecError, err, "blockio: bzip2 writer")
	}
	if _, err := w.Write(data); err != nil {
		return nil, boilerr.E(boilerr.KindCodecError, err, "blockio: bzip2 write")
	}
	if err := w.Close(); err != nil {
		return nil, boilerr.E(boilerr.KindCodecError, err, "blockio: bzip2 close")
	}
	return buf.Bytes(), nil
}

func (bzip2Codec) Decompress(data []byte) ([]byte, error) {
	r, err := bzip2.NewReader(bytes.NewReader(data), nil)
	if err != nil {
		return nil, boilerr.E(boilerr.KindCodecError, err, "blockio: bzip2 reader")
	}
	defer r.Close()
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, boilerr.E(boilerr.KindCodecError, err, "blockio: bzip2 read")
	}
	return out, nil
}
