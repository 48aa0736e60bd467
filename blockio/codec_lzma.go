// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package blockio

import (
	"bytes"
	"io"

	"github.com/ulikunitz/xz/lzma"

	"github.com/boilerbio/boiler/boilerr"
)

// lzmaCodec wraps github.com/ulikunitz/xz/lzma. No write-capable lzma/xz
// library appears in the example pack (the pack's therootcompany/xz is
// decode-only, per its use in elliotnunn-BeHierarchic); this is the
// standard Go ecosystem choice for an lzma encoder, named per the spec's
// "lzma" compressMethod option.
type lzmaCodec struct{}

func newLZMACodec() Codec { return lzmaCodec{} }

func (lzmaCodec) Name() Method { return MethodLZMA }

func (lzmaCodec) Compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := lzma.NewWriter(&buf)
	if err != nil {
		return nil, boilerr.E(boilerr.KindCodecError, err, "blockio: lzma writer")
	}
	if _, err := w.Write(data); err != nil {
		return nil, boilerr.E(boilerr.KindCodecError, err, "blockio: lzma write")
	}
	if err := w.Close(); err != nil {
		return nil, boilerr.E(boilerr.KindCodecError, err, "blockio: lzma close")
	}
	return buf.Bytes(), nil
}

func (lzmaCodec) Decompress(data []byte) ([]byte, error) {
	r, err := lzma.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, boilerr.E(boilerr.KindCodecError, err, "blockio: lzma reader")
	}
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, boilerr.E(boilerr.KindCodecError, err, "blockio: lzma read")
	}
	return out, nil
}
