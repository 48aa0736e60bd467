// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package boilerr defines the error taxonomy shared by the compression core:
// malformed per-line input that can be skipped, and fatal errors that must
// abort the current compress call and leave no usable archive.
package boilerr

import (
	"errors"
	"fmt"

	pkgerrors "github.com/pkg/errors"
)

// Kind classifies an error raised anywhere in the core. The zero value is
// KindUnknown, a sentinel that should never escape a package boundary.
type Kind uint8

const (
	// KindUnknown is a sentinel; seeing it escape a call is a bug.
	KindUnknown Kind = iota
	// KindMalformedInput marks a per-line SAM/CIGAR/tag problem. Recovered
	// locally: the offending line is logged and skipped, compression
	// continues.
	KindMalformedInput
	// KindRangeOutOfBounds marks an RLE update addressed outside the
	// logical vector. Fatal.
	KindRangeOutOfBounds
	// KindIOError marks a file open/read/write/truncate failure. Fatal;
	// caller must delete the partial output.
	KindIOError
	// KindCodecError marks a block compressor refusing input. Fatal.
	KindCodecError
)

var kindNames = [...]string{"unknown", "malformed input", "range out of bounds", "io error", "codec error"}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", k)
}

type wrapped struct {
	kind Kind
	err  error
}

func (w *wrapped) Error() string { return fmt.Sprintf("%s: %v", w.kind, w.err) }
func (w *wrapped) Cause() error  { return w.err }
func (w *wrapped) Unwrap() error { return w.err }

// E wraps err with the given kind, annotated with a formatted message. It is
// a no-op (returns nil) if err is nil.
func E(kind Kind, err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return &wrapped{kind: kind, err: pkgerrors.Wrapf(err, format, args...)}
}

// New creates a new error of the given kind.
func New(kind Kind, format string, args ...interface{}) error {
	return &wrapped{kind: kind, err: fmt.Errorf(format, args...)}
}

// KindOf extracts the Kind from err, or KindUnknown if err was not produced
// by this package.
func KindOf(err error) Kind {
	var w *wrapped
	if errors.As(err, &w) {
		return w.kind
	}
	return KindUnknown
}

// Is reports whether err (or something it wraps) carries the given kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}
