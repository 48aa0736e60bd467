// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package archive

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/boilerbio/boiler/boilerr"
)

// Every scalar in the archive format is little-endian, per spec §6. Counts,
// lengths and positions are unsigned; coverage run values and Huffman
// symbols are signed int32 (putInt32/getInt32).

func putUint8(w io.Writer, v uint8) error {
	_, err := w.Write([]byte{v})
	return wrapIOErr(err, "write u8")
}

func putUint16(w io.Writer, v uint16) error {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	_, err := w.Write(b[:])
	return wrapIOErr(err, "write u16")
}

func putUint32(w io.Writer, v uint32) error {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	_, err := w.Write(b[:])
	return wrapIOErr(err, "write u32")
}

func putInt32(w io.Writer, v int32) error { return putUint32(w, uint32(v)) }

func wrapIOErr(err error, what string) error {
	if err == nil {
		return nil
	}
	return boilerr.E(boilerr.KindIOError, err, "archive: %s", what)
}

// byteReader is the minimal surface the decode helpers below need; both
// bytes.Reader and a bufio.Reader over an os.File satisfy it.
type byteReader interface {
	io.Reader
	ReadByte() (byte, error)
}

func getUint8(r byteReader) (uint8, error) {
	b, err := r.ReadByte()
	if err != nil {
		return 0, wrapIOErr(err, "read u8")
	}
	return b, nil
}

func getUint16(r byteReader) (uint16, error) {
	var b [2]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, wrapIOErr(err, "read u16")
	}
	return binary.LittleEndian.Uint16(b[:]), nil
}

func getUint32(r byteReader) (uint32, error) {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, wrapIOErr(err, "read u32")
	}
	return binary.LittleEndian.Uint32(b[:]), nil
}

func getInt32(r byteReader) (int32, error) {
	v, err := getUint32(r)
	return int32(v), err
}

// findNumBytes returns the smallest power-of-two byte width (1, 2, 4, or 8)
// that can represent maxVal, mirroring the source's binaryIO.findNumBytes.
func findNumBytes(maxVal uint64) uint8 {
	switch {
	case maxVal <= 0xFF:
		return 1
	case maxVal <= 0xFFFF:
		return 2
	case maxVal <= 0xFFFFFFFF:
		return 4
	default:
		return 8
	}
}

func putUintWidth(w io.Writer, width uint8, v uint64) error {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	_, err := w.Write(b[:width])
	return wrapIOErr(err, fmt.Sprintf("write uint width %d", width))
}

func getUintWidth(r byteReader, width uint8) (uint64, error) {
	var b [8]byte
	if _, err := io.ReadFull(r, b[:width]); err != nil {
		return 0, wrapIOErr(err, fmt.Sprintf("read uint width %d", width))
	}
	return binary.LittleEndian.Uint64(b[:]), nil
}
