// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package blockio_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/boilerbio/boiler/blockio"
	"github.com/boilerbio/boiler/rle"
)

func TestCodecRoundTrip(t *testing.T) {
	data := bytes.Repeat([]byte("coverage-run-length-bytes"), 100)
	for _, m := range []blockio.Method{blockio.MethodDeflate, blockio.MethodLZMA, blockio.MethodBzip2, blockio.MethodSnappy} {
		t.Run(string(m), func(t *testing.T) {
			codec, err := blockio.NewCodec(m)
			require.NoError(t, err)
			compressed, err := codec.Compress(data)
			require.NoError(t, err)
			assert.NotEmpty(t, compressed)
			decompressed, err := codec.Decompress(compressed)
			require.NoError(t, err)
			assert.Equal(t, data, decompressed)
		})
	}
}

func TestUnknownMethod(t *testing.T) {
	_, err := blockio.NewCodec("xyzzy")
	require.Error(t, err)
}

func TestChunkWriterRecordsLengths(t *testing.T) {
	var buf bytes.Buffer
	codec, err := blockio.NewCodec(blockio.MethodDeflate)
	require.NoError(t, err)
	cw := blockio.NewChunkWriter(&buf, codec)

	n1, err := cw.Write([]byte("hello"))
	require.NoError(t, err)
	n2, err := cw.Write([]byte("world, this is a slightly longer chunk"))
	require.NoError(t, err)

	assert.Equal(t, []uint32{n1, n2}, cw.Lens)
	assert.EqualValues(t, n1+n2, buf.Len())
}

func TestIsZeroSegment(t *testing.T) {
	assert.True(t, blockio.IsZeroSegment(rle.Vector{{Value: 0, Length: 100000}}))
	assert.False(t, blockio.IsZeroSegment(rle.Vector{{Value: 0, Length: 50}, {Value: 1, Length: 50}}))
	assert.False(t, blockio.IsZeroSegment(rle.Vector{{Value: 2, Length: 100}}))
}

func TestBreakpoints(t *testing.T) {
	assert.Equal(t, []uint32{0, 100000, 200000}, blockio.Breakpoints(300000, 100000))
	assert.Equal(t, []uint32{0}, blockio.Breakpoints(50, 100000))
}
