// Copyright (c) 2019 Uber Technologies, Inc.
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.

package thrift

import (
	"context"
	"testing"

	apachethrift "github.com/apache/thrift/lib/go/thrift"
	"github.com/stretchr/testify/require"
)

func TestFramedTransportRoundTrip(t *testing.T) {
	transport := NewFramedTransport()

	payload := NewBufferBytes([]byte("payload bytes"))
	out := NewBuffer()
	meta := NewMessageMetadata()
	require.NoError(t, transport.EncodeFrame(out, meta, payload))
	require.Equal(t, 0, payload.Len())
	require.Equal(t, 4+len("payload bytes"), out.Len())

	decoded := NewMessageMetadata()
	ok, err := transport.DecodeFrameStart(out, decoded)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint32(len("payload bytes")), decoded.FrameSize())
	require.Equal(t, "payload bytes", string(out.Bytes()))

	ok, err = transport.DecodeFrameEnd(out)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestFramedTransportMatchesApacheFraming(t *testing.T) {
	mem := apachethrift.NewTMemoryBuffer()
	framed := apachethrift.NewTFramedTransport(mem)
	_, err := framed.Write([]byte("hello frame"))
	require.NoError(t, err)
	require.NoError(t, framed.Flush(context.Background()))

	buf := NewBufferBytes(mem.Bytes())
	meta := NewMessageMetadata()
	transport := NewFramedTransport()
	ok, err := transport.DecodeFrameStart(buf, meta)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint32(len("hello frame")), meta.FrameSize())
	require.Equal(t, "hello frame", string(buf.Bytes()))
}

func TestFramedTransportUnderflow(t *testing.T) {
	transport := NewFramedTransport()
	buf := NewBufferBytes([]byte{0x00, 0x00, 0x01})
	meta := NewMessageMetadata()
	ok, err := transport.DecodeFrameStart(buf, meta)
	require.NoError(t, err)
	require.False(t, ok)
	require.Equal(t, 3, buf.Len())
}

func TestFramedTransportRejectsBadSizes(t *testing.T) {
	transport := NewFramedTransport()

	buf := NewBufferBytes([]byte{0x00, 0x00, 0x00, 0x00})
	_, err := transport.DecodeFrameStart(buf, NewMessageMetadata())
	require.Error(t, err)

	buf = NewBufferBytes([]byte{0x7f, 0xff, 0xff, 0xff})
	_, err = transport.DecodeFrameStart(buf, NewMessageMetadata())
	require.Error(t, err)
}

func TestUnframedTransportPassthrough(t *testing.T) {
	transport := NewUnframedTransport()

	payload := NewBufferBytes([]byte("raw"))
	out := NewBuffer()
	require.NoError(t, transport.EncodeFrame(out, NewMessageMetadata(), payload))
	require.Equal(t, "raw", string(out.Bytes()))

	ok, err := transport.DecodeFrameStart(out, NewMessageMetadata())
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = transport.DecodeFrameEnd(out)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "raw", string(out.Bytes()))
}
