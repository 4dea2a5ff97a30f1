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
	"testing"

	apachethrift "github.com/apache/thrift/lib/go/thrift"
	"github.com/stretchr/testify/require"
)

func TestApplicationExceptionEncodesApacheReadableReply(t *testing.T) {
	meta := NewMessageMetadata()
	meta.SetMethodName("ping")
	meta.SetSequenceID(7)

	buf := NewBuffer()
	ex := NewApplicationException(AppExceptionProtocolError, "bad bytes")
	ex.Encode(meta, NewBinaryProtocol(), buf)

	p := apacheBinaryReader(buf.Bytes())
	name, typeID, seqID, err := p.ReadMessageBegin()
	require.NoError(t, err)
	require.Equal(t, "ping", name)
	require.Equal(t, apachethrift.EXCEPTION, typeID)
	require.Equal(t, int32(7), seqID)

	appErr := apachethrift.NewTApplicationException(0, "")
	err = appErr.Read(p)
	require.NoError(t, err)
	require.Equal(t, "bad bytes", appErr.Error())
	require.Equal(t, int32(AppExceptionProtocolError), appErr.TypeId())
	require.NoError(t, p.ReadMessageEnd())
}

func TestApplicationExceptionEncodeWithEmptyMetadata(t *testing.T) {
	buf := NewBuffer()
	ex := NewApplicationException(AppExceptionUnknown, "boom")
	ex.Encode(NewMessageMetadata(), NewBinaryProtocol(), buf)

	p := apacheBinaryReader(buf.Bytes())
	name, typeID, seqID, err := p.ReadMessageBegin()
	require.NoError(t, err)
	require.Equal(t, "", name)
	require.Equal(t, apachethrift.EXCEPTION, typeID)
	require.Equal(t, int32(0), seqID)
}
