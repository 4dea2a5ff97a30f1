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

// The apache thrift library is the reference codec: bytes produced by it
// must decode with the native codecs and vice versa.

func apacheBinaryBytes(t *testing.T, encode func(p apachethrift.TProtocol) error) []byte {
	mem := apachethrift.NewTMemoryBuffer()
	p := apachethrift.NewTBinaryProtocol(mem, false, true)
	require.NoError(t, encode(p))
	require.NoError(t, p.Flush(context.Background()))
	return mem.Bytes()
}

func apacheCompactBytes(t *testing.T, encode func(p apachethrift.TProtocol) error) []byte {
	mem := apachethrift.NewTMemoryBuffer()
	p := apachethrift.NewTCompactProtocol(mem)
	require.NoError(t, encode(p))
	require.NoError(t, p.Flush(context.Background()))
	return mem.Bytes()
}

func apacheBinaryReader(data []byte) apachethrift.TProtocol {
	mem := apachethrift.NewTMemoryBuffer()
	mem.Write(data) // nolint: errcheck
	return apachethrift.NewTBinaryProtocol(mem, false, true)
}

func apacheCompactReader(data []byte) apachethrift.TProtocol {
	mem := apachethrift.NewTMemoryBuffer()
	mem.Write(data) // nolint: errcheck
	return apachethrift.NewTCompactProtocol(mem)
}

// encodePingCall writes a two-field call message used across codec tests.
func encodePingCall(p apachethrift.TProtocol) error {
	if err := p.WriteMessageBegin("ping", apachethrift.CALL, 7); err != nil {
		return err
	}
	if err := p.WriteStructBegin("ping_args"); err != nil {
		return err
	}
	if err := p.WriteFieldBegin("id", apachethrift.I32, 1); err != nil {
		return err
	}
	if err := p.WriteI32(42); err != nil {
		return err
	}
	if err := p.WriteFieldEnd(); err != nil {
		return err
	}
	if err := p.WriteFieldBegin("name", apachethrift.STRING, 2); err != nil {
		return err
	}
	if err := p.WriteString("hello"); err != nil {
		return err
	}
	if err := p.WriteFieldEnd(); err != nil {
		return err
	}
	if err := p.WriteFieldStop(); err != nil {
		return err
	}
	if err := p.WriteStructEnd(); err != nil {
		return err
	}
	return p.WriteMessageEnd()
}
