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
	"encoding/binary"

	"github.com/pkg/errors"
)

// MaxFrameSize is the largest framed-transport frame the proxy accepts.
const MaxFrameSize = 16 * 1024 * 1024

// Transport is the outer framing codec. Decode methods return false when
// the buffer does not yet hold enough bytes; they consume nothing in that
// case so the caller can retry once more data arrives.
type Transport interface {
	// Type returns the transport type.
	Type() TransportType

	// DecodeFrameStart consumes a frame header, recording frame
	// attributes in meta.
	DecodeFrameStart(buf *Buffer, meta *MessageMetadata) (bool, error)

	// DecodeFrameEnd consumes a frame trailer.
	DecodeFrameEnd(buf *Buffer) (bool, error)

	// EncodeFrame frames payload into out, draining payload.
	EncodeFrame(out *Buffer, meta *MessageMetadata, payload *Buffer) error
}

// NewTransport returns a fresh transport codec of the given type.
func NewTransport(t TransportType) Transport {
	switch t {
	case TransportTypeFramed:
		return NewFramedTransport()
	case TransportTypeUnframed:
		return NewUnframedTransport()
	}
	panic("thrift: unknown transport type")
}

type framedTransport struct{}

// NewFramedTransport returns the 4-byte length-prefixed framing codec.
func NewFramedTransport() Transport { return framedTransport{} }

func (framedTransport) Type() TransportType { return TransportTypeFramed }

func (framedTransport) DecodeFrameStart(buf *Buffer, meta *MessageMetadata) (bool, error) {
	header, ok := buf.PeekBytes(0, 4)
	if !ok {
		return false, nil
	}
	size := int32(binary.BigEndian.Uint32(header))
	if size <= 0 || size > MaxFrameSize {
		return false, errors.Errorf("invalid thrift framed transport frame size %d", size)
	}
	meta.SetFrameSize(uint32(size))
	buf.Drain(4)
	return true, nil
}

func (framedTransport) DecodeFrameEnd(buf *Buffer) (bool, error) {
	// Framed messages have no trailer.
	return true, nil
}

func (framedTransport) EncodeFrame(out *Buffer, meta *MessageMetadata, payload *Buffer) error {
	size := payload.Len()
	if size == 0 || size > MaxFrameSize {
		return errors.Errorf("invalid thrift framed transport frame size %d", size)
	}
	out.WriteUint32(uint32(size))
	out.MoveFrom(payload)
	return nil
}

type unframedTransport struct{}

// NewUnframedTransport returns the no-op framing codec: messages follow one
// another on the stream with no length prefix.
func NewUnframedTransport() Transport { return unframedTransport{} }

func (unframedTransport) Type() TransportType { return TransportTypeUnframed }

func (unframedTransport) DecodeFrameStart(buf *Buffer, meta *MessageMetadata) (bool, error) {
	return true, nil
}

func (unframedTransport) DecodeFrameEnd(buf *Buffer) (bool, error) {
	return true, nil
}

func (unframedTransport) EncodeFrame(out *Buffer, meta *MessageMetadata, payload *Buffer) error {
	out.MoveFrom(payload)
	return nil
}
