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

import "encoding/binary"

// Buffer is a byte queue with move semantics. The incremental codecs peek
// at queued bytes without consuming them and drain only once a complete
// element has been parsed, which keeps a partial parse restartable after
// more bytes arrive. MoveFrom transfers ownership of the source's bytes.
type Buffer struct {
	data []byte
}

// NewBuffer returns an empty buffer.
func NewBuffer() *Buffer {
	return &Buffer{}
}

// NewBufferBytes returns a buffer owning b.
func NewBufferBytes(b []byte) *Buffer {
	return &Buffer{data: b}
}

// Len returns the number of queued bytes.
func (b *Buffer) Len() int { return len(b.data) }

// Bytes returns a view of the queued bytes, valid until the next mutation.
func (b *Buffer) Bytes() []byte { return b.data }

// Write appends p.
func (b *Buffer) Write(p []byte) {
	b.data = append(b.data, p...)
}

// WriteByte appends a single byte.
func (b *Buffer) WriteByte(c byte) {
	b.data = append(b.data, c)
}

// WriteString appends s.
func (b *Buffer) WriteString(s string) {
	b.data = append(b.data, s...)
}

// WriteUint16 appends v big-endian.
func (b *Buffer) WriteUint16(v uint16) {
	var scratch [2]byte
	binary.BigEndian.PutUint16(scratch[:], v)
	b.data = append(b.data, scratch[:]...)
}

// WriteUint32 appends v big-endian.
func (b *Buffer) WriteUint32(v uint32) {
	var scratch [4]byte
	binary.BigEndian.PutUint32(scratch[:], v)
	b.data = append(b.data, scratch[:]...)
}

// WriteUint64 appends v big-endian.
func (b *Buffer) WriteUint64(v uint64) {
	var scratch [8]byte
	binary.BigEndian.PutUint64(scratch[:], v)
	b.data = append(b.data, scratch[:]...)
}

// PeekByte returns the byte at offset without consuming it.
func (b *Buffer) PeekByte(offset int) (byte, bool) {
	if offset >= len(b.data) {
		return 0, false
	}
	return b.data[offset], true
}

// PeekBytes returns a view of n bytes at offset without consuming them.
func (b *Buffer) PeekBytes(offset, n int) ([]byte, bool) {
	if offset+n > len(b.data) {
		return nil, false
	}
	return b.data[offset : offset+n], true
}

// Drain discards the first n queued bytes.
func (b *Buffer) Drain(n int) {
	if n > len(b.data) {
		panic("thrift: buffer drain past end")
	}
	b.data = b.data[n:]
	if len(b.data) == 0 {
		b.data = b.data[:0]
	}
}

// Clear discards all queued bytes.
func (b *Buffer) Clear() {
	b.data = b.data[:0]
}

// MoveFrom drains all of other's bytes into b. Other is left empty.
func (b *Buffer) MoveFrom(other *Buffer) {
	if len(b.data) == 0 {
		b.data, other.data = other.data, b.data[:0]
		return
	}
	b.data = append(b.data, other.data...)
	other.data = other.data[:0]
}
