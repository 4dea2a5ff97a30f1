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

// Package thrift implements the transport and protocol layers the proxy
// speaks on the wire: framed and unframed transports, binary and compact
// protocols, and an incremental event-driven decoder over both.
package thrift

import "fmt"

// MessageType is the type of a Thrift message envelope.
type MessageType int32

// Valid Thrift message types.
const (
	MessageTypeCall      MessageType = 1
	MessageTypeReply     MessageType = 2
	MessageTypeException MessageType = 3
	MessageTypeOneway    MessageType = 4

	messageTypeLast = MessageTypeOneway
)

func (t MessageType) String() string {
	switch t {
	case MessageTypeCall:
		return "call"
	case MessageTypeReply:
		return "reply"
	case MessageTypeException:
		return "exception"
	case MessageTypeOneway:
		return "oneway"
	}
	return fmt.Sprintf("unknown(%d)", int32(t))
}

// FieldType is the wire type of a struct field or container element.
type FieldType int8

// Valid Thrift field types.
const (
	FieldTypeStop   FieldType = 0
	FieldTypeVoid   FieldType = 1
	FieldTypeBool   FieldType = 2
	FieldTypeByte   FieldType = 3
	FieldTypeDouble FieldType = 4
	FieldTypeI16    FieldType = 6
	FieldTypeI32    FieldType = 8
	FieldTypeI64    FieldType = 10
	FieldTypeString FieldType = 11
	FieldTypeStruct FieldType = 12
	FieldTypeMap    FieldType = 13
	FieldTypeSet    FieldType = 14
	FieldTypeList   FieldType = 15
)

// TransportType selects a transport codec.
type TransportType int

// Supported transports.
const (
	TransportTypeFramed TransportType = iota
	TransportTypeUnframed
)

func (t TransportType) String() string {
	switch t {
	case TransportTypeFramed:
		return "framed"
	case TransportTypeUnframed:
		return "unframed"
	}
	return fmt.Sprintf("unknown(%d)", int(t))
}

// ParseTransportType parses a transport type from its string name.
func ParseTransportType(s string) (TransportType, error) {
	switch s {
	case "framed":
		return TransportTypeFramed, nil
	case "unframed":
		return TransportTypeUnframed, nil
	}
	return 0, fmt.Errorf("unknown transport type %q", s)
}

// ProtocolType selects a protocol codec.
type ProtocolType int

// Supported protocols.
const (
	ProtocolTypeBinary ProtocolType = iota
	ProtocolTypeCompact
)

func (t ProtocolType) String() string {
	switch t {
	case ProtocolTypeBinary:
		return "binary"
	case ProtocolTypeCompact:
		return "compact"
	}
	return fmt.Sprintf("unknown(%d)", int(t))
}

// ParseProtocolType parses a protocol type from its string name.
func ParseProtocolType(s string) (ProtocolType, error) {
	switch s {
	case "binary":
		return ProtocolTypeBinary, nil
	case "compact":
		return ProtocolTypeCompact, nil
	}
	return 0, fmt.Errorf("unknown protocol type %q", s)
}

// FilterStatus is returned by decoder event handlers to control whether
// decoding proceeds past the event.
type FilterStatus int

const (
	// FilterStatusContinue continues decoding.
	FilterStatusContinue FilterStatus = iota

	// FilterStatusStopIteration pauses decoding until resumed.
	FilterStatusStopIteration
)
