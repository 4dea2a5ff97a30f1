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

import "github.com/pkg/errors"

// DecoderEventHandler receives the event stream for one decoded message.
// Each event may pause decoding by returning FilterStatusStopIteration;
// decoding resumes at the next event.
type DecoderEventHandler interface {
	TransportBegin(meta *MessageMetadata) FilterStatus
	TransportEnd() FilterStatus
	MessageBegin(meta *MessageMetadata) FilterStatus
	MessageEnd() FilterStatus
	StructBegin(name string) FilterStatus
	StructEnd() FilterStatus
	FieldBegin(name string, fieldType FieldType, fieldID int16) FilterStatus
	FieldEnd() FilterStatus
	MapBegin(keyType, valueType FieldType, size uint32) FilterStatus
	MapEnd() FilterStatus
	ListBegin(elemType FieldType, size uint32) FilterStatus
	ListEnd() FilterStatus
	SetBegin(elemType FieldType, size uint32) FilterStatus
	SetEnd() FilterStatus
	BoolValue(value bool) FilterStatus
	ByteValue(value int8) FilterStatus
	Int16Value(value int16) FilterStatus
	Int32Value(value int32) FilterStatus
	Int64Value(value int64) FilterStatus
	DoubleValue(value float64) FilterStatus
	StringValue(value string) FilterStatus
}

// DecoderCallbacks connects a Decoder to its owner.
type DecoderCallbacks interface {
	// NewDecoderEventHandler returns the handler for the message whose
	// frame was just started. Called exactly once per message.
	NewDecoderEventHandler() DecoderEventHandler
}

type machineState int

const (
	stateMessageBegin machineState = iota
	stateStructBegin
	stateFieldBegin
	stateFieldValue
	stateFieldEnd
	stateStructEnd
	stateMapBegin
	stateMapKey
	stateMapValue
	stateMapEnd
	stateListBegin
	stateListValue
	stateListEnd
	stateSetBegin
	stateSetValue
	stateSetEnd
	stateMessageEnd
	stateDone
)

// frame tracks one level of struct/container nesting.
type frame struct {
	returnState machineState
	fieldType   FieldType
	elemType    FieldType
	keyType     FieldType
	valueType   FieldType
	remaining   uint32
}

// stateMachine decodes one message body, firing events as elements
// complete. It is restartable at any point: a protocol read that
// underflows consumes nothing and the machine stays in place.
type stateMachine struct {
	proto   Protocol
	meta    *MessageMetadata
	handler DecoderEventHandler
	state   machineState
	stack   []frame
}

func newStateMachine(proto Protocol, meta *MessageMetadata, handler DecoderEventHandler) *stateMachine {
	return &stateMachine{
		proto:   proto,
		meta:    meta,
		handler: handler,
		state:   stateMessageBegin,
	}
}

func (m *stateMachine) done() bool { return m.state == stateDone }

func (m *stateMachine) push(f frame) {
	m.stack = append(m.stack, f)
}

func (m *stateMachine) pop() frame {
	f := m.stack[len(m.stack)-1]
	m.stack = m.stack[:len(m.stack)-1]
	return f
}

func (m *stateMachine) top() *frame {
	return &m.stack[len(m.stack)-1]
}

// run drives the machine until the message completes, the buffer
// underflows, or a handler pauses decoding.
func (m *stateMachine) run(buf *Buffer) (FilterStatus, bool, error) {
	for m.state != stateDone {
		status, ok, err := m.step(buf)
		if err != nil {
			return FilterStatusContinue, false, err
		}
		if !ok {
			return FilterStatusContinue, true, nil
		}
		if status == FilterStatusStopIteration {
			return FilterStatusStopIteration, false, nil
		}
	}
	return FilterStatusContinue, false, nil
}

func (m *stateMachine) step(buf *Buffer) (FilterStatus, bool, error) {
	switch m.state {
	case stateMessageBegin:
		ok, err := m.proto.ReadMessageBegin(buf, m.meta)
		if !ok || err != nil {
			return FilterStatusContinue, ok, err
		}
		// The message body is a struct; surface its end as message end.
		m.push(frame{returnState: stateMessageEnd})
		m.state = stateStructBegin
		return m.handler.MessageBegin(m.meta), true, nil

	case stateStructBegin:
		var name string
		ok, err := m.proto.ReadStructBegin(buf, &name)
		if !ok || err != nil {
			return FilterStatusContinue, ok, err
		}
		m.state = stateFieldBegin
		return m.handler.StructBegin(name), true, nil

	case stateFieldBegin:
		var (
			name      string
			fieldType FieldType
			fieldID   int16
		)
		ok, err := m.proto.ReadFieldBegin(buf, &name, &fieldType, &fieldID)
		if !ok || err != nil {
			return FilterStatusContinue, ok, err
		}
		if fieldType == FieldTypeStop {
			// Stop is consumed silently; no field event fires.
			m.state = stateStructEnd
			return FilterStatusContinue, true, nil
		}
		m.top().fieldType = fieldType
		m.state = stateFieldValue
		return m.handler.FieldBegin(name, fieldType, fieldID), true, nil

	case stateFieldValue:
		return m.decodeValue(buf, m.top().fieldType, stateFieldEnd)

	case stateFieldEnd:
		ok, err := m.proto.ReadFieldEnd(buf)
		if !ok || err != nil {
			return FilterStatusContinue, ok, err
		}
		m.state = stateFieldBegin
		return m.handler.FieldEnd(), true, nil

	case stateStructEnd:
		ok, err := m.proto.ReadStructEnd(buf)
		if !ok || err != nil {
			return FilterStatusContinue, ok, err
		}
		m.state = m.pop().returnState
		return m.handler.StructEnd(), true, nil

	case stateMapBegin:
		f := m.top()
		ok, err := m.proto.ReadMapBegin(buf, &f.keyType, &f.valueType, &f.remaining)
		if !ok || err != nil {
			return FilterStatusContinue, ok, err
		}
		m.state = stateMapKey
		return m.handler.MapBegin(f.keyType, f.valueType, f.remaining), true, nil

	case stateMapKey:
		f := m.top()
		if f.remaining == 0 {
			m.state = stateMapEnd
			return FilterStatusContinue, true, nil
		}
		// Roll the count back on underflow: a failed primitive read never
		// pushes a frame, so f stays valid.
		f.remaining--
		status, ok, err := m.decodeValue(buf, f.keyType, stateMapValue)
		if !ok && err == nil {
			f.remaining++
		}
		return status, ok, err

	case stateMapValue:
		return m.decodeValue(buf, m.top().valueType, stateMapKey)

	case stateMapEnd:
		ok, err := m.proto.ReadMapEnd(buf)
		if !ok || err != nil {
			return FilterStatusContinue, ok, err
		}
		m.state = m.pop().returnState
		return m.handler.MapEnd(), true, nil

	case stateListBegin:
		f := m.top()
		ok, err := m.proto.ReadListBegin(buf, &f.elemType, &f.remaining)
		if !ok || err != nil {
			return FilterStatusContinue, ok, err
		}
		m.state = stateListValue
		return m.handler.ListBegin(f.elemType, f.remaining), true, nil

	case stateListValue:
		f := m.top()
		if f.remaining == 0 {
			m.state = stateListEnd
			return FilterStatusContinue, true, nil
		}
		f.remaining--
		status, ok, err := m.decodeValue(buf, f.elemType, stateListValue)
		if !ok && err == nil {
			f.remaining++
		}
		return status, ok, err

	case stateListEnd:
		ok, err := m.proto.ReadListEnd(buf)
		if !ok || err != nil {
			return FilterStatusContinue, ok, err
		}
		m.state = m.pop().returnState
		return m.handler.ListEnd(), true, nil

	case stateSetBegin:
		f := m.top()
		ok, err := m.proto.ReadSetBegin(buf, &f.elemType, &f.remaining)
		if !ok || err != nil {
			return FilterStatusContinue, ok, err
		}
		m.state = stateSetValue
		return m.handler.SetBegin(f.elemType, f.remaining), true, nil

	case stateSetValue:
		f := m.top()
		if f.remaining == 0 {
			m.state = stateSetEnd
			return FilterStatusContinue, true, nil
		}
		f.remaining--
		status, ok, err := m.decodeValue(buf, f.elemType, stateSetValue)
		if !ok && err == nil {
			f.remaining++
		}
		return status, ok, err

	case stateSetEnd:
		ok, err := m.proto.ReadSetEnd(buf)
		if !ok || err != nil {
			return FilterStatusContinue, ok, err
		}
		m.state = m.pop().returnState
		return m.handler.SetEnd(), true, nil

	case stateMessageEnd:
		ok, err := m.proto.ReadMessageEnd(buf)
		if !ok || err != nil {
			return FilterStatusContinue, ok, err
		}
		m.state = stateDone
		return m.handler.MessageEnd(), true, nil
	}

	panic("thrift: unreachable decoder state")
}

// decodeValue decodes one value of the given type, entering a nested
// frame for structs and containers. returnState is where the machine
// resumes once the value completes.
func (m *stateMachine) decodeValue(
	buf *Buffer,
	fieldType FieldType,
	returnState machineState,
) (FilterStatus, bool, error) {
	switch fieldType {
	case FieldTypeBool:
		var v bool
		ok, err := m.proto.ReadBool(buf, &v)
		if !ok || err != nil {
			return FilterStatusContinue, ok, err
		}
		m.state = returnState
		return m.handler.BoolValue(v), true, nil

	case FieldTypeByte:
		var v int8
		ok, err := m.proto.ReadByte(buf, &v)
		if !ok || err != nil {
			return FilterStatusContinue, ok, err
		}
		m.state = returnState
		return m.handler.ByteValue(v), true, nil

	case FieldTypeI16:
		var v int16
		ok, err := m.proto.ReadInt16(buf, &v)
		if !ok || err != nil {
			return FilterStatusContinue, ok, err
		}
		m.state = returnState
		return m.handler.Int16Value(v), true, nil

	case FieldTypeI32:
		var v int32
		ok, err := m.proto.ReadInt32(buf, &v)
		if !ok || err != nil {
			return FilterStatusContinue, ok, err
		}
		m.state = returnState
		return m.handler.Int32Value(v), true, nil

	case FieldTypeI64:
		var v int64
		ok, err := m.proto.ReadInt64(buf, &v)
		if !ok || err != nil {
			return FilterStatusContinue, ok, err
		}
		m.state = returnState
		return m.handler.Int64Value(v), true, nil

	case FieldTypeDouble:
		var v float64
		ok, err := m.proto.ReadDouble(buf, &v)
		if !ok || err != nil {
			return FilterStatusContinue, ok, err
		}
		m.state = returnState
		return m.handler.DoubleValue(v), true, nil

	case FieldTypeString:
		var v string
		ok, err := m.proto.ReadString(buf, &v)
		if !ok || err != nil {
			return FilterStatusContinue, ok, err
		}
		m.state = returnState
		return m.handler.StringValue(v), true, nil

	case FieldTypeStruct:
		m.push(frame{returnState: returnState})
		m.state = stateStructBegin
		return FilterStatusContinue, true, nil

	case FieldTypeMap:
		m.push(frame{returnState: returnState})
		m.state = stateMapBegin
		return FilterStatusContinue, true, nil

	case FieldTypeList:
		m.push(frame{returnState: returnState})
		m.state = stateListBegin
		return FilterStatusContinue, true, nil

	case FieldTypeSet:
		m.push(frame{returnState: returnState})
		m.state = stateSetBegin
		return FilterStatusContinue, true, nil
	}

	return FilterStatusContinue, false,
		errors.Errorf("unknown thrift field type %d", int8(fieldType))
}

// Decoder incrementally decodes a stream of transport-framed messages,
// firing decoder events into the handler supplied by its callbacks. A new
// handler is requested at each message boundary.
type Decoder struct {
	transport Transport
	proto     Protocol
	callbacks DecoderCallbacks

	frameStarted bool
	meta         *MessageMetadata
	handler      DecoderEventHandler
	machine      *stateMachine
}

// NewDecoder returns a decoder over the given transport and protocol.
func NewDecoder(transport Transport, proto Protocol, callbacks DecoderCallbacks) *Decoder {
	return &Decoder{
		transport: transport,
		proto:     proto,
		callbacks: callbacks,
	}
}

// TransportType returns the active transport type.
func (d *Decoder) TransportType() TransportType { return d.transport.Type() }

// ProtocolType returns the active protocol type.
func (d *Decoder) ProtocolType() ProtocolType { return d.proto.Type() }

func (d *Decoder) frameComplete() bool {
	return d.frameStarted && d.machine != nil && d.machine.done()
}

// OnData decodes as much of buf as possible. It returns
// FilterStatusStopIteration if an event handler paused decoding, and
// underflow true when the buffer ran out of bytes. Either way decoding
// resumes exactly where it left off on the next call.
func (d *Decoder) OnData(buf *Buffer) (FilterStatus, bool, error) {
	// A frame whose body finished decoding still owes its frame end and
	// transport end even if no further bytes ever arrive, e.g. when a
	// handler paused decoding at the message end event.
	for buf.Len() > 0 || d.frameComplete() {
		if !d.frameStarted {
			meta := NewMessageMetadata()
			ok, err := d.transport.DecodeFrameStart(buf, meta)
			if err != nil {
				return FilterStatusContinue, false, err
			}
			if !ok {
				return FilterStatusContinue, true, nil
			}
			d.frameStarted = true
			d.meta = meta
			d.handler = d.callbacks.NewDecoderEventHandler()
			d.machine = newStateMachine(d.proto, meta, d.handler)
			if d.handler.TransportBegin(meta) == FilterStatusStopIteration {
				return FilterStatusStopIteration, false, nil
			}
		}

		if !d.machine.done() {
			status, underflow, err := d.machine.run(buf)
			if err != nil {
				return FilterStatusContinue, false, err
			}
			if status == FilterStatusStopIteration {
				return FilterStatusStopIteration, false, nil
			}
			if underflow {
				return FilterStatusContinue, true, nil
			}
		}

		ok, err := d.transport.DecodeFrameEnd(buf)
		if err != nil {
			return FilterStatusContinue, false, err
		}
		if !ok {
			return FilterStatusContinue, true, nil
		}

		handler := d.handler
		d.frameStarted = false
		d.meta = nil
		d.handler = nil
		d.machine = nil

		if handler.TransportEnd() == FilterStatusStopIteration {
			return FilterStatusStopIteration, false, nil
		}
	}
	return FilterStatusContinue, true, nil
}
