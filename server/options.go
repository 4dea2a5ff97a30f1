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

package server

import (
	"time"

	"github.com/m3db/thriftproxy/instrument"
)

// Options provide a set of server options.
type Options interface {
	// SetInstrumentOptions sets the instrument options.
	SetInstrumentOptions(value instrument.Options) Options

	// InstrumentOptions returns the instrument options.
	InstrumentOptions() instrument.Options

	// SetListenerOptions sets the listener options.
	SetListenerOptions(value ListenerOptions) Options

	// ListenerOptions returns the listener options.
	ListenerOptions() ListenerOptions

	// SetTCPConnectionKeepAlive sets the keep alive state for tcp
	// connections.
	SetTCPConnectionKeepAlive(value bool) Options

	// TCPConnectionKeepAlive returns the keep alive state for tcp
	// connections.
	TCPConnectionKeepAlive() bool

	// SetTCPConnectionKeepAlivePeriod sets the keep alive period for tcp
	// connections.
	SetTCPConnectionKeepAlivePeriod(value time.Duration) Options

	// TCPConnectionKeepAlivePeriod returns the keep alive period for tcp
	// connections.
	TCPConnectionKeepAlivePeriod() time.Duration
}

type options struct {
	instrumentOpts   instrument.Options
	listenerOpts     ListenerOptions
	tcpKeepAlive     bool
	tcpKeepAlivePrd  time.Duration
}

// NewOptions creates a new set of server options.
func NewOptions() Options {
	return &options{
		instrumentOpts: instrument.NewOptions(),
		listenerOpts:   NewListenerOptions(),
		tcpKeepAlive:   true,
	}
}

func (o *options) SetInstrumentOptions(value instrument.Options) Options {
	opts := *o
	opts.instrumentOpts = value
	return &opts
}

func (o *options) InstrumentOptions() instrument.Options {
	return o.instrumentOpts
}

func (o *options) SetListenerOptions(value ListenerOptions) Options {
	opts := *o
	opts.listenerOpts = value
	return &opts
}

func (o *options) ListenerOptions() ListenerOptions {
	return o.listenerOpts
}

func (o *options) SetTCPConnectionKeepAlive(value bool) Options {
	opts := *o
	opts.tcpKeepAlive = value
	return &opts
}

func (o *options) TCPConnectionKeepAlive() bool {
	return o.tcpKeepAlive
}

func (o *options) SetTCPConnectionKeepAlivePeriod(value time.Duration) Options {
	opts := *o
	opts.tcpKeepAlivePrd = value
	return &opts
}

func (o *options) TCPConnectionKeepAlivePeriod() time.Duration {
	return o.tcpKeepAlivePrd
}
