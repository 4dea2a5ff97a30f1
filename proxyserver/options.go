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

package proxyserver

import (
	"github.com/m3db/thriftproxy/instrument"
	"github.com/m3db/thriftproxy/proxy"
	"github.com/m3db/thriftproxy/server"
)

// Options configure a thrift proxy server.
type Options interface {
	// SetInstrumentOptions sets the instrument options.
	SetInstrumentOptions(value instrument.Options) Options

	// InstrumentOptions returns the instrument options.
	InstrumentOptions() instrument.Options

	// SetProxyOptions sets the connection manager options.
	SetProxyOptions(value proxy.Options) Options

	// ProxyOptions returns the connection manager options.
	ProxyOptions() proxy.Options

	// SetServerOptions sets the network server options.
	SetServerOptions(value server.Options) Options

	// ServerOptions returns the network server options.
	ServerOptions() server.Options
}

type options struct {
	instrumentOpts instrument.Options
	proxyOpts      proxy.Options
	serverOpts     server.Options
}

// NewOptions creates a new set of proxy server options.
func NewOptions() Options {
	return &options{
		instrumentOpts: instrument.NewOptions(),
		proxyOpts:      proxy.NewOptions(),
		serverOpts:     server.NewOptions(),
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

func (o *options) SetProxyOptions(value proxy.Options) Options {
	opts := *o
	opts.proxyOpts = value
	return &opts
}

func (o *options) ProxyOptions() proxy.Options {
	return o.proxyOpts
}

func (o *options) SetServerOptions(value server.Options) Options {
	opts := *o
	opts.serverOpts = value
	return &opts
}

func (o *options) ServerOptions() server.Options {
	return o.serverOpts
}
