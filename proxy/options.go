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

package proxy

import (
	"github.com/m3db/thriftproxy/instrument"
	"github.com/m3db/thriftproxy/thrift"
)

// TransportFactory creates a transport codec per connection side.
type TransportFactory func() thrift.Transport

// ProtocolFactory creates a protocol codec per connection side.
type ProtocolFactory func() thrift.Protocol

// Options configure a connection manager.
type Options interface {
	// SetInstrumentOptions sets the instrument options.
	SetInstrumentOptions(value instrument.Options) Options

	// InstrumentOptions returns the instrument options.
	InstrumentOptions() instrument.Options

	// SetTransportFactory sets the downstream transport factory.
	SetTransportFactory(value TransportFactory) Options

	// TransportFactory returns the downstream transport factory.
	TransportFactory() TransportFactory

	// SetProtocolFactory sets the downstream protocol factory.
	SetProtocolFactory(value ProtocolFactory) Options

	// ProtocolFactory returns the downstream protocol factory.
	ProtocolFactory() ProtocolFactory

	// SetFilterChainFactory sets the per-rpc filter chain factory.
	SetFilterChainFactory(value FilterChainFactory) Options

	// FilterChainFactory returns the per-rpc filter chain factory.
	FilterChainFactory() FilterChainFactory

	// SetRouter sets the router.
	SetRouter(value Router) Options

	// Router returns the router.
	Router() Router
}

type options struct {
	instrumentOpts instrument.Options
	transportFn    TransportFactory
	protocolFn     ProtocolFactory
	filterFactory  FilterChainFactory
	router         Router
}

// NewOptions creates a new set of connection manager options. Defaults to
// framed binary with an empty filter chain and a router that matches
// nothing.
func NewOptions() Options {
	return &options{
		instrumentOpts: instrument.NewOptions(),
		transportFn:    thrift.NewFramedTransport,
		protocolFn:     thrift.NewBinaryProtocol,
		filterFactory:  FilterChainFactoryFunc(func(FilterChainFactoryCallbacks) {}),
		router:         nilRouter{},
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

func (o *options) SetTransportFactory(value TransportFactory) Options {
	opts := *o
	opts.transportFn = value
	return &opts
}

func (o *options) TransportFactory() TransportFactory {
	return o.transportFn
}

func (o *options) SetProtocolFactory(value ProtocolFactory) Options {
	opts := *o
	opts.protocolFn = value
	return &opts
}

func (o *options) ProtocolFactory() ProtocolFactory {
	return o.protocolFn
}

func (o *options) SetFilterChainFactory(value FilterChainFactory) Options {
	opts := *o
	opts.filterFactory = value
	return &opts
}

func (o *options) FilterChainFactory() FilterChainFactory {
	return o.filterFactory
}

func (o *options) SetRouter(value Router) Options {
	opts := *o
	opts.router = value
	return &opts
}

func (o *options) Router() Router {
	return o.router
}

type nilRouter struct{}

func (nilRouter) Route(meta *thrift.MessageMetadata, streamID uint64) Route { return nil }
