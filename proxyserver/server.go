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

// Package proxyserver hosts thrift proxy connection managers on a TCP
// server: each accepted connection gets its own manager driven by a
// serialized per-connection event loop.
package proxyserver

import (
	"net"

	"github.com/m3db/thriftproxy/proxy"
	"github.com/m3db/thriftproxy/server"

	"go.uber.org/zap"
)

// NewServer creates a new thrift proxy server.
func NewServer(address string, opts Options) server.Server {
	iOpts := opts.InstrumentOptions()
	handlerScope := iOpts.MetricsScope().Tagged(map[string]string{"handler": "thrift"})
	handler := NewHandler(opts.SetInstrumentOptions(iOpts.SetMetricsScope(handlerScope)))
	return server.NewServer(address, handler, opts.ServerOptions())
}

type handler struct {
	proxyOpts proxy.Options
	log       *zap.Logger
}

// NewHandler creates a new thrift proxy connection handler.
func NewHandler(opts Options) server.Handler {
	return &handler{
		proxyOpts: opts.ProxyOptions(),
		log:       opts.InstrumentOptions().Logger(),
	}
}

func (h *handler) Handle(conn net.Conn) {
	c := newConnection(conn, h.log)
	manager := proxy.NewConnectionManager(h.proxyOpts)
	manager.InitializeReadFilterCallbacks(c)
	c.serve(manager)
}

func (h *handler) Close() {}
