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

package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/m3db/thriftproxy/config"
	"github.com/m3db/thriftproxy/instrument"
	"github.com/m3db/thriftproxy/proxy"
	"github.com/m3db/thriftproxy/proxyserver"
	"github.com/m3db/thriftproxy/server"

	"github.com/uber-go/tally"
	"go.uber.org/zap"
)

var configFileArg = flag.String("f", "", "configuration file")

func main() {
	flag.Parse()

	if *configFileArg == "" {
		flag.Usage()
		os.Exit(1)
	}

	var cfg config.ProxyConfiguration
	if err := config.LoadFile(&cfg, *configFileArg); err != nil {
		fmt.Fprintf(os.Stderr, "unable to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "unable to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync() // nolint: errcheck

	prefix := cfg.MetricsPrefix
	if prefix == "" {
		prefix = "thriftproxy"
	}
	scope, scopeCloser := tally.NewRootScope(tally.ScopeOptions{
		Prefix: prefix,
	}, time.Second)
	defer scopeCloser.Close() // nolint: errcheck

	iopts := instrument.NewOptions().
		SetLogger(log).
		SetMetricsScope(scope)

	proxyOpts, err := cfg.NewProxyOptions(proxy.NewOptions().SetInstrumentOptions(iopts))
	if err != nil {
		log.Fatal("unable to build proxy options", zap.Error(err))
	}

	opts := proxyserver.NewOptions().
		SetInstrumentOptions(iopts).
		SetProxyOptions(proxyOpts).
		SetServerOptions(server.NewOptions().SetInstrumentOptions(iopts))

	srv := proxyserver.NewServer(cfg.ListenAddress, opts)
	if err := srv.ListenAndServe(); err != nil {
		log.Fatal("unable to serve", zap.Error(err))
	}
	log.Info("thrift proxy listening", zap.String("address", cfg.ListenAddress))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Info("shutting down", zap.String("signal", sig.String()))

	srv.Close()
}
