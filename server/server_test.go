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
	"io"
	"io/ioutil"
	"net"
	"sync"
	"testing"

	"github.com/fortytw2/leaktest"
	"github.com/stretchr/testify/require"
)

const testListenAddress = "127.0.0.1:0"

// echoHandler echoes everything it reads back on the connection.
type echoHandler struct {
	sync.Mutex

	handled int
}

func (h *echoHandler) Handle(conn net.Conn) {
	h.Lock()
	h.handled++
	h.Unlock()

	io.Copy(conn, conn) // nolint: errcheck
}

func (h *echoHandler) Close() {}

func (h *echoHandler) numHandled() int {
	h.Lock()
	defer h.Unlock()
	return h.handled
}

func TestServerListenAndServe(t *testing.T) {
	defer leaktest.Check(t)()

	handler := &echoHandler{}
	s := NewServer(testListenAddress, handler, NewOptions())

	listener, err := net.Listen("tcp", testListenAddress)
	require.NoError(t, err)
	require.NoError(t, s.Serve(listener))

	numClients := 3
	var wg sync.WaitGroup
	for i := 0; i < numClients; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			conn, err := net.Dial("tcp", listener.Addr().String())
			require.NoError(t, err)

			_, err = conn.Write([]byte("hello"))
			require.NoError(t, err)
			require.NoError(t, conn.(*net.TCPConn).CloseWrite())

			echoed, err := ioutil.ReadAll(conn)
			require.NoError(t, err)
			require.Equal(t, "hello", string(echoed))
			require.NoError(t, conn.Close())
		}()
	}
	wg.Wait()

	s.Close()
	require.Equal(t, numClients, handler.numHandled())
}
