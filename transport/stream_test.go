// Copyright 2023 The Outline Authors
// Copyright 2026 The YTFlow Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package transport

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"syscall"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	StreamConn
}

func TestFuncStreamDialer(t *testing.T) {
	expectedConn := &fakeConn{}
	expectedErr := errors.New("fake error")
	dialer := FuncStreamDialer(func(ctx context.Context, addr string) (StreamConn, error) {
		require.Equal(t, "unused", addr)
		return expectedConn, expectedErr
	})
	conn, err := dialer.DialStream(context.Background(), "unused")
	require.Equal(t, expectedConn, conn)
	require.Equal(t, expectedErr, err)
}

func TestTCPDialerHalfClose(t *testing.T) {
	requestText := []byte("Request")
	responseText := []byte("Response")

	listener, err := net.ListenTCP("tcp", &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	defer listener.Close()

	var running sync.WaitGroup
	running.Add(2)

	// Server
	go func() {
		defer running.Done()
		clientConn, err := listener.AcceptTCP()
		if !assert.NoError(t, err, "AcceptTCP failed") {
			return
		}
		defer clientConn.Close()
		assert.NoError(t, iotest.TestReader(clientConn, requestText), "Request read failed")

		_, err = clientConn.Write(responseText)
		assert.NoError(t, err, "Write failed")
		assert.NoError(t, clientConn.CloseWrite(), "CloseWrite failed")
	}()

	// Client
	go func() {
		defer running.Done()
		dialer := &TCPDialer{}
		dialer.Dialer.Control = func(network, address string, c syscall.RawConn) error {
			assert.Equal(t, "tcp4", network)
			assert.Equal(t, listener.Addr().String(), address)
			return nil
		}
		serverConn, err := dialer.DialStream(context.Background(), listener.Addr().String())
		if !assert.NoError(t, err, "Dial failed") {
			return
		}
		assert.Equal(t, listener.Addr().String(), serverConn.RemoteAddr().String())
		defer serverConn.Close()

		n, err := serverConn.Write(requestText)
		assert.NoError(t, err)
		assert.Equal(t, 7, n)
		assert.NoError(t, serverConn.CloseWrite())

		assert.NoError(t, iotest.TestReader(serverConn, responseText), "Response read failed")
	}()

	running.Wait()
}

func TestTCPDialerControlError(t *testing.T) {
	errCancel := errors.New("cancelled")
	dialer := &TCPDialer{}
	dialer.Dialer.Control = func(network, address string, c syscall.RawConn) error {
		require.Equal(t, "tcp6", network)
		require.Equal(t, "[2001:4860:4860::8888]:53", address)
		return errCancel
	}
	_, err := dialer.DialStream(context.Background(), "[2001:4860:4860::8888]:53")
	require.ErrorIs(t, err, errCancel)
}

type countWriter struct {
	writeCalls, readFromCalls int
}

func (w *countWriter) Write(b []byte) (int, error) {
	w.writeCalls += 1
	return len(b), nil
}

func (w *countWriter) ReadFrom(r io.Reader) (int64, error) {
	w.readFromCalls += 1
	return 0, nil
}

var _ io.Writer = (*countWriter)(nil)
var _ io.ReaderFrom = (*countWriter)(nil)

func Test_duplexConnAdaptor_PreferReadFrom(t *testing.T) {
	var w countWriter
	c := WrapConn(nil, nil, &w)
	src := bytes.NewBuffer([]byte("data"))
	n, err := c.(io.ReaderFrom).ReadFrom(src)
	require.NoError(t, err)
	require.Equal(t, 1, w.readFromCalls)
	require.Equal(t, 0, w.writeCalls)
	require.Equal(t, int64(0), n)
}

func TestWrapConnFlattens(t *testing.T) {
	inner := &fakeConn{}
	first := WrapConn(inner, bytes.NewReader(nil), io.Discard)
	second := WrapConn(first, bytes.NewReader(nil), io.Discard)
	require.Same(t, inner, second.(*duplexConnAdaptor).StreamConn)
}
