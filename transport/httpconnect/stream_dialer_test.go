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

package httpconnect

import (
	"bufio"
	"context"
	"encoding/base64"
	"io"
	"net"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/ytflow/tunnelcore/transport"
)

// startProxy runs a minimal CONNECT proxy. If creds is not empty, requests must carry these Basic credentials.
// Every accepted request is sent on the returned channel.
func startProxy(t *testing.T, creds string) (net.Listener, <-chan *http.Request) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	reqs := make(chan *http.Request, 4)
	go func() {
		for {
			clientConn, err := listener.Accept()
			if err != nil {
				return
			}
			go func() {
				defer clientConn.Close()
				br := bufio.NewReader(clientConn)
				req, err := http.ReadRequest(br)
				if err != nil {
					return
				}
				reqs <- req
				if creds != "" && req.Header.Get("Proxy-Authorization") != "Basic "+creds {
					io.WriteString(clientConn, "HTTP/1.1 407 Proxy Authentication Required\r\n\r\n")
					return
				}
				if req.Method != http.MethodConnect {
					io.WriteString(clientConn, "HTTP/1.1 405 Method Not Allowed\r\n\r\n")
					return
				}
				targetConn, err := net.Dial("tcp", req.Host)
				if err != nil {
					io.WriteString(clientConn, "HTTP/1.1 502 Bad Gateway\r\n\r\n")
					return
				}
				defer targetConn.Close()
				io.WriteString(clientConn, "HTTP/1.1 200 Connection established\r\n\r\n")
				go io.Copy(targetConn, br)
				io.Copy(clientConn, targetConn)
			}()
		}
	}()
	return listener, reqs
}

func startEchoServer(t *testing.T) net.Listener {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() {
		for {
			conn, err := listener.Accept()
			if err != nil {
				return
			}
			go func() {
				defer conn.Close()
				io.Copy(conn, conn)
			}()
		}
	}()
	return listener
}

func TestConnectOK(t *testing.T) {
	target := startEchoServer(t)
	defer target.Close()
	creds := base64.StdEncoding.EncodeToString([]byte("username:password"))
	proxy, reqs := startProxy(t, creds)
	defer proxy.Close()

	d, err := NewStreamDialer(proxy.Addr().String(), &transport.TCPDialer{}, WithBasicAuth("username", "password"))
	require.NoError(t, err)
	conn, err := d.DialStream(context.Background(), target.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	req := <-reqs
	require.Equal(t, http.MethodConnect, req.Method)
	require.Equal(t, target.Addr().String(), req.Host)

	_, err = conn.Write([]byte("hello"))
	require.NoError(t, err)
	buf := make([]byte, 5)
	_, err = io.ReadFull(conn, buf)
	require.NoError(t, err)
	require.Equal(t, "hello", string(buf))
}

func TestConnectAuthRejected(t *testing.T) {
	proxy, _ := startProxy(t, "expected")
	defer proxy.Close()

	d, err := NewStreamDialer(proxy.Addr().String(), &transport.TCPDialer{}, WithBasicAuth("wrong", "creds"))
	require.NoError(t, err)
	_, err = d.DialStream(context.Background(), "example.com:443")
	require.ErrorIs(t, err, ErrProxyAuth)
}

func TestConnectBadGateway(t *testing.T) {
	proxy, _ := startProxy(t, "")
	defer proxy.Close()

	// Nothing listens on the target.
	closed, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	targetAddr := closed.Addr().String()
	closed.Close()

	d, err := NewStreamDialer(proxy.Addr().String(), &transport.TCPDialer{})
	require.NoError(t, err)
	_, err = d.DialStream(context.Background(), targetAddr)
	require.ErrorContains(t, err, "502")
}

func TestWithHeaders(t *testing.T) {
	target := startEchoServer(t)
	defer target.Close()
	proxy, reqs := startProxy(t, "")
	defer proxy.Close()

	d, err := NewStreamDialer(proxy.Addr().String(), &transport.TCPDialer{}, WithHeaders(http.Header{"User-Agent": {"ytflow"}}))
	require.NoError(t, err)
	conn, err := d.DialStream(context.Background(), target.Addr().String())
	require.NoError(t, err)
	conn.Close()
	require.Equal(t, "ytflow", (<-reqs).Header.Get("User-Agent"))
}
