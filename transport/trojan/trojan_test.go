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

package trojan

import (
	"bufio"
	"bytes"
	"context"
	"crypto/tls"
	"encoding/binary"
	"io"
	"net"
	"testing"
	"time"

	"github.com/shadowsocks/go-shadowsocks2/socks"
	"github.com/stretchr/testify/require"
	"github.com/ytflow/tunnelcore/internal/testcert"
	"github.com/ytflow/tunnelcore/transport"
	ytls "github.com/ytflow/tunnelcore/transport/tls"
)

type request struct {
	key  Key
	cmd  byte
	addr string
}

// startServer runs a Trojan server over TLS. Connect requests are echoed; UDP associate packets are echoed
// back from the address they were sent to.
func startServer(t *testing.T) (string, transport.StreamDialer, <-chan request) {
	cert, pool := testcert.New(t, "127.0.0.1")
	listener, err := tls.Listen("tcp", "127.0.0.1:0", &tls.Config{Certificates: []tls.Certificate{cert}})
	require.NoError(t, err)
	t.Cleanup(func() { listener.Close() })

	requests := make(chan request, 4)
	go func() {
		for {
			conn, err := listener.Accept()
			if err != nil {
				return
			}
			go func() {
				defer conn.Close()
				r := bufio.NewReader(conn)
				key, cmd, addr, err := readHeader(r)
				if err != nil {
					return
				}
				requests <- request{key, cmd, addr.String()}
				switch cmd {
				case cmdConnect:
					io.Copy(conn, r)
				case cmdUDPAssociate:
					for {
						dst, err := socks.ReadAddr(r)
						if err != nil {
							return
						}
						var lenCRLF [4]byte
						if _, err := io.ReadFull(r, lenCRLF[:]); err != nil {
							return
						}
						payload := make([]byte, binary.BigEndian.Uint16(lenCRLF[:2]))
						if _, err := io.ReadFull(r, payload); err != nil {
							return
						}
						conn.Write(appendPacket(nil, dst, payload))
					}
				}
			}()
		}
	}()

	dialer, err := ytls.NewStreamDialer(&transport.TCPDialer{}, ytls.WithRootCAs(pool))
	require.NoError(t, err)
	return listener.Addr().String(), dialer, requests
}

func TestNewKey(t *testing.T) {
	key := NewKey("password")
	require.Equal(t, "d63dc919e201d7bc4c825630d2cf25fdc93d4b2f0d46706d29038d01", string(key[:]))
}

func TestHeaderRoundTrip(t *testing.T) {
	buf := appendHeader(nil, NewKey("pw"), cmdConnect, socks.ParseAddr("example.com:443"))
	key, cmd, addr, err := readHeader(bytes.NewReader(buf))
	require.NoError(t, err)
	require.Equal(t, NewKey("pw"), key)
	require.Equal(t, cmdConnect, cmd)
	require.Equal(t, "example.com:443", addr.String())
}

func TestStreamDialer(t *testing.T) {
	endpoint, dialer, requests := startServer(t)
	d, err := NewStreamDialer(endpoint, dialer, "secret")
	require.NoError(t, err)

	conn, err := d.DialStream(context.Background(), "example.com:80")
	require.NoError(t, err)
	defer conn.Close()

	req := <-requests
	require.Equal(t, NewKey("secret"), req.key)
	require.Equal(t, cmdConnect, req.cmd)
	require.Equal(t, "example.com:80", req.addr)

	_, err = conn.Write([]byte("hello"))
	require.NoError(t, err)
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	buf := make([]byte, 5)
	_, err = io.ReadFull(conn, buf)
	require.NoError(t, err)
	require.Equal(t, "hello", string(buf))
}

func TestStreamDialerInvalidTarget(t *testing.T) {
	d, err := NewStreamDialer("127.0.0.1:1", &transport.TCPDialer{}, "secret")
	require.NoError(t, err)
	_, err = d.DialStream(context.Background(), "missing-port")
	require.Error(t, err)
}

func TestNilDialer(t *testing.T) {
	_, err := NewStreamDialer("127.0.0.1:1", nil, "secret")
	require.Error(t, err)
	_, err = NewPacketListener("127.0.0.1:1", nil, "secret")
	require.Error(t, err)
}

func TestPacketListener(t *testing.T) {
	endpoint, dialer, requests := startServer(t)
	l, err := NewPacketListener(endpoint, dialer, "secret")
	require.NoError(t, err)

	pc, err := l.ListenPacket(context.Background())
	require.NoError(t, err)
	defer pc.Close()

	req := <-requests
	require.Equal(t, cmdUDPAssociate, req.cmd)

	target := &net.UDPAddr{IP: net.IPv4(1, 1, 1, 1), Port: 53}
	n, err := pc.WriteTo([]byte("query"), target)
	require.NoError(t, err)
	require.Equal(t, 5, n)

	require.NoError(t, pc.SetReadDeadline(time.Now().Add(5*time.Second)))
	buf := make([]byte, 64)
	n, from, err := pc.ReadFrom(buf)
	require.NoError(t, err)
	require.Equal(t, "query", string(buf[:n]))
	require.Equal(t, target.String(), from.String())

	// A short buffer truncates the packet but keeps the stream in sync.
	_, err = pc.WriteTo([]byte("0123456789"), target)
	require.NoError(t, err)
	_, err = pc.WriteTo([]byte("next"), target)
	require.NoError(t, err)
	small := make([]byte, 4)
	n, _, err = pc.ReadFrom(small)
	require.ErrorIs(t, err, io.ErrShortBuffer)
	require.Equal(t, "0123", string(small[:n]))
	n, _, err = pc.ReadFrom(buf)
	require.NoError(t, err)
	require.Equal(t, "next", string(buf[:n]))
}
