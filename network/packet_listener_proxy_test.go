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

package network

import (
	"net"
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/ytflow/tunnelcore/transport"
)

type packet struct {
	payload string
	source  string
}

type chanReceiver struct {
	packets chan packet
	closed  chan struct{}
}

func newChanReceiver() *chanReceiver {
	return &chanReceiver{packets: make(chan packet, 4), closed: make(chan struct{})}
}

func (r *chanReceiver) WriteFrom(p []byte, source net.Addr) (int, error) {
	r.packets <- packet{string(p), source.String()}
	return len(p), nil
}

func (r *chanReceiver) Close() error {
	close(r.closed)
	return nil
}

func startUDPEcho(t *testing.T) netip.AddrPort {
	conn, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	go func() {
		buf := make([]byte, 1024)
		for {
			n, addr, err := conn.ReadFrom(buf)
			if err != nil {
				return
			}
			conn.WriteTo(buf[:n], addr)
		}
	}()
	return conn.LocalAddr().(*net.UDPAddr).AddrPort()
}

func TestPacketListenerProxyOptions(t *testing.T) {
	pl := &transport.UDPListener{Address: "127.0.0.1:0"}

	p, err := NewPacketListenerProxy(pl)
	require.NoError(t, err)
	require.Equal(t, defaultWriteIdleTimeout, p.writeIdleTimeout)

	p, err = NewPacketListenerProxy(pl, WithWriteIdleTimeout(5*time.Minute))
	require.NoError(t, err)
	require.Equal(t, 5*time.Minute, p.writeIdleTimeout)

	_, err = NewPacketListenerProxy(pl, WithWriteIdleTimeout(0))
	require.Error(t, err)
	_, err = NewPacketListenerProxy(nil)
	require.Error(t, err)
}

func TestPacketListenerProxyRelay(t *testing.T) {
	echo := startUDPEcho(t)
	p, err := NewPacketListenerProxy(&transport.UDPListener{Address: "127.0.0.1:0"})
	require.NoError(t, err)

	r := newChanReceiver()
	s, err := p.NewSession(r)
	require.NoError(t, err)

	_, err = s.WriteTo([]byte("ping"), echo)
	require.NoError(t, err)
	select {
	case got := <-r.packets:
		require.Equal(t, packet{"ping", echo.String()}, got)
	case <-time.After(5 * time.Second):
		t.Fatal("no response")
	}

	require.NoError(t, s.Close())
	select {
	case <-r.closed:
	case <-time.After(5 * time.Second):
		t.Fatal("receiver not closed")
	}
	require.ErrorIs(t, s.Close(), ErrClosed)
	_, err = s.WriteTo([]byte("late"), echo)
	require.ErrorIs(t, err, ErrClosed)
}

func TestPacketListenerProxyIdle(t *testing.T) {
	p, err := NewPacketListenerProxy(&transport.UDPListener{Address: "127.0.0.1:0"}, WithWriteIdleTimeout(50*time.Millisecond))
	require.NoError(t, err)
	r := newChanReceiver()
	s, err := p.NewSession(r)
	require.NoError(t, err)
	select {
	case <-r.closed:
	case <-time.After(5 * time.Second):
		t.Fatal("idle session not closed")
	}
	require.ErrorIs(t, s.Close(), ErrClosed)
}

func TestPacketListenerProxyNilReceiver(t *testing.T) {
	p, err := NewPacketListenerProxy(&transport.UDPListener{Address: "127.0.0.1:0"})
	require.NoError(t, err)
	_, err = p.NewSession(nil)
	require.Error(t, err)
}
