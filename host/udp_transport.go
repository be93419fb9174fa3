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

package host

import (
	"context"
	"errors"
	"net"
	"net/netip"
	"sync"
	"time"
)

var (
	ErrNotBound     = errors.New("transport is not bound")
	ErrNotConnected = errors.New("transport is not connected")
)

// UDPTransport is a [Transport] over a UDP socket. After Connect, Send goes to the remote end and Receive only
// returns datagrams from it.
type UDPTransport struct {
	mu     sync.Mutex
	conn   *net.UDPConn
	remote netip.AddrPort
	closed bool
}

var _ PacketTransport = (*UDPTransport)(nil)

func NewUDPTransport() *UDPTransport {
	return &UDPTransport{}
}

func (t *UDPTransport) BindEndpoint(ctx context.Context, local netip.AddrPort) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return net.ErrClosed
	}
	if t.conn != nil {
		return errors.New("transport is already bound")
	}
	var lc net.ListenConfig
	pc, err := lc.ListenPacket(ctx, "udp", local.String())
	if err != nil {
		return err
	}
	t.conn = pc.(*net.UDPConn)
	return nil
}

func (t *UDPTransport) LocalAddr() netip.AddrPort {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn == nil {
		return netip.AddrPort{}
	}
	ap := t.conn.LocalAddr().(*net.UDPAddr).AddrPort()
	return netip.AddrPortFrom(ap.Addr().Unmap(), ap.Port())
}

// RemoteAddr returns the address given to Connect, or the zero value.
func (t *UDPTransport) RemoteAddr() netip.AddrPort {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.remote
}

func (t *UDPTransport) Connect(ctx context.Context, remote netip.AddrPort) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !remote.IsValid() {
		return errors.New("invalid remote address")
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return net.ErrClosed
	}
	if t.conn == nil {
		return ErrNotBound
	}
	t.remote = remote
	return nil
}

func (t *UDPTransport) connected() (*net.UDPConn, netip.AddrPort, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn == nil {
		return nil, netip.AddrPort{}, ErrNotBound
	}
	return t.conn, t.remote, nil
}

// Send writes one datagram to the remote end.
func (t *UDPTransport) Send(p []byte) (int, error) {
	conn, remote, err := t.connected()
	if err != nil {
		return 0, err
	}
	if !remote.IsValid() {
		return 0, ErrNotConnected
	}
	return conn.WriteToUDPAddrPort(p, remote)
}

// Receive reads the next datagram from the remote end. Datagrams from other sources are discarded.
func (t *UDPTransport) Receive(p []byte) (int, error) {
	conn, _, err := t.connected()
	if err != nil {
		return 0, err
	}
	for {
		n, src, err := conn.ReadFromUDPAddrPort(p)
		if err != nil {
			return n, err
		}
		remote := t.RemoteAddr()
		if !remote.IsValid() || netip.AddrPortFrom(src.Addr().Unmap(), src.Port()) == remote {
			return n, nil
		}
	}
}

func (t *UDPTransport) SetReadDeadline(d time.Time) error {
	conn, _, err := t.connected()
	if err != nil {
		return err
	}
	return conn.SetReadDeadline(d)
}

func (t *UDPTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	if t.conn == nil {
		return nil
	}
	return t.conn.Close()
}
