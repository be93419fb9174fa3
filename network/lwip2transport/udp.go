// Copyright 2023 Jigsaw Operations LLC
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

package lwip2transport

import (
	"fmt"
	"net"
	"net/netip"
	"sync"
	"sync/atomic"

	lwip "github.com/eycorsican/go-tun2socks/core"
	"github.com/ytflow/tunnelcore/network"
)

var _ lwip.UDPConnHandler = (*udpHandler)(nil)

// udpHandler maps each local lwIP UDP socket to a session of the packet proxy.
type udpHandler struct {
	proxy network.PacketProxy

	mu       sync.Mutex
	sessions map[string]network.PacketRequestSender // keyed by local address
}

func newUDPHandler(pp network.PacketProxy) *udpHandler {
	return &udpHandler{proxy: pp, sessions: make(map[string]network.PacketRequestSender, 8)}
}

func (h *udpHandler) Connect(conn lwip.UDPConn, _ *net.UDPAddr) error {
	_, err := h.session(conn)
	return err
}

// ReceiveTo forwards a datagram from the device to the proxy.
func (h *udpHandler) ReceiveTo(conn lwip.UDPConn, data []byte, dst *net.UDPAddr) error {
	sender, err := h.session(conn)
	if err != nil {
		return err
	}
	ap := dst.AddrPort()
	if _, err := sender.WriteTo(data, netip.AddrPortFrom(ap.Addr().Unmap(), ap.Port())); err != nil {
		return fmt.Errorf("%v->%v: %w", conn.LocalAddr(), dst, err)
	}
	return nil
}

// session returns the session of conn, creating it on first use.
func (h *udpHandler) session(conn lwip.UDPConn) (network.PacketRequestSender, error) {
	key := conn.LocalAddr().String()
	h.mu.Lock()
	defer h.mu.Unlock()
	if sender, ok := h.sessions[key]; ok {
		return sender, nil
	}
	receiver := &udpReceiver{conn: conn, handler: h, key: key}
	sender, err := h.proxy.NewSession(receiver)
	if err != nil {
		conn.Close()
		return nil, err
	}
	receiver.sender = sender
	h.sessions[key] = sender
	return sender, nil
}

func (h *udpHandler) remove(key string) {
	h.mu.Lock()
	delete(h.sessions, key)
	h.mu.Unlock()
}

// udpReceiver writes proxy responses back into lwIP.
type udpReceiver struct {
	conn    lwip.UDPConn
	handler *udpHandler
	key     string
	sender  network.PacketRequestSender
	closed  atomic.Bool
}

func (r *udpReceiver) WriteFrom(p []byte, source net.Addr) (int, error) {
	if r.closed.Load() {
		return 0, network.ErrClosed
	}
	src, ok := source.(*net.UDPAddr)
	if !ok {
		var err error
		if src, err = net.ResolveUDPAddr("udp", source.String()); err != nil {
			return 0, err
		}
	}
	return r.conn.WriteFrom(p, src)
}

// Close ends the session. It may be reached again through the sender, so only the first call acts.
func (r *udpReceiver) Close() error {
	if !r.closed.CompareAndSwap(false, true) {
		return nil
	}
	r.handler.remove(r.key)
	if r.sender != nil {
		r.sender.Close()
	}
	return r.conn.Close()
}
