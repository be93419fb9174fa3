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
	"context"
	"errors"
	"io"
	"net"
	"net/netip"
	"sync"
	"time"

	"github.com/ytflow/tunnelcore/transport"
)

const (
	packetMaxSize           = 2048
	defaultWriteIdleTimeout = 30 * time.Second
)

// PacketListenerProxy is a [PacketProxy] that opens one [transport.PacketListener] connection per session.
type PacketListenerProxy struct {
	listener         transport.PacketListener
	writeIdleTimeout time.Duration
}

var _ PacketProxy = (*PacketListenerProxy)(nil)

// PacketListenerProxyOption configures a [PacketListenerProxy].
type PacketListenerProxyOption func(*PacketListenerProxy) error

// WithWriteIdleTimeout ends sessions that have not sent a request for timeout. The default is 30 seconds.
func WithWriteIdleTimeout(timeout time.Duration) PacketListenerProxyOption {
	return func(p *PacketListenerProxy) error {
		if timeout <= 0 {
			return errors.New("timeout must be greater than 0")
		}
		p.writeIdleTimeout = timeout
		return nil
	}
}

// NewPacketListenerProxy creates a [PacketListenerProxy] that sends UDP through pl.
func NewPacketListenerProxy(pl transport.PacketListener, opts ...PacketListenerProxyOption) (*PacketListenerProxy, error) {
	if pl == nil {
		return nil, errors.New("packet listener must not be nil")
	}
	p := &PacketListenerProxy{listener: pl, writeIdleTimeout: defaultWriteIdleTimeout}
	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// NewSession implements [PacketProxy]. Responses are relayed to receiver until the session is closed or idle.
func (p *PacketListenerProxy) NewSession(receiver PacketResponseReceiver) (PacketRequestSender, error) {
	if receiver == nil {
		return nil, errors.New("receiver must not be nil")
	}
	conn, err := p.listener.ListenPacket(context.Background())
	if err != nil {
		return nil, err
	}
	s := &listenerSession{conn: conn, idle: p.writeIdleTimeout}
	s.mu.Lock()
	s.timer = time.AfterFunc(s.idle, func() { s.Close() })
	s.mu.Unlock()
	go s.relayResponses(receiver)
	return s, nil
}

type listenerSession struct {
	conn net.PacketConn
	idle time.Duration

	mu     sync.Mutex
	closed bool
	timer  *time.Timer
}

// relayResponses runs until the connection fails, which Close causes.
func (s *listenerSession) relayResponses(receiver PacketResponseReceiver) {
	defer receiver.Close()
	buf := make([]byte, packetMaxSize)
	for {
		n, src, err := s.conn.ReadFrom(buf)
		if errors.Is(err, io.ErrShortBuffer) {
			continue
		}
		if err != nil {
			return
		}
		if _, err := receiver.WriteFrom(buf[:n], src); err != nil {
			return
		}
	}
}

func (s *listenerSession) WriteTo(p []byte, destination netip.AddrPort) (int, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return 0, ErrClosed
	}
	s.timer.Reset(s.idle)
	s.mu.Unlock()
	return s.conn.WriteTo(p, net.UDPAddrFromAddrPort(destination))
}

func (s *listenerSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.closed = true
	s.timer.Stop()
	return s.conn.Close()
}
