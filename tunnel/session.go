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

package tunnel

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/netip"
	"sync"
	"sync/atomic"

	"github.com/ytflow/tunnelcore/adapter"
	"github.com/ytflow/tunnelcore/host"
	"github.com/ytflow/tunnelcore/network"
	"golang.org/x/sync/errgroup"
)

// maxPacketSize bounds what the relay and the device read loop accept in one read.
const maxPacketSize = 65535

var wakeDatagram = []byte{0}

// Session is the state of one tunnel on a host channel. It is stored in the channel's context slot.
//
// The session owns a relay socket that receives the packets the host sends over its transport, and an IP device
// that terminates those packets and relays their flows through the adapter. Packets produced by the device wait in
// the pending queue until the host drains them.
type Session struct {
	logger  *slog.Logger
	ch      host.Channel
	adapter adapter.Factory

	relay       *net.UDPConn
	device      network.IPDevice
	udpProxy    network.PacketProxy
	packetProxy *network.DelegatePacketProxy
	pending     *PendingQueue

	// peer is the host transport address. Only datagrams from it reach the device.
	peer        atomic.Pointer[netip.AddrPort]
	kickPending atomic.Bool
	drainMu     sync.Mutex

	mu        sync.Mutex
	transport host.Transport

	closed   atomic.Bool
	ctx      context.Context
	cancel   context.CancelFunc
	group    *errgroup.Group
	initOnce sync.Once

	egress  atomic.Uint64
	ingress atomic.Uint64
	dropped atomic.Uint64
}

// Stats counts packets that went through a session.
type Stats struct {
	// Egress counts packets moved by Encapsulate.
	Egress uint64
	// Ingress counts packets delivered by Decapsulate.
	Ingress uint64
	// Dropped counts pending packets that did not fit a receive buffer.
	Dropped uint64
}

func newSession(ch host.Channel, factory adapter.Factory, relayAddr netip.AddrPort, newDevice DeviceFactory, logger *slog.Logger) (*Session, error) {
	relay, err := net.ListenUDP("udp", net.UDPAddrFromAddrPort(relayAddr))
	if err != nil {
		return nil, fmt.Errorf("%w: relay %v: %w", ErrBind, relayAddr, err)
	}
	udpProxy, err := network.NewPacketListenerProxy(factory)
	if err != nil {
		relay.Close()
		return nil, fmt.Errorf("failed to create UDP proxy: %w", err)
	}
	packetProxy, err := network.NewDelegatePacketProxy(udpProxy)
	if err != nil {
		relay.Close()
		return nil, fmt.Errorf("failed to create UDP proxy: %w", err)
	}
	device, err := newDevice(factory, packetProxy)
	if err != nil {
		relay.Close()
		return nil, fmt.Errorf("failed to create IP device: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	group, ctx := errgroup.WithContext(ctx)
	s := &Session{
		logger:      logger.With("adapter", factory.Name(), "kind", factory.Kind()),
		ch:          ch,
		adapter:     factory,
		relay:       relay,
		device:      device,
		udpProxy:    udpProxy,
		packetProxy: packetProxy,
		pending:     NewPendingQueue(),
		ctx:         ctx,
		cancel:      cancel,
		group:       group,
	}
	group.Go(s.readDevice)
	return s, nil
}

// Init sets the host transport address that packets come from and wake datagrams go to, and starts the relay on
// first use. Packets queued before Init are announced right away.
func (s *Session) Init(peer netip.AddrPort) {
	peer = netip.AddrPortFrom(peer.Addr().Unmap(), peer.Port())
	s.peer.Store(&peer)
	s.initOnce.Do(func() {
		s.group.Go(s.relayPackets)
	})
	s.CheckPendingPackets()
}

// RelayAddr returns the address the host transport must send packets to.
func (s *Session) RelayAddr() netip.AddrPort {
	return s.relay.LocalAddr().(*net.UDPAddr).AddrPort()
}

func (s *Session) Adapter() adapter.Factory {
	return s.adapter
}

// Transport returns the current host transport.
func (s *Session) Transport() host.Transport {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transport
}

// SetTransport replaces the host transport, closing the previous one.
func (s *Session) SetTransport(t host.Transport) {
	s.mu.Lock()
	old := s.transport
	s.transport = t
	s.mu.Unlock()
	if old != nil && old != t {
		if err := old.Close(); err != nil {
			s.logger.Debug("failed to close previous transport", "err", err)
		}
	}
}

// Pending returns the number of packets waiting for the host.
func (s *Session) Pending() int {
	return s.pending.Len()
}

func (s *Session) Stats() Stats {
	return Stats{
		Egress:  s.egress.Load(),
		Ingress: s.ingress.Load(),
		Dropped: s.dropped.Load(),
	}
}

// Dropped returns the number of oversize packets dropped so far.
func (s *Session) Dropped() uint64 {
	return s.dropped.Load()
}

// CheckPendingPackets tells the host to drain again if packets are waiting. Call it after each drain.
func (s *Session) CheckPendingPackets() {
	s.kickPending.Store(false)
	if s.pending.Len() > 0 {
		s.notify()
	}
}

// notify sends one wake datagram per drain cycle.
func (s *Session) notify() {
	if !s.kickPending.CompareAndSwap(false, true) {
		return
	}
	peer := s.peer.Load()
	if peer == nil || s.closed.Load() {
		s.kickPending.Store(false)
		return
	}
	if _, err := s.relay.WriteToUDPAddrPort(wakeDatagram, *peer); err != nil {
		s.kickPending.Store(false)
		s.logger.Debug("failed to wake host", "peer", *peer, "err", err)
	}
}

// readDevice queues the packets produced by the IP device.
func (s *Session) readDevice() error {
	buf := make([]byte, maxPacketSize)
	for {
		n, err := s.device.Read(buf)
		if err != nil {
			if errors.Is(err, io.EOF) || s.closed.Load() {
				return nil
			}
			return fmt.Errorf("failed to read from device: %w", err)
		}
		if n == 0 {
			continue
		}
		s.pending.Push(bytes.Clone(buf[:n]))
		s.notify()
	}
}

// relayPackets writes the packets sent by the host transport to the IP device.
func (s *Session) relayPackets() error {
	buf := make([]byte, maxPacketSize)
	for {
		n, src, err := s.relay.ReadFromUDPAddrPort(buf)
		if err != nil {
			if s.closed.Load() || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("failed to read from relay: %w", err)
		}
		peer := s.peer.Load()
		if peer == nil || netip.AddrPortFrom(src.Addr().Unmap(), src.Port()) != *peer || n == 0 {
			continue
		}
		if _, err := s.device.Write(buf[:n]); err != nil {
			if errors.Is(err, network.ErrClosed) {
				return nil
			}
			s.logger.Debug("failed to write packet to device", "size", n, "err", err)
		}
	}
}

// Close stops the session and discards the pending packets. It is safe to call more than once.
func (s *Session) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	s.cancel()
	s.relay.Close()
	err := s.device.Close()
	if werr := s.group.Wait(); werr != nil {
		s.logger.Warn("session stopped with error", "err", werr)
	}
	if n := s.pending.Clear(); n > 0 {
		s.logger.Debug("discarded pending packets", "count", n)
	}
	s.mu.Lock()
	t := s.transport
	s.transport = nil
	s.mu.Unlock()
	if t != nil {
		err = errors.Join(err, t.Close())
	}
	return err
}

func (s *Session) isClosed() bool {
	return s.closed.Load()
}
