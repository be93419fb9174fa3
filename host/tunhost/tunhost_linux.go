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

//go:build linux

package tunhost

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/netip"
	"sync"

	"github.com/songgao/water"
	"github.com/vishvananda/netlink"
	"github.com/ytflow/tunnelcore/host"
	"golang.org/x/sys/unix"
)

const (
	DefaultName         = "ytflow0"
	DefaultRoutingTable = 7007
	DefaultRulePriority = 7007

	maxPacketSize = 65535
)

// Config configures a [Host]. Zero fields take the defaults.
type Config struct {
	Name         string
	RoutingTable int
	RulePriority int
	Logger       *slog.Logger
}

// Plugin is the tunnel core driven by a [Host].
type Plugin interface {
	Connect(ch host.Channel) error
	Disconnect(ch host.Channel) error
	Encapsulate(ch host.Channel, packets, encapsulated *host.BufferList)
	Decapsulate(ch host.Channel, encapsulated *host.Buffer, decapsulated, control *host.BufferList)
}

// Host is a [host.Channel] backed by a TUN device.
type Host struct {
	cfg    Config
	logger *slog.Logger
	tun    *water.Interface
	link   netlink.Link

	mu         sync.Mutex
	pluginCtx  any
	transport  host.PacketTransport
	opts       host.StartOptions
	rule       *netlink.Rule
	terminated chan string
}

var _ host.Channel = (*Host)(nil)

// New creates the TUN device. It needs CAP_NET_ADMIN.
func New(cfg Config) (h *Host, err error) {
	if cfg.Name == "" {
		cfg.Name = DefaultName
	}
	if cfg.RoutingTable == 0 {
		cfg.RoutingTable = DefaultRoutingTable
	}
	if cfg.RulePriority == 0 {
		cfg.RulePriority = DefaultRulePriority
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	tun, err := water.New(water.Config{
		DeviceType: water.TUN,
		PlatformSpecificParams: water.PlatformSpecificParams{
			Name:    cfg.Name,
			Persist: false,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create TUN device: %w", err)
	}
	defer func() {
		if err != nil {
			tun.Close()
		}
	}()

	link, err := netlink.LinkByName(tun.Name())
	if err != nil {
		return nil, fmt.Errorf("newly created TUN device %q not found: %w", tun.Name(), err)
	}
	return &Host{
		cfg:        cfg,
		logger:     cfg.Logger.With("tun", tun.Name()),
		tun:        tun,
		link:       link,
		terminated: make(chan string, 1),
	}, nil
}

func (h *Host) AssociateTransport(t host.Transport) error {
	pt, ok := t.(host.PacketTransport)
	if !ok {
		return fmt.Errorf("transport %T cannot carry packets", t)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.transport = pt
	return nil
}

func (h *Host) StartWithMainTransport(opts host.StartOptions, t host.Transport) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.rule != nil {
		h.stopRoutingLocked()
	}
	for _, a := range opts.AssignedIPv4 {
		addr := &netlink.Addr{IPNet: prefixNet(netip.PrefixFrom(a, a.BitLen()))}
		if err := netlink.AddrReplace(h.link, addr); err != nil {
			return fmt.Errorf("failed to assign %v: %w", a, err)
		}
	}
	if opts.MTU > 0 {
		if err := netlink.LinkSetMTU(h.link, opts.MTU); err != nil {
			return fmt.Errorf("failed to set MTU %d: %w", opts.MTU, err)
		}
	}
	if err := netlink.LinkSetUp(h.link); err != nil {
		return fmt.Errorf("failed to bring TUN device up: %w", err)
	}

	plan := planRoutes(opts.Routes)
	for _, p := range plan.include {
		r := &netlink.Route{LinkIndex: h.link.Attrs().Index, Table: h.cfg.RoutingTable, Dst: prefixNet(p), Scope: netlink.SCOPE_LINK}
		if err := netlink.RouteReplace(r); err != nil {
			return fmt.Errorf("failed to route %v: %w", p, err)
		}
	}
	for _, p := range plan.exclude {
		r := &netlink.Route{Table: h.cfg.RoutingTable, Dst: prefixNet(p), Type: unix.RTN_THROW}
		if err := netlink.RouteReplace(r); err != nil {
			return fmt.Errorf("failed to exclude %v: %w", p, err)
		}
	}
	rule := netlink.NewRule()
	rule.Priority = h.cfg.RulePriority
	rule.Family = netlink.FAMILY_V4
	rule.Table = h.cfg.RoutingTable
	if err := netlink.RuleAdd(rule); err != nil {
		return fmt.Errorf("failed to add IP rule for table %d: %w", rule.Table, err)
	}
	h.rule = rule
	h.opts = opts
	if pt, ok := t.(host.PacketTransport); ok {
		h.transport = pt
	}

	for _, r := range opts.DNS.Rules {
		h.logger.Info("DNS assignment", "suffix", r.Suffix, "servers", r.Servers)
	}
	h.logger.Info("started", "mtu", opts.MTU, "include", plan.include, "exclude", plan.exclude)
	return nil
}

func (h *Host) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.stopRoutingLocked()
}

func (h *Host) stopRoutingLocked() {
	if h.rule != nil {
		if err := netlink.RuleDel(h.rule); err != nil {
			h.logger.Warn("failed to delete IP rule", "table", h.rule.Table, "err", err)
		}
		h.rule = nil
	}
	filter := &netlink.Route{Table: h.cfg.RoutingTable}
	routes, err := netlink.RouteListFiltered(netlink.FAMILY_V4, filter, netlink.RT_FILTER_TABLE)
	if err != nil {
		h.logger.Warn("failed to list routes", "table", h.cfg.RoutingTable, "err", err)
		return
	}
	var delErr error
	for _, r := range routes {
		if err := netlink.RouteDel(&r); err != nil {
			delErr = errors.Join(delErr, err)
		}
	}
	if delErr != nil {
		h.logger.Warn("failed to clean up routes", "table", h.cfg.RoutingTable, "err", delErr)
	}
}

func (h *Host) ReceiveBuffer() (*host.Buffer, error) {
	h.mu.Lock()
	size := max(h.opts.HeaderSize, h.opts.MTU)
	h.mu.Unlock()
	if size == 0 {
		return nil, errors.New("packet flow not started")
	}
	return host.NewBuffer(size), nil
}

func (h *Host) LogDiagnosticMessage(msg string) {
	h.logger.Info(msg)
}

func (h *Host) TerminateConnection(reason string) {
	h.logger.Error("connection terminated", "reason", reason)
	select {
	case h.terminated <- reason:
	default:
	}
}

func (h *Host) PluginContext() any {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.pluginCtx
}

func (h *Host) SetPluginContext(v any) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.pluginCtx = v
}

// Run connects p and relays packets until ctx is done or the connection is terminated, then disconnects p and
// closes the TUN device. A Host runs once.
func (h *Host) Run(ctx context.Context, p Plugin) error {
	defer h.tun.Close()
	if err := p.Connect(h); err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	h.mu.Lock()
	t := h.transport
	h.mu.Unlock()
	if t == nil {
		p.Disconnect(h)
		return errors.New("no transport associated")
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		h.readTUN(p, t)
	}()
	go func() {
		defer wg.Done()
		h.readTransport(p, t)
	}()

	var err error
	select {
	case <-ctx.Done():
		h.logger.Info("stopping", "cause", context.Cause(ctx))
	case reason := <-h.terminated:
		err = fmt.Errorf("connection terminated: %s", reason)
	}
	if derr := p.Disconnect(h); derr != nil {
		err = errors.Join(err, derr)
	}
	t.Close()
	h.tun.Close()
	wg.Wait()
	return err
}

// readTUN sends the packets written to the TUN device through the plugin to the transport.
func (h *Host) readTUN(p Plugin, t host.PacketTransport) {
	buf := make([]byte, maxPacketSize)
	for {
		n, err := h.tun.Read(buf)
		if err != nil {
			h.logger.Debug("TUN reader stopped", "err", err)
			return
		}
		out := host.NewBufferList()
		p.Encapsulate(h, host.NewBufferList(host.BufferOf(buf[:n])), out)
		for _, b := range out.Buffers() {
			if _, err := t.Send(b.Bytes()); err != nil {
				h.logger.Debug("dropped outbound packet", "size", b.Len(), "err", err)
			}
		}
	}
}

// readTransport drains the plugin each time the transport signals, writing the packets to the TUN device.
func (h *Host) readTransport(p Plugin, t host.PacketTransport) {
	buf := make([]byte, maxPacketSize)
	for {
		n, err := t.Receive(buf)
		if err != nil {
			h.logger.Debug("transport reader stopped", "err", err)
			return
		}
		out := host.NewBufferList()
		p.Decapsulate(h, host.BufferOf(buf[:n]), out, host.NewBufferList())
		for _, b := range out.Buffers() {
			if _, err := h.tun.Write(b.Bytes()); err != nil {
				h.logger.Debug("dropped inbound packet", "size", b.Len(), "err", err)
			}
		}
	}
}

func prefixNet(p netip.Prefix) *net.IPNet {
	return &net.IPNet{IP: p.Addr().AsSlice(), Mask: net.CIDRMask(p.Bits(), p.Addr().BitLen())}
}
