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
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/netip"
	"sync"
	"time"

	"github.com/ytflow/tunnelcore/adapter"
	"github.com/ytflow/tunnelcore/config"
	"github.com/ytflow/tunnelcore/host"
)

// Plugin is the lifecycle controller driven by the host. Connect and Disconnect serialize on the plugin, while
// Encapsulate and Decapsulate only touch the session and may run concurrently with them.
type Plugin struct {
	logger        *slog.Logger
	pointer       *config.DefaultPointer
	deferral      host.Deferral
	transportAddr netip.AddrPort
	relayAddr     netip.AddrPort
	newDevice     DeviceFactory
	newTransport  TransportFactory
	backendCheck  bool
	bindTimeout   time.Duration

	mu           sync.Mutex
	state        stateMachine
	deferralOnce sync.Once
}

// New creates a plugin that connects with the configuration pointer reads.
func New(pointer *config.DefaultPointer, opts ...Option) (*Plugin, error) {
	if pointer == nil {
		return nil, errors.New("default pointer must not be nil")
	}
	p := &Plugin{
		logger:        slog.Default(),
		pointer:       pointer,
		transportAddr: DefaultTransportAddr,
		relayAddr:     DefaultRelayAddr,
		newDevice:     defaultDevice,
		newTransport:  defaultTransport,
		backendCheck:  true,
		bindTimeout:   defaultBindTimeout,
	}
	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// State returns the current lifecycle state.
func (p *Plugin) State() State {
	return p.state.load()
}

// Connect starts the tunnel on ch, reusing the session already stored in ch if there is one.
//
// On failure the host is told why through TerminateConnection, the session is released and the plugin is back to
// [StateDisconnected]. The error is also returned.
func (p *Plugin) Connect(ch host.Channel) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.state.transition(StateConnecting); err != nil {
		return err
	}
	if err := p.connect(ch); err != nil {
		p.logger.Error("failed to connect", "err", err)
		ch.TerminateConnection(terminationReason(err))
		p.state.reset(StateDisconnected)
		return err
	}
	return p.state.transition(StateConnected)
}

func (p *Plugin) connect(ch host.Channel) (err error) {
	t := p.newTransport()
	if err := ch.AssociateTransport(t); err != nil {
		t.Close()
		return fmt.Errorf("failed to associate transport: %w", err)
	}

	s, _ := ch.PluginContext().(*Session)
	if s == nil || s.isClosed() {
		if s, err = p.openSession(ch); err != nil {
			t.Close()
			return err
		}
		ch.SetPluginContext(s)
	} else {
		p.logger.Debug("reusing session")
	}
	s.SetTransport(t)
	defer func() {
		if err != nil {
			p.release(ch, s)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), p.bindTimeout)
	defer cancel()
	if err := t.BindEndpoint(ctx, p.transportAddr); err != nil {
		return fmt.Errorf("%w: %w", ErrBind, err)
	}
	s.Init(t.LocalAddr())

	relayAddr := s.RelayAddr()
	s.group.Go(func() error {
		ctx, cancel := context.WithTimeout(s.ctx, p.bindTimeout)
		defer cancel()
		if err := t.Connect(ctx, relayAddr); err != nil {
			p.logger.Warn("transport not connected", "relay", relayAddr, "err", fmt.Errorf("%w: %w", ErrConnect, err))
			return nil
		}
		p.logger.Debug("transport connected", "local", t.LocalAddr(), "relay", relayAddr)
		return nil
	})

	if err := ch.StartWithMainTransport(startOptions(), t); err != nil {
		return fmt.Errorf("failed to start packet flow: %w", err)
	}
	if p.backendCheck {
		s.startBackendCheck()
	}
	p.logger.Info("connected", "adapter", s.adapter.Name(), "kind", s.adapter.Kind())
	return nil
}

// openSession resolves the default configuration and creates a session for it.
func (p *Plugin) openSession(ch host.Channel) (*Session, error) {
	locator, ok, err := p.pointer.Get()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errReadConfig, err)
	}
	if !ok {
		return nil, ErrConfigNotSet
	}
	cfg, err := config.Resolve(locator)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errReadConfig, err)
	}
	factory, err := adapter.Build(cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errReadConfig, err)
	}
	return newSession(ch, factory, p.relayAddr, p.newDevice, p.logger)
}

// release closes s and clears it from ch.
func (p *Plugin) release(ch host.Channel, s *Session) {
	if err := s.Close(); err != nil {
		p.logger.Debug("error closing session", "err", err)
	}
	if cur, _ := ch.PluginContext().(*Session); cur == s {
		ch.SetPluginContext(nil)
	}
}

// Disconnect stops the tunnel on ch and discards the packets not yet delivered. Without a session it only
// returns to [StateDisconnected]; with one it also completes the deferral.
func (p *Plugin) Disconnect(ch host.Channel) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.state.transition(StateDisconnecting); err != nil {
		return err
	}
	s, _ := ch.PluginContext().(*Session)
	if s == nil {
		return p.state.transition(StateDisconnected)
	}
	ch.Stop()
	stats := s.Stats()
	p.release(ch, s)
	if err := p.state.transition(StateDisconnected); err != nil {
		return err
	}
	p.logger.Info("disconnected", "egress", stats.Egress, "ingress", stats.Ingress, "dropped", stats.Dropped)
	p.completeDeferral()
	return nil
}

func (p *Plugin) completeDeferral() {
	if p.deferral == nil {
		return
	}
	p.deferralOnce.Do(p.deferral.Complete)
}

// KeepAlivePayload returns an empty buffer. Keep-alive packets are not used.
func (p *Plugin) KeepAlivePayload(ch host.Channel) *host.Buffer {
	return host.NewBuffer(0)
}
