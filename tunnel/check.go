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
	"time"

	"github.com/ytflow/tunnelcore/adapter"
	"github.com/ytflow/tunnelcore/dns"
	"github.com/ytflow/tunnelcore/network/dnstruncate"
	"github.com/ytflow/tunnelcore/transport"
	"golang.org/x/net/dns/dnsmessage"
)

const (
	checkResolver = "1.1.1.1:53"
	checkDomain   = "www.google.com"
	checkTimeout  = 10 * time.Second
)

// startBackendCheck probes the backend in the background. A TCP failure is only reported. If UDP does not work,
// UDP flows are answered locally with truncated DNS responses so resolvers retry over TCP.
func (s *Session) startBackendCheck() {
	if s.isClosed() {
		return
	}
	s.group.Go(func() error {
		s.checkBackend(s.ctx)
		return nil
	})
}

func (s *Session) checkBackend(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	q, err := dns.NewQuestion(checkDomain, dnsmessage.TypeA)
	if err != nil {
		s.logger.Error("bad check question", "err", err)
		return
	}

	if _, err := dns.NewTCPRoundTripper(s.adapter, checkResolver).RoundTrip(ctx, *q); err != nil {
		if s.isClosed() {
			return
		}
		err = fmt.Errorf("%w: backend check over TCP: %w", ErrConnect, err)
		s.logger.Warn("backend unreachable", "err", err)
		s.ch.LogDiagnosticMessage(err.Error())
		return
	}
	s.logger.Debug("backend reachable over TCP")

	pd := transport.PacketListenerDialer{Listener: s.adapter}
	if _, err := dns.NewUDPRoundTripper(pd, checkResolver).RoundTrip(ctx, *q); err != nil {
		if s.isClosed() {
			return
		}
		if errors.Is(err, adapter.ErrPacketUnsupported) {
			s.logger.Info("adapter has no UDP, DNS falls back to TCP")
		} else {
			s.logger.Info("UDP check failed, DNS falls back to TCP", "err", err)
		}
		if err := s.packetProxy.SetProxy(dnstruncate.NewPacketProxy()); err != nil {
			s.logger.Error("failed to switch UDP proxy", "err", err)
		}
		return
	}
	s.logger.Debug("backend reachable over UDP")
	if err := s.packetProxy.SetProxy(s.udpProxy); err != nil {
		s.logger.Error("failed to switch UDP proxy", "err", err)
	}
}
