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
	"errors"
	"sync/atomic"
)

var errNilProxy = errors.New("proxy must not be nil")

// DelegatePacketProxy forwards NewSession to a [PacketProxy] that can be replaced while the stack is running.
// Sessions already created keep the proxy that created them.
type DelegatePacketProxy struct {
	// A pointer to the interface, since atomic.Value rejects values of different concrete types.
	proxy atomic.Pointer[PacketProxy]
}

var _ PacketProxy = (*DelegatePacketProxy)(nil)

// NewDelegatePacketProxy creates a [DelegatePacketProxy] that starts by forwarding to proxy.
func NewDelegatePacketProxy(proxy PacketProxy) (*DelegatePacketProxy, error) {
	if proxy == nil {
		return nil, errNilProxy
	}
	dp := &DelegatePacketProxy{}
	dp.proxy.Store(&proxy)
	return dp, nil
}

// NewSession implements [PacketProxy].
func (p *DelegatePacketProxy) NewSession(receiver PacketResponseReceiver) (PacketRequestSender, error) {
	return (*p.proxy.Load()).NewSession(receiver)
}

// SetProxy routes all later sessions to proxy.
func (p *DelegatePacketProxy) SetProxy(proxy PacketProxy) error {
	if proxy == nil {
		return errNilProxy
	}
	p.proxy.Store(&proxy)
	return nil
}

// Proxy returns the current proxy.
func (p *DelegatePacketProxy) Proxy() PacketProxy {
	return *p.proxy.Load()
}
