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

// Package hosttest provides a recording [host.Channel] for tests.
package hosttest

import (
	"errors"
	"slices"
	"sync"

	"github.com/ytflow/tunnelcore/host"
)

// DefaultBufferCapacity is the capacity of buffers returned by [Channel.ReceiveBuffer] unless overridden.
const DefaultBufferCapacity = 1512

// Channel is a [host.Channel] that records every call.
type Channel struct {
	mu           sync.Mutex
	capacity     int
	bufferErr    error
	startErr     error
	associated   []host.Transport
	started      []host.StartOptions
	stops        int
	terminations []string
	diagnostics  []string
	pluginCtx    any
}

var _ host.Channel = (*Channel)(nil)

// NewChannel returns an empty channel.
func NewChannel() *Channel {
	return &Channel{capacity: DefaultBufferCapacity}
}

// SetBufferCapacity sets the capacity of subsequently returned receive buffers.
func (c *Channel) SetBufferCapacity(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.capacity = n
}

// FailReceiveBuffer makes ReceiveBuffer return err. A nil err restores normal behavior.
func (c *Channel) FailReceiveBuffer(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bufferErr = err
}

// FailStart makes StartWithMainTransport return err.
func (c *Channel) FailStart(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.startErr = err
}

func (c *Channel) AssociateTransport(t host.Transport) error {
	if t == nil {
		return errors.New("nil transport")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.associated = append(c.associated, t)
	return nil
}

func (c *Channel) StartWithMainTransport(opts host.StartOptions, t host.Transport) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.startErr != nil {
		return c.startErr
	}
	c.started = append(c.started, opts)
	return nil
}

func (c *Channel) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stops++
}

func (c *Channel) ReceiveBuffer() (*host.Buffer, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.bufferErr != nil {
		return nil, c.bufferErr
	}
	return host.NewBuffer(c.capacity), nil
}

func (c *Channel) LogDiagnosticMessage(msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.diagnostics = append(c.diagnostics, msg)
}

func (c *Channel) TerminateConnection(reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.terminations = append(c.terminations, reason)
}

func (c *Channel) PluginContext() any {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pluginCtx
}

func (c *Channel) SetPluginContext(v any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pluginCtx = v
}

// Associated returns the transports passed to AssociateTransport.
func (c *Channel) Associated() []host.Transport {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.associated)
}

// Started returns the options of every successful StartWithMainTransport.
func (c *Channel) Started() []host.StartOptions {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.started)
}

// Stops returns how many times Stop was called.
func (c *Channel) Stops() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stops
}

func (c *Channel) Terminations() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.terminations)
}

func (c *Channel) Diagnostics() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.diagnostics)
}
