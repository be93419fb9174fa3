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

package lwip2transport

import (
	"errors"
	"io"
	"sync"

	lwip "github.com/eycorsican/go-tun2socks/core"
	"github.com/ytflow/tunnelcore/network"
	"github.com/ytflow/tunnelcore/transport"
)

const deviceMTU = 1500

var _ network.IPDevice = (*lwipDevice)(nil)

type lwipDevice struct {
	stack lwip.LWIPStack

	closeOnce sync.Once
	done      chan struct{}

	// Packets emitted by lwIP wait in output until a Read copies them and reports the length on copied.
	output chan []byte
	copied chan int
}

var (
	current   *lwipDevice
	currentMu sync.Mutex
)

// ConfigureDevice sets up the process-wide lwIP device. TCP flows are dialed with sd and UDP flows are handed to pp.
// A previously configured device is closed first.
func ConfigureDevice(sd transport.StreamDialer, pp network.PacketProxy) (network.IPDevice, error) {
	if sd == nil || pp == nil {
		return nil, errors.New("both sd and pp are required")
	}

	currentMu.Lock()
	defer currentMu.Unlock()
	if current != nil {
		current.Close()
	}
	dev := &lwipDevice{
		stack:  lwip.NewLWIPStack(),
		done:   make(chan struct{}),
		output: make(chan []byte),
		copied: make(chan int),
	}
	lwip.RegisterTCPConnHandler(&tcpHandler{dialer: sd})
	lwip.RegisterUDPConnHandler(newUDPHandler(pp))
	lwip.RegisterOutputFn(dev.emit)
	current = dev
	return dev, nil
}

func (d *lwipDevice) MTU() int { return deviceMTU }

// Close stops the stack. It does not close the dialer or the packet proxy.
func (d *lwipDevice) Close() error {
	var err error
	d.closeOnce.Do(func() {
		close(d.done)
		err = d.stack.Close()
	})
	return err
}

// emit is the lwIP output function. It blocks until a Read has consumed b, so b is never used after it returns.
func (d *lwipDevice) emit(b []byte) (int, error) {
	if len(b) == 0 {
		return 0, nil
	}
	select {
	case d.output <- b:
	case <-d.done:
		return 0, network.ErrClosed
	}
	select {
	case n := <-d.copied:
		return n, nil
	case <-d.done:
		return 0, network.ErrClosed
	}
}

// Read returns the next packet emitted by lwIP, truncated to len(p).
func (d *lwipDevice) Read(p []byte) (int, error) {
	select {
	case b := <-d.output:
		n := copy(p, b)
		d.copied <- n
		return n, nil
	case <-d.done:
		return 0, io.EOF
	}
}

// Write feeds one IP packet to lwIP.
func (d *lwipDevice) Write(b []byte) (int, error) {
	select {
	case <-d.done:
		return 0, network.ErrClosed
	default:
	}
	if len(b) > deviceMTU {
		return 0, network.ErrMsgSize
	}
	n, err := d.stack.Write(b)
	// The stack reports closure with an untyped error.
	if err != nil && err.Error() == "stack closed" {
		return n, network.ErrClosed
	}
	return n, err
}
