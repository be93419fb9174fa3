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

// IPDevice reads and writes whole IP packets.
//
// Read blocks until a packet is available. If p is too small, the packet is truncated to len(p) and no error is
// returned, which matches recvfrom. Read returns [io.EOF] once the device is closed.
//
// Write takes one complete packet. It returns (0, [ErrMsgSize]) when len(b) exceeds MTU and [ErrClosed] after Close.
//
// Read and Write may be called from different goroutines, but each must have at most one caller at a time.
type IPDevice interface {
	Read(p []byte) (int, error)
	Write(b []byte) (int, error)
	Close() error

	// MTU is the largest packet the device reads or writes.
	MTU() int
}
