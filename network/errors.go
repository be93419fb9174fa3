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
	"fmt"
	"syscall"
)

// Errors returned by this package and its sub-packages. Test with [errors.Is].
var (
	// ErrClosed is returned by I/O on a device or proxy session that is closed, or that gets closed while the
	// call is in progress.
	ErrClosed = errors.New("network device already closed")

	// ErrPortUnreachable means the remote port cannot be reached.
	ErrPortUnreachable = errors.New("port is not reachable")

	// ErrMsgSize means a packet is bigger than the destination can take.
	ErrMsgSize = fmt.Errorf("packet size is too big: %w", syscall.EMSGSIZE)
)
