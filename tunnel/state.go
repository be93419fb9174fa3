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
	"errors"
	"fmt"
	"sync/atomic"
)

// State is the lifecycle state of a [Plugin].
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateDisconnecting
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateDisconnecting:
		return "disconnecting"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

var ErrInvalidTransition = errors.New("invalid state transition")

// allowedTransitions lists the states reachable from each state. Connected may go back to Connecting when the
// host reconnects an existing channel.
var allowedTransitions = map[State][]State{
	StateDisconnected:  {StateConnecting, StateDisconnecting},
	StateConnecting:    {StateConnected, StateDisconnected},
	StateConnected:     {StateDisconnecting, StateConnecting},
	StateDisconnecting: {StateDisconnected},
}

func allowedTransition(from, to State) bool {
	for _, s := range allowedTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

type stateMachine struct {
	v atomic.Int32
}

func (m *stateMachine) load() State {
	return State(m.v.Load())
}

// transition moves to the given state. Moving to the current state is a no-op.
func (m *stateMachine) transition(to State) error {
	for {
		from := m.load()
		if from == to {
			return nil
		}
		if !allowedTransition(from, to) {
			return fmt.Errorf("%w: %v -> %v", ErrInvalidTransition, from, to)
		}
		if m.v.CompareAndSwap(int32(from), int32(to)) {
			return nil
		}
	}
}

// reset forces the state, for failure paths.
func (m *stateMachine) reset(to State) {
	m.v.Store(int32(to))
}
