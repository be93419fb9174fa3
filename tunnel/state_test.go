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
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAllowedTransitions(t *testing.T) {
	cases := []struct {
		from, to State
		ok       bool
	}{
		{StateDisconnected, StateConnecting, true},
		{StateDisconnected, StateDisconnecting, true},
		{StateDisconnected, StateConnected, false},
		{StateConnecting, StateConnected, true},
		{StateConnecting, StateDisconnected, true},
		{StateConnecting, StateDisconnecting, false},
		{StateConnected, StateDisconnecting, true},
		{StateConnected, StateConnecting, true},
		{StateConnected, StateDisconnected, false},
		{StateDisconnecting, StateDisconnected, true},
		{StateDisconnecting, StateConnecting, false},
		{StateDisconnecting, StateConnected, false},
	}
	for _, c := range cases {
		require.Equal(t, c.ok, allowedTransition(c.from, c.to), "%v -> %v", c.from, c.to)
	}
}

func TestStateMachine(t *testing.T) {
	var m stateMachine
	require.Equal(t, StateDisconnected, m.load())
	require.NoError(t, m.transition(StateDisconnected))

	err := m.transition(StateConnected)
	require.ErrorIs(t, err, ErrInvalidTransition)
	require.Equal(t, StateDisconnected, m.load())

	require.NoError(t, m.transition(StateConnecting))
	require.NoError(t, m.transition(StateConnected))
	require.NoError(t, m.transition(StateDisconnecting))
	require.ErrorIs(t, m.transition(StateConnecting), ErrInvalidTransition)
	require.NoError(t, m.transition(StateDisconnected))
}

func TestStateString(t *testing.T) {
	require.Equal(t, "connected", StateConnected.String())
	require.Equal(t, "state(9)", State(9).String())
}
