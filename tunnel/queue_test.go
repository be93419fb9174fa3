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
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPendingQueueFIFO(t *testing.T) {
	q := NewPendingQueue()
	_, ok := q.Peek()
	require.False(t, ok)
	_, ok = q.Remove()
	require.False(t, ok)

	for _, p := range []string{"A", "B", "C"} {
		q.Push([]byte(p))
	}
	require.Equal(t, 3, q.Len())
	p, ok := q.Peek()
	require.True(t, ok)
	require.Equal(t, "A", string(p))
	require.Equal(t, 3, q.Len())

	var got []string
	for {
		p, ok := q.Remove()
		if !ok {
			break
		}
		got = append(got, string(p))
	}
	require.Equal(t, []string{"A", "B", "C"}, got)
}

func TestPendingQueueClear(t *testing.T) {
	q := NewPendingQueue()
	q.Push([]byte("A"))
	q.Push([]byte("B"))
	require.Equal(t, 2, q.Len())
	require.Equal(t, 2, q.Clear())
	require.Zero(t, q.Len())
	q.Push([]byte("C"))
	p, _ := q.Remove()
	require.Equal(t, "C", string(p))
}

func TestPendingQueueConcurrentProducers(t *testing.T) {
	q := NewPendingQueue()
	const producers, each = 8, 500

	var wg sync.WaitGroup
	for i := 0; i < producers; i++ {
		wg.Add(1)
		go func(id byte) {
			defer wg.Done()
			for j := 0; j < each; j++ {
				q.Push([]byte{id, byte(j >> 8), byte(j)})
			}
		}(byte(i))
	}
	wg.Wait()
	require.Equal(t, producers*each, q.Len())

	// Each producer's packets come out in the order it pushed them.
	next := make([]int, producers)
	for {
		p, ok := q.Remove()
		if !ok {
			break
		}
		seq := int(p[1])<<8 | int(p[2])
		require.Equal(t, next[p[0]], seq)
		next[p[0]]++
	}
	for _, n := range next {
		require.Equal(t, each, n)
	}
}
