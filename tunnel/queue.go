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

	"github.com/eapache/queue"
)

// PendingQueue is a FIFO of inbound packets waiting for the host. It is safe for concurrent use.
type PendingQueue struct {
	mu sync.Mutex
	q  *queue.Queue
}

func NewPendingQueue() *PendingQueue {
	return &PendingQueue{q: queue.New()}
}

// Push appends p. The queue takes ownership of p.
func (pq *PendingQueue) Push(p []byte) {
	pq.mu.Lock()
	defer pq.mu.Unlock()
	pq.q.Add(p)
}

// Peek returns the oldest packet without removing it.
func (pq *PendingQueue) Peek() ([]byte, bool) {
	pq.mu.Lock()
	defer pq.mu.Unlock()
	if pq.q.Length() == 0 {
		return nil, false
	}
	return pq.q.Peek().([]byte), true
}

// Remove removes and returns the oldest packet.
func (pq *PendingQueue) Remove() ([]byte, bool) {
	pq.mu.Lock()
	defer pq.mu.Unlock()
	if pq.q.Length() == 0 {
		return nil, false
	}
	return pq.q.Remove().([]byte), true
}

func (pq *PendingQueue) Len() int {
	pq.mu.Lock()
	defer pq.mu.Unlock()
	return pq.q.Length()
}

// Clear discards every packet and returns how many were discarded.
func (pq *PendingQueue) Clear() int {
	pq.mu.Lock()
	defer pq.mu.Unlock()
	n := pq.q.Length()
	pq.q = queue.New()
	return n
}
