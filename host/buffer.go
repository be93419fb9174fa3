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

package host

import "fmt"

// Buffer is a host-owned packet buffer with a fixed capacity.
type Buffer struct {
	data []byte
	n    int
}

// NewBuffer allocates a buffer of the given capacity.
func NewBuffer(capacity int) *Buffer {
	return &Buffer{data: make([]byte, capacity)}
}

// BufferOf returns a buffer holding a copy of p, with capacity len(p).
func BufferOf(p []byte) *Buffer {
	b := NewBuffer(len(p))
	b.n = copy(b.data, p)
	return b
}

func (b *Buffer) Capacity() int { return len(b.data) }
func (b *Buffer) Len() int      { return b.n }

// Data returns the whole storage, for writing.
func (b *Buffer) Data() []byte { return b.data }

// Bytes returns the written part.
func (b *Buffer) Bytes() []byte { return b.data[:b.n] }

// SetLen sets the written length.
func (b *Buffer) SetLen(n int) error {
	if n < 0 || n > len(b.data) {
		return fmt.Errorf("length %d out of range [0, %d]", n, len(b.data))
	}
	b.n = n
	return nil
}

// BufferList is an ordered batch of buffers. It is not safe for concurrent use.
type BufferList struct {
	bufs []*Buffer
}

// NewBufferList creates a list holding bufs in order.
func NewBufferList(bufs ...*Buffer) *BufferList {
	return &BufferList{bufs: bufs}
}

func (l *BufferList) Size() int { return len(l.bufs) }

// RemoveFirst removes and returns the first buffer, or nil when the list is empty.
func (l *BufferList) RemoveFirst() *Buffer {
	if len(l.bufs) == 0 {
		return nil
	}
	b := l.bufs[0]
	l.bufs[0] = nil
	l.bufs = l.bufs[1:]
	return b
}

func (l *BufferList) Append(b *Buffer) {
	l.bufs = append(l.bufs, b)
}

// Buffers returns the buffers in order. The slice is shared with the list.
func (l *BufferList) Buffers() []*Buffer {
	return l.bufs
}
