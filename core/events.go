// Copyright (c) 2024 anidb-go contributors
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.

package core

import "sync"

// Event is a progress or lifecycle notification fanned out to every
// connected sink (spec §6.1, connect_events/disconnect_events). Kind names
// what happened; Path and fields beyond it are populated per kind.
type Event struct {
	Kind           string // "progress", "file_completed", "file_failed"
	Path           string
	BytesProcessed int64
	TotalBytes     int64
	Result         *FileResult
}

// EventSink receives Engine events. Implementations must not block for
// long: the Engine calls every connected sink synchronously from whichever
// worker goroutine produced the event.
type EventSink func(Event)

// eventBus is a trivial connect/disconnect pub/sub, the one piece of
// ambient infrastructure the teacher's job-progress reporting implies
// (azcopy's cmd layer polls a JobsAdmin status snapshot rather than
// pushing events, so this fan-out is built fresh in the teacher's general
// idiom of small mutex-guarded registries rather than adapted from a
// specific teacher file).
type eventBus struct {
	mu    sync.Mutex
	sinks map[int]EventSink
	next  int
}

func newEventBus() *eventBus {
	return &eventBus{sinks: make(map[int]EventSink)}
}

// connect registers sink and returns a handle for disconnect.
func (b *eventBus) connect(sink EventSink) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.next
	b.next++
	b.sinks[id] = sink
	return id
}

func (b *eventBus) disconnect(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.sinks, id)
}

func (b *eventBus) publish(ev Event) {
	b.mu.Lock()
	sinks := make([]EventSink, 0, len(b.sinks))
	for _, s := range b.sinks {
		sinks = append(sinks, s)
	}
	b.mu.Unlock()
	for _, s := range sinks {
		s(ev)
	}
}
